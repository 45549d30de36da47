package valueobjects

import (
	"fmt"
	"net/url"
	"strings"
)

// Trojan transport identifiers recognized in the "type" query parameter.
const (
	TrojanTransportTCP  = "tcp"
	TrojanTransportWS   = "ws"
	TrojanTransportGRPC = "grpc"
)

// TrojanConfig represents a Trojan node. As with VLESSConfig, this is parsed
// from arbitrary subscription URIs rather than constructed for outbound
// provisioning, so transport/host/path combinations that a stricter,
// provisioning-oriented validator would reject are accepted and preserved
// as-is.
type TrojanConfig struct {
	password      string
	transportType string
	host          string
	path          string
	sni           string
	alpn          string
	allowInsecure bool
}

// NewTrojanConfig builds a TrojanConfig, defaulting transportType to "tcp"
// when the source URI omits a "type" parameter.
func NewTrojanConfig(password, transportType, host, path, sni, alpn string, allowInsecure bool) (TrojanConfig, error) {
	if password == "" {
		return TrojanConfig{}, fmt.Errorf("trojan password must not be empty")
	}
	if transportType == "" {
		transportType = TrojanTransportTCP
	}
	return TrojanConfig{
		password: password, transportType: transportType,
		host: host, path: path, sni: sni, alpn: alpn, allowInsecure: allowInsecure,
	}, nil
}

func (tc TrojanConfig) Password() string      { return tc.password }
func (tc TrojanConfig) TransportType() string { return tc.transportType }
func (tc TrojanConfig) Host() string          { return tc.host }
func (tc TrojanConfig) Path() string          { return tc.path }
func (tc TrojanConfig) SNI() string           { return tc.sni }
func (tc TrojanConfig) ALPN() string          { return tc.alpn }
func (tc TrojanConfig) AllowInsecure() bool   { return tc.allowInsecure }

// ToURI renders trojan://password@host:port?params#remarks
func (tc TrojanConfig) ToURI(serverAddr string, serverPort uint16, remarks string) string {
	uri := fmt.Sprintf("trojan://%s@%s:%d", url.QueryEscape(tc.password), serverAddr, serverPort)

	params := url.Values{}
	params.Set("type", tc.transportType)
	if tc.sni != "" {
		params.Set("sni", tc.sni)
	}
	if tc.alpn != "" {
		params.Set("alpn", tc.alpn)
	}
	if tc.allowInsecure {
		params.Set("allowInsecure", "1")
	}
	switch tc.transportType {
	case TrojanTransportWS:
		if tc.host != "" {
			params.Set("host", tc.host)
		}
		if tc.path != "" {
			params.Set("path", tc.path)
		}
	case TrojanTransportGRPC:
		if tc.host != "" {
			params.Set("serviceName", tc.host)
		}
	}

	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	if remarks != "" {
		uri += "#" + url.QueryEscape(remarks)
	}
	return uri
}

func (tc TrojanConfig) String() string {
	parts := []string{fmt.Sprintf("transport=%s", tc.transportType)}
	if tc.sni != "" {
		parts = append(parts, fmt.Sprintf("sni=%s", tc.sni))
	}
	if tc.host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", tc.host))
	}
	return strings.Join(parts, ", ")
}

func (tc TrojanConfig) Equals(other TrojanConfig) bool {
	return tc.password == other.password &&
		tc.transportType == other.transportType &&
		tc.host == other.host &&
		tc.path == other.path &&
		tc.sni == other.sni &&
		tc.alpn == other.alpn &&
		tc.allowInsecure == other.allowInsecure
}
