package valueobjects

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// VLESS transport and security identifiers recognized in the "type"/
// "security" query parameters.
const (
	VLESSTransportTCP  = "tcp"
	VLESSTransportWS   = "ws"
	VLESSTransportGRPC = "grpc"
	VLESSTransportH2   = "h2"

	VLESSSecurityNone    = "none"
	VLESSSecurityTLS     = "tls"
	VLESSSecurityReality = "reality"

	VLESSFlowVision = "xtls-rprx-vision"
)

// VLESSConfig represents a VLESS node's transport, security and Reality
// parameters. A provisioning-oriented config would validate these fields
// against a fixed allowlist; this one is parsed from arbitrary subscription
// URIs, so unrecognized transport, security, or query-string values are
// kept rather than rejected, and any query key outside the recognized set
// is retained in extra so the Emitter can reproduce it unchanged.
type VLESSConfig struct {
	transportType string
	flow          string
	encryption    string

	security      string
	sni           string
	fingerprint   string
	alpn          string
	allowInsecure bool

	host string
	path string

	serviceName string

	publicKey string
	shortID   string
	spiderX   string

	extra map[string]string
}

// NewVLESSConfig builds a VLESSConfig, defaulting transportType to "tcp" and
// security to "none" when the source URI omits them, matching common client
// behavior for bare vless:// links.
func NewVLESSConfig(transportType, flow, encryption, security, sni, fingerprint, alpn string, allowInsecure bool, host, path, serviceName, publicKey, shortID, spiderX string, extra map[string]string) VLESSConfig {
	if transportType == "" {
		transportType = VLESSTransportTCP
	}
	if security == "" {
		security = VLESSSecurityNone
	}
	return VLESSConfig{
		transportType: transportType, flow: flow, encryption: encryption,
		security: security, sni: sni, fingerprint: fingerprint, alpn: alpn, allowInsecure: allowInsecure,
		host: host, path: path, serviceName: serviceName,
		publicKey: publicKey, shortID: shortID, spiderX: spiderX,
		extra: extra,
	}
}

func (vc VLESSConfig) TransportType() string  { return vc.transportType }
func (vc VLESSConfig) Flow() string            { return vc.flow }
func (vc VLESSConfig) Encryption() string      { return vc.encryption }
func (vc VLESSConfig) Security() string        { return vc.security }
func (vc VLESSConfig) SNI() string             { return vc.sni }
func (vc VLESSConfig) Fingerprint() string     { return vc.fingerprint }
func (vc VLESSConfig) ALPN() string            { return vc.alpn }
func (vc VLESSConfig) AllowInsecure() bool     { return vc.allowInsecure }
func (vc VLESSConfig) Host() string            { return vc.host }
func (vc VLESSConfig) Path() string            { return vc.path }
func (vc VLESSConfig) ServiceName() string     { return vc.serviceName }
func (vc VLESSConfig) PublicKey() string       { return vc.publicKey }
func (vc VLESSConfig) ShortID() string         { return vc.shortID }
func (vc VLESSConfig) SpiderX() string         { return vc.spiderX }
func (vc VLESSConfig) Extra() map[string]string {
	return vc.extra
}

// ToURI generates a VLESS URI: vless://uuid@host:port?type=...&security=...#remarks
func (vc VLESSConfig) ToURI(uuid, serverAddr string, serverPort uint16, remarks string) string {
	uri := fmt.Sprintf("vless://%s@%s:%d", uuid, serverAddr, serverPort)

	var params []string
	params = append(params, "type="+vc.transportType)
	params = append(params, "security="+vc.security)
	if vc.encryption != "" {
		params = append(params, "encryption="+url.QueryEscape(vc.encryption))
	}
	if vc.flow != "" {
		params = append(params, "flow="+url.QueryEscape(vc.flow))
	}
	if vc.security == VLESSSecurityTLS || vc.security == VLESSSecurityReality {
		if vc.sni != "" {
			params = append(params, "sni="+url.QueryEscape(vc.sni))
		}
		if vc.fingerprint != "" {
			params = append(params, "fp="+url.QueryEscape(vc.fingerprint))
		}
		if vc.alpn != "" {
			params = append(params, "alpn="+url.QueryEscape(vc.alpn))
		}
	}
	if vc.security == VLESSSecurityTLS && vc.allowInsecure {
		params = append(params, "allowInsecure=1")
	}
	if vc.security == VLESSSecurityReality {
		params = append(params, "pbk="+url.QueryEscape(vc.publicKey))
		params = append(params, "sid="+url.QueryEscape(vc.shortID))
		if vc.spiderX != "" {
			params = append(params, "spx="+url.QueryEscape(vc.spiderX))
		}
	}
	switch vc.transportType {
	case VLESSTransportWS, VLESSTransportH2:
		if vc.host != "" {
			params = append(params, "host="+url.QueryEscape(vc.host))
		}
		if vc.path != "" {
			params = append(params, "path="+url.QueryEscape(vc.path))
		}
	case VLESSTransportGRPC:
		if vc.serviceName != "" {
			params = append(params, "serviceName="+url.QueryEscape(vc.serviceName))
		}
	}
	for _, k := range sortedKeys(vc.extra) {
		params = append(params, k+"="+url.QueryEscape(vc.extra[k]))
	}

	if len(params) > 0 {
		uri += "?" + strings.Join(params, "&")
	}
	if remarks != "" {
		uri += "#" + url.QueryEscape(remarks)
	}
	return uri
}

func (vc VLESSConfig) String() string {
	parts := []string{
		fmt.Sprintf("transport=%s", vc.transportType),
		fmt.Sprintf("security=%s", vc.security),
	}
	if vc.flow != "" {
		parts = append(parts, fmt.Sprintf("flow=%s", vc.flow))
	}
	if vc.sni != "" {
		parts = append(parts, fmt.Sprintf("sni=%s", vc.sni))
	}
	return strings.Join(parts, ", ")
}

func (vc VLESSConfig) Equals(other VLESSConfig) bool {
	return vc.transportType == other.transportType &&
		vc.flow == other.flow &&
		vc.encryption == other.encryption &&
		vc.security == other.security &&
		vc.sni == other.sni &&
		vc.fingerprint == other.fingerprint &&
		vc.alpn == other.alpn &&
		vc.allowInsecure == other.allowInsecure &&
		vc.host == other.host &&
		vc.path == other.path &&
		vc.serviceName == other.serviceName &&
		vc.publicKey == other.publicKey &&
		vc.shortID == other.shortID &&
		vc.spiderX == other.spiderX
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
