package valueobjects

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VMess transport types recognized from the "net" field.
const (
	VMessTransportTCP  = "tcp"
	VMessTransportWS   = "ws"
	VMessTransportGRPC = "grpc"
	VMessTransportHTTP = "http"
	VMessTransportQUIC = "quic"
)

// VMessConfig represents a VMess node, decoded from the v2rayN base64-JSON
// form. Rather than validate alterID/security/transport against fixed
// allowlists for outbound provisioning, this config is built from
// third-party subscription data: fields outside the known set are
// preserved rather than rejected, since a strict allowlist would drop
// nodes this module never needs to originate itself.
type VMessConfig struct {
	alterID       int
	security      string
	transportType string
	host          string
	path          string
	serviceName   string
	tls           bool
	sni           string
	alpn          string
	allowInsecure bool
}

// NewVMessConfig builds a VMessConfig. No field is validated against an
// allowlist; alterID below zero is clamped to zero since negative alterID
// has no meaning on the wire.
func NewVMessConfig(alterID int, security, transportType, host, path, serviceName string, tls bool, sni, alpn string, allowInsecure bool) VMessConfig {
	if alterID < 0 {
		alterID = 0
	}
	return VMessConfig{
		alterID: alterID, security: security, transportType: transportType,
		host: host, path: path, serviceName: serviceName,
		tls: tls, sni: sni, alpn: alpn, allowInsecure: allowInsecure,
	}
}

func (vc VMessConfig) AlterID() int          { return vc.alterID }
func (vc VMessConfig) Security() string      { return vc.security }
func (vc VMessConfig) TransportType() string { return vc.transportType }
func (vc VMessConfig) Host() string          { return vc.host }
func (vc VMessConfig) Path() string          { return vc.path }
func (vc VMessConfig) ServiceName() string   { return vc.serviceName }
func (vc VMessConfig) TLS() bool             { return vc.tls }
func (vc VMessConfig) SNI() string           { return vc.sni }
func (vc VMessConfig) ALPN() string          { return vc.alpn }
func (vc VMessConfig) AllowInsecure() bool   { return vc.allowInsecure }

// vmessJSONConfig is the v2rayN wire format for a vmess:// URI body.
type vmessJSONConfig struct {
	V    string `json:"v"`
	PS   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	ALPN string `json:"alpn"`
}

// ParseVMessJSON decodes a v2rayN vmess:// body into its raw JSON fields plus
// the UUID and server address/port, which the caller combines into a Node.
func ParseVMessJSON(body string) (cfg VMessConfig, uuid, server string, port uint16, remarks string, err error) {
	raw, decErr := decodeVMessBody(body)
	if decErr != nil {
		return VMessConfig{}, "", "", 0, "", decErr
	}
	var j vmessJSONConfig
	if err = json.Unmarshal(raw, &j); err != nil {
		return VMessConfig{}, "", "", 0, "", fmt.Errorf("vmess json: %w", err)
	}
	p, _ := strconv.Atoi(j.Port)
	cfg = VMessConfig{
		alterID:       atoiOrZero(j.Aid),
		security:      j.Scy,
		transportType: j.Net,
		host:          j.Host,
		path:          j.Path,
		tls:           j.TLS == "tls",
		sni:           j.SNI,
		alpn:          j.ALPN,
	}
	if j.Net == VMessTransportGRPC {
		cfg.serviceName = j.Path
	}
	return cfg, j.ID, j.Add, uint16(p), j.PS, nil
}

func decodeVMessBody(body string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(body); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("vmess body is not valid base64")
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ToURI renders the v2rayN base64-JSON form: vmess://base64(json)
func (vc VMessConfig) ToURI(serverAddr string, serverPort uint16, uuid, remarks string) (string, error) {
	j := vmessJSONConfig{
		V: "2", PS: remarks, Add: serverAddr, Port: strconv.Itoa(int(serverPort)),
		ID: uuid, Aid: strconv.Itoa(vc.alterID), Scy: vc.security, Net: vc.transportType,
		Type: "none", ALPN: vc.alpn,
	}
	if vc.tls {
		j.TLS = "tls"
		j.SNI = vc.sni
	}
	switch vc.transportType {
	case VMessTransportWS, VMessTransportHTTP:
		j.Host, j.Path = vc.host, vc.path
	case VMessTransportGRPC:
		j.Path = vc.serviceName
	}
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("marshal vmess config: %w", err)
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(data), nil
}

func (vc VMessConfig) String() string {
	parts := []string{
		fmt.Sprintf("transport=%s", vc.transportType),
		fmt.Sprintf("security=%s", vc.security),
	}
	if vc.tls {
		parts = append(parts, "tls=true")
	}
	if vc.host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", vc.host))
	}
	return strings.Join(parts, ", ")
}

func (vc VMessConfig) Equals(other VMessConfig) bool {
	return vc.alterID == other.alterID && vc.security == other.security &&
		vc.transportType == other.transportType && vc.host == other.host &&
		vc.path == other.path && vc.serviceName == other.serviceName &&
		vc.tls == other.tls && vc.sni == other.sni && vc.alpn == other.alpn &&
		vc.allowInsecure == other.allowInsecure
}
