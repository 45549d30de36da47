package codec

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/errs"
)

// structuredDocument is the top-level shape of the structured multi-document
// text format: a "proxies" sequence of loosely-typed mappings, one per node.
// Each entry's own fields are decoded generically (map[string]any) because
// the field set varies by "type". Only the fields parseStructuredEntry reads
// are kept; other keys of an entry are not carried into the node (a VLESS
// node built from this format has no Extra entries).
type structuredDocument struct {
	Proxies []map[string]any `yaml:"proxies"`
}

// looksStructured is a cheap pre-check so the input-recognition discipline
// doesn't waste a full YAML parse on bodies that are obviously a line-based
// URI list (the overwhelmingly common case).
func looksStructured(body []byte) bool {
	var probe struct {
		Proxies []map[string]any `yaml:"proxies"`
	}
	if err := yaml.Unmarshal(body, &probe); err != nil {
		return false
	}
	return len(probe.Proxies) > 0
}

// parseStructured decodes the "proxies:" sequence into Nodes. Every entry is
// counted in parsed; entries whose type is unrecognized or whose required
// fields are missing are then skipped, same as a URI line that matches a
// scheme but fails to parse.
func parseStructured(body []byte, provenance string) (nodes []node.Node, parsed int, err error) {
	var doc structuredDocument
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, 0, errs.WrapDecode(err)
	}

	for _, entry := range doc.Proxies {
		parsed++
		n, perr := parseStructuredEntry(entry, provenance)
		if perr != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, parsed, nil
}

func parseStructuredEntry(entry map[string]any, provenance string) (node.Node, error) {
	typ := str(entry["type"])
	protocol, ok := valueobjects.ParseProtocol(normalizeStructuredType(typ))
	if !ok {
		return node.Node{}, errs.WrapProtocol(typ)
	}

	server := str(entry["server"])
	port, err := toPort(entry["port"])
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}
	name := str(entry["name"])

	n, err := node.New(protocol, server, port, name, provenance)
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}

	switch protocol {
	case valueobjects.ProtocolShadowsocks:
		cfg, err := valueobjects.NewSSConfig(str(entry["cipher"]), str(entry["password"]), str(entry["plugin"]), str(entry["plugin-opts"]))
		if err != nil {
			return node.Node{}, errs.WrapMalformed(err.Error())
		}
		return n.WithSS(cfg), nil

	case valueobjects.ProtocolShadowsocksR:
		cfg, err := valueobjects.NewSSRConfig(str(entry["cipher"]), str(entry["password"]),
			str(entry["protocol"]), str(entry["protocol-param"]),
			str(entry["obfs"]), str(entry["obfs-param"]), name, str(entry["group"]))
		if err != nil {
			return node.Node{}, errs.WrapMalformed(err.Error())
		}
		return n.WithSSR(cfg), nil

	case valueobjects.ProtocolVMess:
		alterID, _ := toInt(entry["alterId"])
		cfg := valueobjects.NewVMessConfig(alterID, str(entry["cipher"]), str(entry["network"]),
			wsOpt(entry, "host"), wsOpt(entry, "path"), str(entry["grpc-service-name"]),
			boolOf(entry["tls"]), str(entry["servername"]), "", boolOf(entry["skip-cert-verify"]))
		return n.WithVMess(cfg).WithID(str(entry["uuid"])), nil

	case valueobjects.ProtocolVLESS:
		cfg := valueobjects.NewVLESSConfig(str(entry["network"]), str(entry["flow"]), "",
			securityOf(entry), str(entry["servername"]), str(entry["client-fingerprint"]), "",
			boolOf(entry["skip-cert-verify"]), wsOpt(entry, "host"), wsOpt(entry, "path"),
			str(entry["grpc-service-name"]), realityOpt(entry, "public-key"), realityOpt(entry, "short-id"), "", nil)
		return n.WithVLESS(cfg).WithID(str(entry["uuid"])), nil

	case valueobjects.ProtocolTrojan:
		cfg, err := valueobjects.NewTrojanConfig(str(entry["password"]), str(entry["network"]),
			wsOpt(entry, "host"), wsOpt(entry, "path"), str(entry["sni"]), "", boolOf(entry["skip-cert-verify"]))
		if err != nil {
			return node.Node{}, errs.WrapMalformed(err.Error())
		}
		return n.WithTrojan(cfg), nil
	}

	return node.Node{}, errs.WrapProtocol(typ)
}

// normalizeStructuredType maps the structured format's "type" aliases onto
// this module's Protocol identifiers ("shadowsocks" -> "ss" etc.).
func normalizeStructuredType(typ string) string {
	switch typ {
	case "shadowsocks":
		return "ss"
	case "shadowsocksr":
		return "ssr"
	default:
		return typ
	}
}

func securityOf(entry map[string]any) string {
	if boolOf(entry["reality-opts"]) || entry["reality-opts"] != nil {
		return valueobjects.VLESSSecurityReality
	}
	if boolOf(entry["tls"]) {
		return valueobjects.VLESSSecurityTLS
	}
	return valueobjects.VLESSSecurityNone
}

func wsOpt(entry map[string]any, key string) string {
	for _, optsKey := range []string{"ws-opts", "http-opts", "h2-opts"} {
		if opts, ok := entry[optsKey].(map[string]any); ok {
			if v := str(opts[key]); v != "" {
				return v
			}
			if headers, ok := opts["headers"].(map[string]any); ok && key == "host" {
				return str(headers["Host"])
			}
		}
	}
	return str(entry[key])
}

func realityOpt(entry map[string]any, key string) string {
	if opts, ok := entry["reality-opts"].(map[string]any); ok {
		return str(opts[key])
	}
	return ""
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, nil
	}
}

func toPort(v any) (uint16, error) {
	n, err := toInt(v)
	if err != nil || n < 1 || n > 65535 {
		return 0, fmt.Errorf("invalid port %v", v)
	}
	return uint16(n), nil
}
