package codec

import (
	"net/url"
	"strconv"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/errs"
)

// parseTrojan decodes trojan://<password>@<host>:<port>?<querystring>#<name>.
// Recognized query keys per the grammar: {sni, alpn, allowInsecure, peer,
// type, host, path}. "peer" is an older alias for "sni" some generators
// still emit; it is honored as a fallback when sni is absent. For the grpc
// transport, "serviceName" (which TrojanConfig.ToURI writes in place of
// "host") is read back as the host when "host" is absent.
func parseTrojan(line, provenance string) (node.Node, error) {
	u, err := url.Parse(line)
	if err != nil {
		return node.Node{}, errs.WrapMalformed("trojan: " + err.Error())
	}
	if u.User == nil || u.User.Username() == "" {
		return node.Node{}, errs.WrapMalformed("trojan uri missing password")
	}
	password := u.User.Username()
	server := u.Hostname()
	if server == "" {
		return node.Node{}, errs.WrapMalformed("trojan uri missing host")
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 || port > 65535 {
		return node.Node{}, errs.WrapMalformed("trojan uri missing or invalid port")
	}

	q := u.Query()
	sni := q.Get("sni")
	if sni == "" {
		sni = q.Get("peer")
	}

	host := q.Get("host")
	if host == "" && q.Get("type") == valueobjects.TrojanTransportGRPC {
		host = q.Get("serviceName")
	}

	cfg, err := valueobjects.NewTrojanConfig(password, q.Get("type"), host, q.Get("path"), sni, q.Get("alpn"), q.Get("allowInsecure") == "1")
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}

	name := u.Fragment

	n, err := node.New(valueobjects.ProtocolTrojan, server, uint16(port), name, provenance)
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}
	return n.WithTrojan(cfg), nil
}
