package codec

import (
	"net/url"
	"strconv"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/errs"
)

// recognizedVLESSKeys per the grammar: {encryption, flow, security, sni,
// alpn, fp, type, host, path, serviceName}. Any other query key is
// preserved verbatim in VLESSConfig.Extra so the Emitter can round-trip it.
var recognizedVLESSKeys = map[string]bool{
	"encryption": true, "flow": true, "security": true, "sni": true,
	"alpn": true, "fp": true, "type": true, "host": true, "path": true,
	"serviceName": true, "allowInsecure": true, "pbk": true, "sid": true, "spx": true,
}

// parseVLESS decodes vless://<uuid>@<host>:<port>?<querystring>#<name>.
func parseVLESS(line, provenance string) (node.Node, error) {
	u, err := url.Parse(line)
	if err != nil {
		return node.Node{}, errs.WrapMalformed("vless: " + err.Error())
	}
	if u.User == nil || u.User.Username() == "" {
		return node.Node{}, errs.WrapMalformed("vless uri missing uuid")
	}
	uuid := u.User.Username()
	server := u.Hostname()
	if server == "" {
		return node.Node{}, errs.WrapMalformed("vless uri missing host")
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 || port > 65535 {
		return node.Node{}, errs.WrapMalformed("vless uri missing or invalid port")
	}

	q := u.Query()
	extra := map[string]string{}
	for k := range q {
		if !recognizedVLESSKeys[k] {
			extra[k] = q.Get(k)
		}
	}

	cfg := valueobjects.NewVLESSConfig(
		q.Get("type"), q.Get("flow"), q.Get("encryption"), q.Get("security"),
		q.Get("sni"), q.Get("fp"), q.Get("alpn"), q.Get("allowInsecure") == "1",
		q.Get("host"), q.Get("path"), q.Get("serviceName"),
		q.Get("pbk"), q.Get("sid"), q.Get("spx"), extra,
	)

	name := ""
	if u.Fragment != "" {
		name = u.Fragment
	}

	n, err := node.New(valueobjects.ProtocolVLESS, server, uint16(port), name, provenance)
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}
	return n.WithVLESS(cfg).WithID(uuid), nil
}
