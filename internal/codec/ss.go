package codec

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/errs"
)

const ssPrefix = "ss://"

// parseSS decodes ss://<base64>@<host>:<port>#<name> or the bare
// ss://<base64>#<name> form where the decoded payload carries host:port
// itself (method:password@host:port). A "?plugin=<plugin>;<opts>" query, as
// written by SSConfig.ToURI, is read back into the plugin fields.
func parseSS(line, provenance string) (node.Node, error) {
	rest := strings.TrimPrefix(line, ssPrefix)

	name := ""
	if hash := strings.IndexByte(rest, '#'); hash >= 0 {
		if unescaped, err := url.QueryUnescape(rest[hash+1:]); err == nil {
			name = unescaped
		} else {
			name = rest[hash+1:]
		}
		rest = rest[:hash]
	}

	plugin, pluginOpts := "", ""
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		if vals, err := url.ParseQuery(rest[q+1:]); err == nil {
			plugin, pluginOpts, _ = strings.Cut(vals.Get("plugin"), ";")
		}
		rest = rest[:q]
	}

	var userinfo, hostport string
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		userinfo, hostport = rest[:at], rest[at+1:]
	} else {
		userinfo = rest
	}

	decoded, err := decodeBase64Lenient(userinfo)
	if err != nil {
		return node.Node{}, errs.WrapDecode(err)
	}

	var method, password, server string
	var port uint16
	if hostport != "" {
		method, password, err = splitMethodPassword(string(decoded))
		if err != nil {
			return node.Node{}, err
		}
		server, port, err = splitHostPort(hostport)
		if err != nil {
			return node.Node{}, err
		}
	} else {
		// Legacy form: the whole decoded payload is method:password@host:port.
		method, password, server, port, err = splitFullSSPayload(string(decoded))
		if err != nil {
			return node.Node{}, err
		}
	}

	cfg, err := valueobjects.NewSSConfig(method, password, plugin, pluginOpts)
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}

	n, err := node.New(valueobjects.ProtocolShadowsocks, server, port, name, provenance)
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}
	return n.WithSS(cfg), nil
}

func splitMethodPassword(s string) (method, password string, err error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return "", "", errs.WrapMalformed("ss userinfo missing method:password separator")
	}
	return s[:idx], s[idx+1:], nil
}

func splitFullSSPayload(s string) (method, password, server string, port uint16, err error) {
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return "", "", "", 0, errs.WrapMalformed("ss payload missing @host:port")
	}
	method, password, err = splitMethodPassword(s[:at])
	if err != nil {
		return "", "", "", 0, err
	}
	server, port, err = splitHostPort(s[at+1:])
	return method, password, server, port, err
}

func splitHostPort(hostport string) (string, uint16, error) {
	idx := strings.LastIndexByte(hostport, ':')
	if idx < 0 {
		return "", 0, errs.WrapMalformed("missing port in host:port")
	}
	host := hostport[:idx]
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	p, err := strconv.Atoi(hostport[idx+1:])
	if err != nil || p < 1 || p > 65535 {
		return "", 0, errs.WrapMalformed(fmt.Sprintf("invalid port %q", hostport[idx+1:]))
	}
	return host, uint16(p), nil
}

// decodeBase64Lenient accepts URL-safe or standard base64 with or without
// padding, repairing missing padding before decoding.
func decodeBase64Lenient(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	if raw, err := base64.URLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("not valid base64")
}
