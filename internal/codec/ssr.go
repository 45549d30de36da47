package codec

import (
	"net/url"
	"strconv"
	"strings"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/errs"
)

const ssrPrefix = "ssr://"

// parseSSR decodes ssr://<base64> where the body is
// host:port:protocol:method:obfs:password_base64/?params, params being
// &-joined key=value_base64 pairs.
func parseSSR(line, provenance string) (node.Node, error) {
	rest := strings.TrimPrefix(line, ssrPrefix)
	decoded, err := decodeBase64Lenient(rest)
	if err != nil {
		return node.Node{}, errs.WrapDecode(err)
	}
	body := string(decoded)

	main := body
	query := ""
	if idx := strings.Index(body, "/?"); idx >= 0 {
		main, query = body[:idx], body[idx+2:]
	}

	fields := strings.SplitN(main, ":", 6)
	if len(fields) != 6 {
		return node.Node{}, errs.WrapMalformed("ssr body does not have 6 colon-delimited fields")
	}
	server := fields[0]
	port, err := strconv.Atoi(fields[1])
	if err != nil || port < 1 || port > 65535 {
		return node.Node{}, errs.WrapMalformed("ssr invalid port")
	}
	protocol, method, obfs := fields[2], fields[3], fields[4]
	password, err := decodeBase64Lenient(fields[5])
	if err != nil {
		return node.Node{}, errs.WrapDecode(err)
	}

	params, _ := url.ParseQuery(query)
	decodeParam := func(key string) string {
		v := params.Get(key)
		if v == "" {
			return ""
		}
		raw, err := decodeBase64Lenient(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}

	cfg, err := valueobjects.NewSSRConfig(method, string(password), protocol,
		decodeParam("protoparam"), obfs, decodeParam("obfsparam"),
		decodeParam("remarks"), decodeParam("group"))
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}

	name := cfg.Remarks()
	n, err := node.New(valueobjects.ProtocolShadowsocksR, server, uint16(port), name, provenance)
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}
	return n.WithSSR(cfg), nil
}
