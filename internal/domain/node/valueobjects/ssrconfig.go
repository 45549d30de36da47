package valueobjects

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// SSRConfig represents a ShadowsocksR node. SSR predates SIP002 and carries
// its own protocol/obfs layer on top of the base cipher, encoded positionally
// in the URI rather than as named query parameters.
type SSRConfig struct {
	method     string
	password   string
	protocol   string
	protoParam string
	obfs       string
	obfsParam  string
	remarks    string
	group      string
}

// NewSSRConfig builds an SSRConfig. protocol and obfs default to "origin" and
// "plain" respectively when omitted, matching ShadowsocksR client defaults.
func NewSSRConfig(method, password, protocol, protoParam, obfs, obfsParam, remarks, group string) (SSRConfig, error) {
	if password == "" {
		return SSRConfig{}, fmt.Errorf("shadowsocksr password must not be empty")
	}
	if protocol == "" {
		protocol = "origin"
	}
	if obfs == "" {
		obfs = "plain"
	}
	return SSRConfig{
		method: method, password: password,
		protocol: protocol, protoParam: protoParam,
		obfs: obfs, obfsParam: obfsParam,
		remarks: remarks, group: group,
	}, nil
}

func (c SSRConfig) Method() string     { return c.method }
func (c SSRConfig) Password() string   { return c.password }
func (c SSRConfig) Protocol() string   { return c.protocol }
func (c SSRConfig) ProtoParam() string { return c.protoParam }
func (c SSRConfig) Obfs() string       { return c.obfs }
func (c SSRConfig) ObfsParam() string  { return c.obfsParam }
func (c SSRConfig) Remarks() string    { return c.remarks }
func (c SSRConfig) Group() string      { return c.group }

// ToURI renders the ssr:// legacy form:
// ssr://base64(host:port:protocol:method:obfs:base64pass/?params)
func (c SSRConfig) ToURI(server string, port uint16) string {
	passB64 := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(c.password))
	body := fmt.Sprintf("%s:%d:%s:%s:%s:%s", server, port, c.protocol, c.method, c.obfs, passB64)

	params := url.Values{}
	enc := func(s string) string {
		return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
	}
	if c.obfsParam != "" {
		params.Set("obfsparam", enc(c.obfsParam))
	}
	if c.protoParam != "" {
		params.Set("protoparam", enc(c.protoParam))
	}
	if c.remarks != "" {
		params.Set("remarks", enc(c.remarks))
	}
	if c.group != "" {
		params.Set("group", enc(c.group))
	}
	if len(params) > 0 {
		body += "/?" + params.Encode()
	}
	return "ssr://" + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(body))
}

func (c SSRConfig) String() string {
	parts := []string{
		fmt.Sprintf("method=%s", c.method),
		fmt.Sprintf("protocol=%s", c.protocol),
		fmt.Sprintf("obfs=%s", c.obfs),
	}
	return strings.Join(parts, ", ")
}

func (c SSRConfig) Equals(other SSRConfig) bool {
	return c.method == other.method && c.password == other.password &&
		c.protocol == other.protocol && c.protoParam == other.protoParam &&
		c.obfs == other.obfs && c.obfsParam == other.obfsParam
}
