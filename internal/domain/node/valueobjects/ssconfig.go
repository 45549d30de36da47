package valueobjects

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const (
	MethodAES256GCM             = "aes-256-gcm"
	MethodAES128GCM             = "aes-128-gcm"
	MethodChacha20IETFPoly1305  = "chacha20-ietf-poly1305"
	MethodXChacha20IETFPoly1305 = "xchacha20-ietf-poly1305"
	Method2022Blake3AES128GCM   = "2022-blake3-aes-128-gcm"
	Method2022Blake3AES256GCM   = "2022-blake3-aes-256-gcm"
)

var validSSMethods = map[string]bool{
	MethodAES256GCM:             true,
	MethodAES128GCM:             true,
	MethodChacha20IETFPoly1305:  true,
	MethodXChacha20IETFPoly1305: true,
	Method2022Blake3AES128GCM:   true,
	Method2022Blake3AES256GCM:   true,
}

// SSConfig represents a Shadowsocks node's cipher and optional obfuscation
// plugin. Rather than validate against a fixed method allowlist for
// outbound node provisioning, this value object must also round-trip
// ciphers it has never seen before: subscriptions frequently advertise
// methods ahead of any allowlist, so an unrecognized method is preserved
// verbatim rather than rejected.
type SSConfig struct {
	method     string
	password   string
	plugin     string
	pluginOpts string
}

// NewSSConfig builds an SSConfig. Only password is required; an empty method
// is preserved as-is rather than defaulted, since a malformed upstream entry
// should surface as an invalid node, not a silently substituted cipher.
func NewSSConfig(method, password, plugin, pluginOpts string) (SSConfig, error) {
	if password == "" {
		return SSConfig{}, fmt.Errorf("shadowsocks password must not be empty")
	}
	return SSConfig{method: method, password: password, plugin: plugin, pluginOpts: pluginOpts}, nil
}

func (c SSConfig) Method() string     { return c.method }
func (c SSConfig) Password() string   { return c.password }
func (c SSConfig) Plugin() string     { return c.plugin }
func (c SSConfig) PluginOpts() string { return c.pluginOpts }

// IsKnownMethod reports whether method is in the set this module recognizes
// well enough to have dedicated handling; unknown methods still round-trip.
func (c SSConfig) IsKnownMethod() bool {
	return validSSMethods[c.method]
}

// ToURI renders the SIP002 form: ss://base64(method:password)@host:port#name
func (c SSConfig) ToURI(server string, port uint16, name string) string {
	auth := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(
		[]byte(fmt.Sprintf("%s:%s", c.method, c.password)))
	uri := fmt.Sprintf("ss://%s@%s:%d", auth, server, port)
	if c.plugin != "" {
		uri += "?plugin=" + url.QueryEscape(c.plugin+";"+c.pluginOpts)
	}
	if name != "" {
		uri += "#" + url.QueryEscape(name)
	}
	return uri
}

func (c SSConfig) String() string {
	parts := []string{fmt.Sprintf("method=%s", c.method)}
	if c.plugin != "" {
		parts = append(parts, fmt.Sprintf("plugin=%s", c.plugin))
	}
	return strings.Join(parts, ", ")
}

func (c SSConfig) Equals(other SSConfig) bool {
	return c.method == other.method && c.password == other.password &&
		c.plugin == other.plugin && c.pluginOpts == other.pluginOpts
}
