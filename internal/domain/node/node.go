// Package node defines the Node entity: a parsed proxy endpoint, tagged by
// protocol, carrying a shared header plus exactly one per-protocol parameter
// bag from valueobjects. It deliberately skips mutex-guarded optimistic
// locking: a Node here is a read-mostly record produced once per run by the
// Ingestor and never concurrently mutated after construction — only its
// validation result is filled in later, by a single owning goroutine in the
// Validator.
package node

import (
	"fmt"
	"strings"

	"proxypulse/internal/domain/node/valueobjects"
)

// Key is the canonical deduplication identity: (protocol, lowercase(server), port).
type Key struct {
	Protocol valueobjects.Protocol
	Server   string
	Port     uint16
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d", k.Protocol, k.Server, k.Port)
}

// Node is a parsed proxy endpoint from a subscription body.
type Node struct {
	protocol   valueobjects.Protocol
	server     string
	port       uint16
	name       string
	provenance string // subscription URL this node was first seen in
	id         string // UUID for VMess/VLESS authentication; unused by SS/SSR/Trojan

	ss     *valueobjects.SSConfig
	ssr    *valueobjects.SSRConfig
	vmess  *valueobjects.VMessConfig
	vless  *valueobjects.VLESSConfig
	trojan *valueobjects.TrojanConfig

	// Validation result, set exactly once by the Validator.
	measuredLatencyMs *int
	valid             bool
	failureReason     string
}

// New builds a Node with no protocol config attached; callers set exactly
// one of WithSS/WithSSR/WithVMess/WithVLESS/WithTrojan before use. New
// rejects an unknown protocol, an empty server and port 0, lowercases the
// server, and synthesizes "<protocol>-<server>:<port>" when name is empty.
// Range checks on the raw port text are left to the Codec parsers, which
// report them with scheme-specific messages.
func New(protocol valueobjects.Protocol, server string, port uint16, name, provenance string) (Node, error) {
	if !protocol.IsValid() {
		return Node{}, fmt.Errorf("unknown protocol %q", protocol)
	}
	if server == "" {
		return Node{}, fmt.Errorf("node server must not be empty")
	}
	if port == 0 {
		return Node{}, fmt.Errorf("node port must be in 1-65535, got 0")
	}
	if name == "" {
		name = fmt.Sprintf("%s-%s:%d", protocol, server, port)
	}
	return Node{
		protocol:   protocol,
		server:     strings.ToLower(server),
		port:       port,
		name:       name,
		provenance: provenance,
	}, nil
}

func (n Node) WithSS(cfg valueobjects.SSConfig) Node         { n.ss = &cfg; return n }
func (n Node) WithSSR(cfg valueobjects.SSRConfig) Node       { n.ssr = &cfg; return n }
func (n Node) WithVMess(cfg valueobjects.VMessConfig) Node   { n.vmess = &cfg; return n }
func (n Node) WithVLESS(cfg valueobjects.VLESSConfig) Node   { n.vless = &cfg; return n }
func (n Node) WithTrojan(cfg valueobjects.TrojanConfig) Node { n.trojan = &cfg; return n }

func (n Node) Protocol() valueobjects.Protocol { return n.protocol }
func (n Node) Server() string                  { return n.server }
func (n Node) Port() uint16                    { return n.port }
func (n Node) Name() string                    { return n.name }
func (n Node) Provenance() string              { return n.provenance }
func (n Node) ID() string                      { return n.id }

func (n Node) SS() (valueobjects.SSConfig, bool) {
	if n.ss == nil {
		return valueobjects.SSConfig{}, false
	}
	return *n.ss, true
}

func (n Node) SSR() (valueobjects.SSRConfig, bool) {
	if n.ssr == nil {
		return valueobjects.SSRConfig{}, false
	}
	return *n.ssr, true
}

func (n Node) VMess() (valueobjects.VMessConfig, bool) {
	if n.vmess == nil {
		return valueobjects.VMessConfig{}, false
	}
	return *n.vmess, true
}

func (n Node) VLESS() (valueobjects.VLESSConfig, bool) {
	if n.vless == nil {
		return valueobjects.VLESSConfig{}, false
	}
	return *n.vless, true
}

func (n Node) Trojan() (valueobjects.TrojanConfig, bool) {
	if n.trojan == nil {
		return valueobjects.TrojanConfig{}, false
	}
	return *n.trojan, true
}

// Key returns the canonical deduplication identity.
func (n Node) Key() Key {
	return Key{Protocol: n.protocol, Server: n.server, Port: n.port}
}

// MarkValidated records the Validator's outcome for this node.
func (n Node) MarkValidated(latencyMs int, ok bool, failureReason string) Node {
	n.measuredLatencyMs = &latencyMs
	n.valid = ok
	n.failureReason = failureReason
	return n
}

// MeasuredLatencyMs returns the latency recorded by the Validator, if any.
func (n Node) MeasuredLatencyMs() (int, bool) {
	if n.measuredLatencyMs == nil {
		return 0, false
	}
	return *n.measuredLatencyMs, true
}

func (n Node) Valid() bool            { return n.valid }
func (n Node) FailureReason() string  { return n.failureReason }

// CanonicalURI renders the node as its scheme-native URI using whichever
// per-protocol config is attached, for Emitter output.
func (n Node) CanonicalURI() (string, error) {
	switch n.protocol {
	case valueobjects.ProtocolShadowsocks:
		if n.ss == nil {
			return "", fmt.Errorf("node %s has no shadowsocks config", n.Key())
		}
		return n.ss.ToURI(n.server, n.port, n.name), nil
	case valueobjects.ProtocolShadowsocksR:
		if n.ssr == nil {
			return "", fmt.Errorf("node %s has no shadowsocksr config", n.Key())
		}
		return n.ssr.ToURI(n.server, n.port), nil
	case valueobjects.ProtocolVMess:
		if n.vmess == nil {
			return "", fmt.Errorf("node %s has no vmess config", n.Key())
		}
		return n.vmess.ToURI(n.server, n.port, vmessUUIDFrom(n), n.name)
	case valueobjects.ProtocolVLESS:
		if n.vless == nil {
			return "", fmt.Errorf("node %s has no vless config", n.Key())
		}
		return n.vless.ToURI(vmessUUIDFrom(n), n.server, n.port, n.name), nil
	case valueobjects.ProtocolTrojan:
		if n.trojan == nil {
			return "", fmt.Errorf("node %s has no trojan config", n.Key())
		}
		return n.trojan.ToURI(n.server, n.port, n.name), nil
	default:
		return "", fmt.Errorf("unknown protocol %q", n.protocol)
	}
}

// vmessUUIDFrom reads the UUID carried on the node's id field. VMess and
// VLESS both authenticate with a UUID that lives outside their config value
// objects (it travels with the node's identity, not its transport
// parameters), so it is stashed on Node itself via WithID.
func vmessUUIDFrom(n Node) string {
	return n.id
}

// WithID attaches the UUID used by VMess/VLESS authentication.
func (n Node) WithID(id string) Node { n.id = id; return n }
