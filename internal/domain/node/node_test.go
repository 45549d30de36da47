package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypulse/internal/domain/node/valueobjects"
)

func TestNew_CanonicalizesServerAndSynthesizesName(t *testing.T) {
	n, err := New(valueobjects.ProtocolVMess, "EXAMPLE.COM", 10086, "", "https://sub.example/a")
	require.NoError(t, err)
	assert.Equal(t, "example.com", n.Server())
	assert.Equal(t, "vmess-example.com:10086", n.Name())
}

func TestNew_RejectsZeroPort(t *testing.T) {
	_, err := New(valueobjects.ProtocolTrojan, "example.com", 0, "", "")
	assert.Error(t, err)
}

func TestKey_IgnoresCaseAndProvenance(t *testing.T) {
	a, err := New(valueobjects.ProtocolVMess, "Example.com", 10086, "from-a", "subA")
	require.NoError(t, err)
	b, err := New(valueobjects.ProtocolVMess, "EXAMPLE.COM", 10086, "from-b", "subB")
	require.NoError(t, err)
	assert.Equal(t, a.Key(), b.Key())
}

func TestCanonicalURI_Trojan(t *testing.T) {
	cfg, err := valueobjects.NewTrojanConfig("hunter2", "tcp", "", "", "example.com", "", false)
	require.NoError(t, err)
	n, err := New(valueobjects.ProtocolTrojan, "example.com", 443, "node-1", "sub")
	require.NoError(t, err)
	n = n.WithTrojan(cfg)

	uri, err := n.CanonicalURI()
	require.NoError(t, err)
	assert.Contains(t, uri, "trojan://hunter2@example.com:443")
	assert.Contains(t, uri, "#node-1")
}

func TestMarkValidated_RoundTrips(t *testing.T) {
	n, err := New(valueobjects.ProtocolShadowsocks, "example.com", 8388, "", "")
	require.NoError(t, err)
	n = n.MarkValidated(120, true, "")
	latency, ok := n.MeasuredLatencyMs()
	require.True(t, ok)
	assert.Equal(t, 120, latency)
	assert.True(t, n.Valid())
}
