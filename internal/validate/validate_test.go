package validate

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/logging"
)

func testLogger(t *testing.T) logging.Interface {
	t.Helper()
	require.NoError(t, logging.Init(logging.Config{Level: "error", Format: "json", OutputPath: "stdout"}))
	return logging.NewLogger()
}

func listenerNode(t *testing.T) (node.Node, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	n, err := node.New(valueobjects.ProtocolTrojan, "127.0.0.1", mustPort(t, port), "", "sub")
	require.NoError(t, err)
	return n, func() { ln.Close() }
}

func mustPort(t *testing.T, s string) uint16 {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return uint16(p)
}

func TestRun_ValidNodeReportsLatency(t *testing.T) {
	n, closeFn := listenerNode(t)
	defer closeFn()

	v := New(DefaultConfig(), testLogger(t))
	ranked, report := v.Run(context.Background(), []node.Node{n})

	require.Len(t, ranked, 1)
	assert.True(t, ranked[0].Valid())
	lat, ok := ranked[0].MeasuredLatencyMs()
	require.True(t, ok)
	assert.GreaterOrEqual(t, lat, 0)
	assert.Equal(t, 1, report.TotalNodes)
	assert.Equal(t, 1, report.ValidNodes)
}

func TestRun_RefusedConnectionIsInvalid(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close() // closed immediately: nothing listening, connection refused

	n, err := node.New(valueobjects.ProtocolTrojan, "127.0.0.1", mustPort(t, port), "", "sub")
	require.NoError(t, err)

	v := New(DefaultConfig(), testLogger(t))
	ranked, report := v.Run(context.Background(), []node.Node{n})

	require.Len(t, ranked, 1)
	assert.False(t, ranked[0].Valid())
	assert.Equal(t, string(ReasonRefused), ranked[0].FailureReason())
	assert.Equal(t, 0, report.ValidNodes)
}

func TestRun_RanksByAscendingLatency(t *testing.T) {
	n1, close1 := listenerNode(t)
	defer close1()
	n2, close2 := listenerNode(t)
	defer close2()

	v := New(DefaultConfig(), testLogger(t))
	ranked, _ := v.Run(context.Background(), []node.Node{n1, n2})

	valid := ValidPrefix(ranked)
	require.Len(t, valid, 2)
	l0, _ := valid[0].MeasuredLatencyMs()
	l1, _ := valid[1].MeasuredLatencyMs()
	assert.LessOrEqual(t, l0, l1)
}

func TestRun_CancellationMarksRemainingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := node.New(valueobjects.ProtocolTrojan, "127.0.0.1", 1, "", "sub")
	require.NoError(t, err)

	v := New(DefaultConfig(), testLogger(t))
	ranked, _ := v.Run(ctx, []node.Node{n})

	require.Len(t, ranked, 1)
	assert.False(t, ranked[0].Valid())
	assert.Equal(t, string(ReasonCancelled), ranked[0].FailureReason())
}

func TestRun_LenientModeAcceptsResolvableHost(t *testing.T) {
	n, err := node.New(valueobjects.ProtocolTrojan, "localhost", 1, "", "sub")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Mode = ModeLenient
	v := New(cfg, testLogger(t))
	ranked, _ := v.Run(context.Background(), []node.Node{n})

	require.Len(t, ranked, 1)
	assert.True(t, ranked[0].Valid())
	lat, _ := ranked[0].MeasuredLatencyMs()
	assert.Equal(t, 0, lat)
}

func TestRun_MaxOutputNodesTruncatesValidPrefix(t *testing.T) {
	var nodes []node.Node
	var closers []func()
	for i := 0; i < 3; i++ {
		n, c := listenerNode(t)
		nodes = append(nodes, n)
		closers = append(closers, c)
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	cfg := DefaultConfig()
	cfg.MaxOutputNodes = 2
	v := New(cfg, testLogger(t))
	ranked, _ := v.Run(context.Background(), nodes)

	assert.Len(t, ValidPrefix(ranked), 2)
}
