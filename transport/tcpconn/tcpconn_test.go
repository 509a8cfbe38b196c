// SPDX-License-Identifier: MIT

package tcpconn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefix(first byte) hdds.GUIDPrefix {
	var p hdds.GUIDPrefix
	p[0] = first
	return p
}

func TestConnectionStatePredicates(t *testing.T) {
	assert.True(t, StateConnected.IsOperational())
	assert.False(t, StateConnecting.IsOperational())

	assert.True(t, StateClosed.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateConnected.IsTerminal())

	assert.True(t, StateConnecting.IsConnecting())
	assert.True(t, StateReconnecting.IsConnecting())
	assert.False(t, StateConnected.IsConnecting())
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Connected", StateConnected.String())
	assert.Equal(t, "Unknown", ConnectionState(99).String())
}

func TestTieBreakerLocalSmaller(t *testing.T) {
	local := prefix(0x01)
	remote := prefix(0x02)

	// local is smaller so local plays server: keep the accepted side.
	assert.True(t, ShouldKeepConnection(local, remote, false))
	assert.False(t, ShouldKeepConnection(local, remote, true))
}

func TestTieBreakerRemoteSmaller(t *testing.T) {
	local := prefix(0x02)
	remote := prefix(0x01)

	// remote is smaller so remote plays server: keep the initiated side.
	assert.False(t, ShouldKeepConnection(local, remote, false))
	assert.True(t, ShouldKeepConnection(local, remote, true))
}

func TestTieBreakerEqual(t *testing.T) {
	guid := prefix(0x01)

	// Equal prefixes shouldn't occur in practice; local is not smaller
	// (not less-than), so the initiated side wins.
	assert.False(t, ShouldKeepConnection(guid, guid, false))
	assert.True(t, ShouldKeepConnection(guid, guid, true))
}

func TestDialAcceptSendReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan *Connection, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		acceptedCh <- Accept(conn)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-acceptedCh
	defer server.Close()

	client.MarkConnected(prefix(0x0A))
	server.MarkConnected(prefix(0x0B))

	assert.Equal(t, StateConnected, client.State())
	assert.True(t, client.WeInitiated())
	assert.False(t, server.WeInitiated())

	payload := []byte("hello rtps")
	require.NoError(t, client.Send(payload))

	got, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSendWhileNotConnectedErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	err = client.Send([]byte("too soon"))
	assert.Error(t, err)
}
