// SPDX-License-Identifier: MIT

package intraproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversToOtherReadersOnSameTopic(t *testing.T) {
	reg := NewRegistry()
	writer := New(reg, "Temperature", Config{Depth: 4})
	defer writer.Close()
	reader := New(reg, "Temperature", Config{Depth: 4})
	defer reader.Close()

	require.NoError(t, writer.Send(context.Background(), writer.local, []byte("sample-1")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, _, err := reader.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("sample-1"), got)
}

func TestSendNeverLoopsBackToItself(t *testing.T) {
	reg := NewRegistry()
	solo := New(reg, "Loopback", Config{Depth: 4})
	defer solo.Close()

	require.NoError(t, solo.Send(context.Background(), solo.local, []byte("x")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := solo.Receive(ctx)
	assert.Error(t, err)
}

func TestSendDropsWhenQueueFullAndNotWaiting(t *testing.T) {
	reg := NewRegistry()
	writer := New(reg, "Full", Config{Depth: 1})
	defer writer.Close()
	reader := New(reg, "Full", Config{Depth: 1})
	defer reader.Close()

	require.NoError(t, writer.Send(context.Background(), writer.local, []byte("a")))
	require.NoError(t, writer.Send(context.Background(), writer.local, []byte("b")))

	assert.Equal(t, uint64(1), reader.q.drop.Load())
}

func TestCloseDeregistersQueue(t *testing.T) {
	reg := NewRegistry()
	writer := New(reg, "Bye", Config{Depth: 1})
	defer writer.Close()
	reader := New(reg, "Bye", Config{Depth: 1})

	require.NoError(t, reader.Close())
	require.NoError(t, writer.Send(context.Background(), writer.local, []byte("nobody listens")))
}
