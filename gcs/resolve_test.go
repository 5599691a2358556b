package gcs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

func TestResolveFirstMessage(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	poller, clock := helpers.NewTestPoller(time.Second)
	sleep := poller.Sleep
	poller.Sleep = func(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
		err := sleep(ctx, stop, d)
		if clock.Waits() == 3 {
			conn.Push(link.Header{SystemID: 1, ComponentID: 1}, link.Heartbeat{Type: 2})
			conn.Push(link.Header{SystemID: 2, ComponentID: 1}, link.Heartbeat{Type: 2})
		}
		return err
	}
	r := Resolver{Conn: conn, Poller: poller, Log: log2.NewTest(t, log2.LDebug)}
	h, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, link.Header{SystemID: 1, ComponentID: 1}, h)
	assert.Equal(t, 3, clock.Waits())

	// consumed exactly one message
	h2, _, err := conn.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), h2.SystemID)
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	for i := 0; i < 5; i++ {
		conn.Push(link.Header{SystemID: 1, ComponentID: 1}, link.Heartbeat{Type: 2, CustomMode: uint32(i)})
	}
	r := Resolver{Conn: conn}
	for i := 0; i < 5; i++ {
		h, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, link.Header{SystemID: 1, ComponentID: 1}, h)
	}
}

func TestResolveSkipGCS(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	conn.Push(link.Header{SystemID: 255, ComponentID: 190}, link.Heartbeat{Type: link.TypeGCS})
	conn.Push(link.Header{SystemID: 1, ComponentID: 1}, link.Heartbeat{Type: 2})
	r := Resolver{Conn: conn, SkipGCS: true}
	h, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, link.Header{SystemID: 1, ComponentID: 1}, h)

	conn.Push(link.Header{SystemID: 255, ComponentID: 190}, link.Heartbeat{Type: link.TypeGCS})
	r.SkipGCS = false
	h, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(255), h.SystemID)
}

func TestResolveFatal(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	fatal := fmt.Errorf("tcp: connection reset")
	conn.PushError(fatal)
	conn.Push(link.Header{SystemID: 1, ComponentID: 1}, link.Heartbeat{})
	r := Resolver{Conn: conn}
	_, err := r.Resolve(context.Background())
	require.Error(t, err)
	assert.Equal(t, fatal, errors.Cause(err))
	assert.Contains(t, err.Error(), "resolve vehicle identity")
}

func TestResolveTimeout(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	r := Resolver{Conn: conn, Poller: helpers.NewPoller(time.Millisecond), Timeout: 20 * time.Millisecond}
	_, err := r.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), errors.ErrorStack(err))
}

func TestResolveCancel(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Resolver{Conn: conn, Poller: helpers.NewPoller(time.Hour)}
	_, err := r.Resolve(ctx)
	assert.Equal(t, context.Canceled, errors.Cause(err))
}
