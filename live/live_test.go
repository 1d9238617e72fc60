package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestSubscribe_ReplaysCurrent(t *testing.T) {
	v := New(true)
	ch := v.Subscribe(t.Context())
	assert.True(t, recv(t, ch))
}

func TestSet_SuppressesDuplicates(t *testing.T) {
	v := New(false)
	ch := v.Subscribe(t.Context())
	assert.False(t, recv(t, ch))

	assert.False(t, v.Set(false))
	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery %v for duplicate value", got)
	default:
	}

	assert.True(t, v.Set(true))
	assert.True(t, recv(t, ch))
	assert.True(t, v.Get())
}

func TestSet_LatestWins(t *testing.T) {
	v := New(0)
	ch := v.Subscribe(t.Context())
	assert.Equal(t, 0, recv(t, ch))

	v.Set(1)
	v.Set(2)
	v.Set(3)
	assert.Equal(t, 3, recv(t, ch))
}

func TestSubscribe_ClosedOnCancel(t *testing.T) {
	v := New("a")
	ctx, cancel := context.WithCancel(context.Background())
	ch := v.Subscribe(ctx)
	recv(t, ch)

	cancel()
	require.Eventually(t, func() bool { return v.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)

	// Setting after unsubscribe must not panic on the closed channel.
	assert.True(t, v.Set("b"))
}

func TestSubscribe_Many(t *testing.T) {
	v := New(false)
	a := v.Subscribe(t.Context())
	b := v.Subscribe(t.Context())
	recv(t, a)
	recv(t, b)

	v.Set(true)
	assert.True(t, recv(t, a))
	assert.True(t, recv(t, b))
}
