package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/instantpreview/live"
)

func next(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for gate")
		return false
	}
}

func quiet(t *testing.T, ch <-chan bool, d time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected gate value %v", v)
	case <-time.After(d):
	}
}

func TestGate_EmitsOnlyOnChange(t *testing.T) {
	g := New(live.New(true), WithSettle(0))
	out := g.Run(t.Context())

	quiet(t, out, 20*time.Millisecond)

	g.Focus(true)
	assert.True(t, next(t, out))

	// Hover while focused leaves the combined value unchanged.
	g.Hover(true)
	g.Hover(false)
	quiet(t, out, 20*time.Millisecond)

	g.Focus(false)
	assert.False(t, next(t, out))

	g.Focus(false)
	quiet(t, out, 20*time.Millisecond)
}

func TestGate_RequiresEnabled(t *testing.T) {
	enabled := live.New(false)
	g := New(enabled, WithSettle(0))
	out := g.Run(t.Context())

	g.Hover(true)
	quiet(t, out, 20*time.Millisecond)

	enabled.Set(true)
	assert.True(t, next(t, out))
	assert.True(t, g.State().Get())

	enabled.Set(false)
	assert.False(t, next(t, out))
	assert.False(t, g.State().Get())
}

func TestGate_HoverLeaveSettles(t *testing.T) {
	g := New(live.New(true), WithSettle(50*time.Millisecond))
	out := g.Run(t.Context())

	g.Hover(true)
	assert.True(t, next(t, out))

	// Leave and come back inside the settle window: no edge.
	g.Hover(false)
	time.Sleep(10 * time.Millisecond)
	g.Hover(true)
	quiet(t, out, 100*time.Millisecond)

	start := time.Now()
	g.Hover(false)
	assert.False(t, next(t, out))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestGate_FocusLossIsImmediate(t *testing.T) {
	g := New(live.New(true), WithSettle(time.Hour))
	out := g.Run(t.Context())

	g.Focus(true)
	assert.True(t, next(t, out))
	g.Focus(false)
	assert.False(t, next(t, out))
}

func TestGate_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	g := New(live.New(true))
	out := g.Run(ctx)

	g.Focus(true)
	assert.True(t, next(t, out))
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("output not closed")
	}

	// Inputs after shutdown must not block.
	g.Focus(false)
	for i := 0; i < 32; i++ {
		g.Hover(true)
	}
	assert.False(t, g.State().Get())
}
