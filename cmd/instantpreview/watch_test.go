package main

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/instantpreview/browser"
	"github.com/hazyhaar/instantpreview/host"
	"github.com/hazyhaar/instantpreview/prefs"
	"github.com/hazyhaar/instantpreview/store"
)

const togglePage = `<html><body>
<input type="radio" name="__preview" value="on">
<input type="radio" name="__preview" value="off">
</body></html>`

type pageMirror struct {
	mu     sync.Mutex
	states []string
}

func (m *pageMirror) SetPreference(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
	return nil
}

func (m *pageMirror) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return ""
	}
	return m.states[len(m.states)-1]
}

func TestDispatch_ToggleReachesPreference(t *testing.T) {
	u, _ := url.Parse("https://docs.example.org/")
	doc, err := host.Parse(strings.NewReader(togglePage), u)
	require.NoError(t, err)
	st := store.OpenMemory(t)

	ps, err := prefs.Open(t.Context(), st, doc)
	require.NoError(t, err)
	changes := ps.Enabled().Subscribe(t.Context())
	require.True(t, <-changes)

	mirror := &pageMirror{}
	ps.Reflect(t.Context(), mirror)
	require.Eventually(t, func() bool { return mirror.last() == "on" }, time.Second, 5*time.Millisecond)

	d := &dispatcher{prefs: ps, logger: slog.Default()}
	d.handle(t.Context(), browser.Event{Kind: browser.EventToggle, Input: "off"})

	v, ok, err := st.Load(t.Context(), prefs.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "false", v)

	assert.Equal(t, "off", doc.BodyAttr(prefs.BodyAttr))
	checked, ok := doc.Checked(prefs.Key)
	require.True(t, ok)
	assert.Equal(t, "off", checked)

	select {
	case got := <-changes:
		assert.False(t, got)
	case <-time.After(time.Second):
		t.Fatal("preference change not broadcast")
	}
	assert.Eventually(t, func() bool { return mirror.last() == "off" }, time.Second, 5*time.Millisecond)
}

func TestDispatch_UnknownLinkIgnored(t *testing.T) {
	ps, err := prefs.Open(t.Context(), prefs.NewMemory(), nil)
	require.NoError(t, err)

	d := &dispatcher{prefs: ps, logger: slog.Default()}
	d.handle(t.Context(), browser.Event{Link: "9", Kind: browser.EventHover, Value: true})
	assert.True(t, ps.Get())
}
