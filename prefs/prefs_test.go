package prefs

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/instantpreview/host"
	"github.com/hazyhaar/instantpreview/store"
)

const page = `<html><body>
<input type="radio" name="__preview" value="on">
<input type="radio" name="__preview" value="off">
</body></html>`

func newDoc(t *testing.T) *host.Document {
	t.Helper()
	u, _ := url.Parse("https://example.com/")
	d, err := host.Parse(strings.NewReader(page), u)
	require.NoError(t, err)
	return d
}

func TestOpen_DefaultsToEnabled(t *testing.T) {
	doc := newDoc(t)
	s, err := Open(t.Context(), NewMemory(), doc)
	require.NoError(t, err)

	assert.True(t, s.Get())
	assert.Equal(t, "on", doc.BodyAttr(BodyAttr))
	v, ok := doc.Checked(Key)
	require.True(t, ok)
	assert.Equal(t, "on", v)
}

func TestOpen_ReadsPersisted(t *testing.T) {
	mem := NewMemory()
	require.NoError(t, mem.Save(t.Context(), Key, "false"))
	doc := newDoc(t)

	s, err := Open(t.Context(), mem, doc)
	require.NoError(t, err)
	assert.False(t, s.Get())
	assert.Equal(t, "off", doc.BodyAttr(BodyAttr))
}

func TestOpen_UnreadableFallsBackToEnabled(t *testing.T) {
	mem := NewMemory()
	require.NoError(t, mem.Save(t.Context(), Key, "maybe"))
	s, err := Open(t.Context(), mem, nil)
	require.NoError(t, err)
	assert.True(t, s.Get())
}

func TestSet_PersistsMirrorsBroadcasts(t *testing.T) {
	mem := NewMemory()
	doc := newDoc(t)
	s, err := Open(t.Context(), mem, doc)
	require.NoError(t, err)

	sub := s.Enabled().Subscribe(t.Context())
	assert.True(t, <-sub)

	require.NoError(t, s.Toggle(t.Context(), "off"))
	assert.False(t, <-sub)
	assert.Equal(t, 1, mem.Saves)
	assert.Equal(t, "off", doc.BodyAttr(BodyAttr))
	v, _ := doc.Checked(Key)
	assert.Equal(t, "off", v)

	raw, _, _ := mem.Load(t.Context(), Key)
	assert.Equal(t, "false", raw)
}

func TestSet_DuplicateHasNoSideEffects(t *testing.T) {
	mem := NewMemory()
	s, err := Open(t.Context(), mem, newDoc(t))
	require.NoError(t, err)

	require.NoError(t, s.Set(t.Context(), true))
	require.NoError(t, s.Toggle(t.Context(), "on"))
	assert.Equal(t, 0, mem.Saves)

	require.NoError(t, s.Toggle(t.Context(), "whatever"))
	require.NoError(t, s.Set(t.Context(), false))
	assert.Equal(t, 1, mem.Saves)
}

type failing struct{ *Memory }

func (failing) Save(context.Context, string, string) error { return errors.New("disk full") }

func TestSet_SaveErrorKeepsValue(t *testing.T) {
	s, err := Open(t.Context(), failing{NewMemory()}, nil)
	require.NoError(t, err)

	require.Error(t, s.Set(t.Context(), false))
	assert.True(t, s.Get())
}

func TestSQLiteStorage(t *testing.T) {
	st := store.OpenMemory(t)

	s, err := Open(t.Context(), st, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(t.Context(), false))

	reopened, err := Open(t.Context(), st, nil)
	require.NoError(t, err)
	assert.False(t, reopened.Get())
}

type recordingMirror struct {
	states chan string
}

func (m recordingMirror) SetPreference(_ context.Context, state string) error {
	m.states <- state
	return nil
}

func TestReflect_PushesCurrentAndChanges(t *testing.T) {
	s, err := Open(t.Context(), NewMemory(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	m := recordingMirror{states: make(chan string, 4)}
	done := s.Reflect(ctx, m)
	assert.Equal(t, "on", <-m.states)

	require.NoError(t, s.Toggle(t.Context(), "off"))
	assert.Equal(t, "off", <-m.states)

	cancel()
	<-done
}
