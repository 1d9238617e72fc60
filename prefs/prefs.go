// Package prefs holds the reader's "previews on/off" preference: one shared
// signal read by every link gate, persisted through a Storage and mirrored
// into the host page (body attribute and the toggle radio inputs).
package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/hazyhaar/instantpreview/host"
	"github.com/hazyhaar/instantpreview/live"
)

const (
	// Key is the setting name, also the name of the toggle inputs.
	Key = "__preview"
	// BodyAttr is the body attribute mirroring the preference.
	BodyAttr = "data-md-preview"
)

// Storage persists settings. store.Store satisfies it.
type Storage interface {
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
}

// Mirror shows the preference on a page the Store does not own, such as a
// live browser tab. state is "on" or "off".
type Mirror interface {
	SetPreference(ctx context.Context, state string) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is the preference source of truth.
type Store struct {
	mu      sync.Mutex
	storage Storage
	doc     *host.Document
	enabled *live.Value[bool]
	logger  *slog.Logger
}

// Open reads the persisted preference (true when absent or unreadable as a
// boolean) and mirrors it into doc. doc may be nil.
func Open(ctx context.Context, storage Storage, doc *host.Document, opts ...Option) (*Store, error) {
	s := &Store{storage: storage, doc: doc, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	initial := true
	raw, ok, err := storage.Load(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("prefs: load: %w", err)
	}
	if ok {
		v, perr := strconv.ParseBool(raw)
		if perr != nil {
			s.logger.Warn("prefs: ignoring unreadable setting", "key", Key, "value", raw)
		} else {
			initial = v
		}
	}

	s.enabled = live.New(initial)
	if err := s.mirror(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Enabled returns the shared preference signal.
func (s *Store) Enabled() *live.Value[bool] {
	return s.enabled
}

// Get returns the current preference.
func (s *Store) Get() bool {
	return s.enabled.Get()
}

// Set changes the preference. Setting the current value is a no-op.
// Otherwise the value is persisted, mirrored into the page, then broadcast.
func (s *Store) Set(ctx context.Context, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v == s.enabled.Get() {
		return nil
	}
	if err := s.storage.Save(ctx, Key, strconv.FormatBool(v)); err != nil {
		return fmt.Errorf("prefs: save: %w", err)
	}
	if err := s.mirror(v); err != nil {
		return err
	}
	s.enabled.Set(v)
	s.logger.Debug("prefs: changed", "enabled", v)
	return nil
}

// Toggle applies a toggle input value: "on" enables, anything else
// disables.
func (s *Store) Toggle(ctx context.Context, value string) error {
	return s.Set(ctx, value == "on")
}

// Reflect pushes the current preference and every later change to m until
// ctx is done. The returned channel closes when it stops.
func (s *Store) Reflect(ctx context.Context, m Mirror) <-chan struct{} {
	done := make(chan struct{})
	changes := s.enabled.Subscribe(ctx)
	go func() {
		defer close(done)
		for v := range changes {
			if err := m.SetPreference(ctx, onOff(v)); err != nil {
				s.logger.Warn("prefs: reflect", "state", onOff(v), "error", err)
			}
		}
	}()
	return done
}

func (s *Store) mirror(v bool) error {
	if s.doc == nil {
		return nil
	}
	state := onOff(v)
	if err := s.doc.SetBodyAttr(BodyAttr, state); err != nil {
		return fmt.Errorf("prefs: mirror: %w", err)
	}
	s.doc.Check(Key, state)
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
