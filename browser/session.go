package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

//go:embed session.js
var sessionJS string

const bindingName = "__preview_binding"

// LinkAttr is stamped on every anchor of a live page with the anchor's
// index, so the parsed copy of the page can be matched to the live one.
const LinkAttr = "data-preview-link"

// PreferenceAttr is the body attribute mirroring the preview preference.
const PreferenceAttr = "data-md-preview"

// EventKind is the pointer interaction reported by a live page.
type EventKind string

const (
	EventFocus EventKind = "focus"
	EventHover EventKind = "hover"
	// EventToggle is a change of a preview toggle input. It carries no
	// link; Input holds the chosen input's value.
	EventToggle EventKind = "toggle"
)

// ToggleName is the name of the preview toggle inputs on a live page.
const ToggleName = "__preview"

// Event is one focus or hover change on a live page link, or a change of
// the preview toggle.
type Event struct {
	Link  string    `json:"link,omitempty"`
	Kind  EventKind `json:"kind"`
	Value bool      `json:"value,omitempty"`
	Input string    `json:"input,omitempty"`
}

// Session attaches to a live tab: it reports link interactions and mounts
// overlays into the page.
type Session struct {
	tab    *Tab
	logger *slog.Logger
	events chan Event
}

// NewSession installs the event binding on tab. Events stop when ctx is
// done.
func NewSession(ctx context.Context, tab *Tab, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{tab: tab, logger: logger, events: make(chan Event, 64)}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(tab.Page); err != nil {
		logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}

	go s.listen(ctx)

	if _, err := tab.Page.Context(ctx).Eval(strings.TrimSpace(sessionJS)); err != nil {
		return nil, fmt.Errorf("browser: inject session: %w", err)
	}
	return s, nil
}

// Events returns link interactions in arrival order.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) listen(ctx context.Context) {
	defer close(s.events)
	s.tab.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		ev, err := decodeEvent(e.Payload)
		if err != nil {
			s.logger.Warn("browser: parse binding payload", "error", err)
			return
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
		}
	})()
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	switch ev.Kind {
	case EventFocus, EventHover:
		if ev.Link == "" {
			return Event{}, fmt.Errorf("event without link")
		}
	case EventToggle:
		if ev.Input == "" {
			return Event{}, fmt.Errorf("toggle without input value")
		}
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return ev, nil
}

// HTML returns the live page's current markup, links stamped.
func (s *Session) HTML(ctx context.Context) ([]byte, error) {
	return s.tab.HTML(ctx)
}

// Mount inserts overlay markup at the end of body and places it under the
// link. The overlay starts hidden when hidden is set.
func (s *Session) Mount(ctx context.Context, link, id, markup string, hidden bool) error {
	_, err := s.tab.Page.Context(ctx).Eval(`(link, id, markup, hidden) => {
		const tmpl = document.createElement("template");
		tmpl.innerHTML = markup;
		const el = tmpl.content.firstElementChild;
		if (!el) return;
		el.id = id;
		el.hidden = hidden;
		el.style.position = "absolute";
		el.style.zIndex = "10000";
		const a = document.querySelector('[data-preview-link="' + link + '"]');
		if (a) {
			const r = a.getBoundingClientRect();
			el.style.left = (r.left + window.scrollX) + "px";
			el.style.top = (r.bottom + window.scrollY + 4) + "px";
		}
		document.body.appendChild(el);
	}`, link, id, markup, hidden)
	if err != nil {
		return fmt.Errorf("browser: mount %s: %w", id, err)
	}
	return nil
}

// SetPreference writes the preview preference into the live page: the body
// attribute and the checked toggle input. It satisfies prefs.Mirror.
func (s *Session) SetPreference(ctx context.Context, state string) error {
	_, err := s.tab.Page.Context(ctx).Eval(`(name, attr, state) => {
		document.body.setAttribute(attr, state);
		document.querySelectorAll('input[name="' + name + '"]').forEach((el) => {
			el.checked = el.value === state;
		});
	}`, ToggleName, PreferenceAttr, state)
	if err != nil {
		return fmt.Errorf("browser: set preference: %w", err)
	}
	return nil
}

// SetHidden shows or hides a mounted overlay.
func (s *Session) SetHidden(ctx context.Context, id string, hidden bool) error {
	_, err := s.tab.Page.Context(ctx).Eval(`(id, hidden) => {
		const el = document.getElementById(id);
		if (el) el.hidden = hidden;
	}`, id, hidden)
	return err
}

// Unmount removes a mounted overlay.
func (s *Session) Unmount(ctx context.Context, id string) error {
	_, err := s.tab.Page.Context(ctx).Eval(`(id) => {
		const el = document.getElementById(id);
		if (el) el.remove();
	}`, id)
	if err != nil {
		return fmt.Errorf("browser: unmount %s: %w", id, err)
	}
	return nil
}
