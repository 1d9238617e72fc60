// Package gate decides when a link's preview is active: the link has focus
// or the pointer is over it, and previews are enabled.
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/instantpreview/live"
)

// DefaultSettle is how long a hover-leave waits before it counts.
const DefaultSettle = 250 * time.Millisecond

type inputKind int

const (
	inputFocus inputKind = iota
	inputHover
)

type input struct {
	kind  inputKind
	value bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithSettle sets the hover-leave settle delay. Zero applies leaves
// immediately.
func WithSettle(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// Gate combines focus, hover and the enabled preference into one
// activation signal.
type Gate struct {
	enabled *live.Value[bool]
	settle  time.Duration
	logger  *slog.Logger

	mailbox chan input
	state   *live.Value[bool]

	once sync.Once
	done chan struct{}
}

// New creates a Gate reading the enabled preference from enabled.
func New(enabled *live.Value[bool], opts ...Option) *Gate {
	g := &Gate{
		enabled: enabled,
		settle:  DefaultSettle,
		logger:  slog.Default(),
		mailbox: make(chan input, 16),
		state:   live.New(false),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Focus reports a focus (true) or blur (false).
func (g *Gate) Focus(v bool) { g.send(input{kind: inputFocus, value: v}) }

// Hover reports a pointer enter (true) or leave (false).
func (g *Gate) Hover(v bool) { g.send(input{kind: inputHover, value: v}) }

func (g *Gate) send(in input) {
	select {
	case g.mailbox <- in:
	case <-g.done:
	}
}

// State returns the current activation as a signal. It stays false until
// Run has emitted true.
func (g *Gate) State() *live.Value[bool] {
	return g.state
}

// Run starts the gate and returns its activation edges. The first value is
// always true, and values alternate from there. The channel closes when ctx
// is done. Run must be called once.
func (g *Gate) Run(ctx context.Context) <-chan bool {
	out := make(chan bool)
	go g.loop(ctx, out)
	return out
}

func (g *Gate) loop(ctx context.Context, out chan<- bool) {
	defer g.once.Do(func() { close(g.done) })
	defer close(out)
	defer g.state.Set(false)

	enabled := g.enabled.Subscribe(ctx)

	var (
		focus, hover, on bool
		active           bool
		timer            *time.Timer
		timerC           <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return

		case v, ok := <-enabled:
			if !ok {
				return
			}
			on = v

		case in := <-g.mailbox:
			switch in.kind {
			case inputFocus:
				focus = in.value
			case inputHover:
				switch {
				case in.value:
					stopTimer()
					hover = true
				case g.settle == 0:
					hover = false
				case hover && timer == nil:
					timer = time.NewTimer(g.settle)
					timerC = timer.C
				}
			}

		case <-timerC:
			timer = nil
			timerC = nil
			hover = false
		}

		next := (focus || hover) && on
		if next == active {
			continue
		}
		active = next
		g.state.Set(active)
		g.logger.Debug("gate: changed", "active", active)
		select {
		case out <- active:
		case <-ctx.Done():
			return
		}
	}
}
