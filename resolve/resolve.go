// Package resolve rewrites a freshly fetched document so it can be shown
// inside a host page: relative href/src values become absolute against the
// document's URL, and identifiers of form controls get a run-unique suffix
// so they never collide with identifiers already present in the host.
package resolve

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/hazyhaar/instantpreview/dom"
)

// ReservedPrefix marks internal form-control names that must be namespaced.
const ReservedPrefix = "__"

// absoluteRe matches values that already carry a scheme-relative or
// absolute authority ("//cdn", "https://x").
var absoluteRe = regexp.MustCompile(`(?i)^(?:[a-z]+:)?//`)

// Counter hands out the suffix sequence. Next returns the current value and
// advances it by one.
type Counter interface {
	Next() uint64
}

// Sequence is the process-wide Counter. The zero value starts at 0.
type Sequence struct {
	n atomic.Uint64
}

// NewSequence returns a Sequence whose first Next call yields start.
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// Next returns the current value and advances the sequence.
func (s *Sequence) Next() uint64 {
	return s.n.Add(1) - 1
}

// Peek returns the value the next call to Next will return.
func (s *Sequence) Peek() uint64 {
	return s.n.Load()
}

// Resolver rewrites fetched documents. One Resolver, sharing one Counter,
// serves every link of the process.
type Resolver struct {
	counter Counter
}

// New returns a Resolver drawing suffixes from counter.
func New(counter Counter) *Resolver {
	return &Resolver{counter: counter}
}

// Resolve rewrites doc in place against base and returns it.
//
// It is not idempotent: every call appends another suffix to namespaced
// identifiers, so each fetched document must be resolved exactly once.
func (r *Resolver) Resolve(ctx context.Context, doc *html.Node, base *url.URL) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if base == nil || !base.IsAbs() {
		return nil, fmt.Errorf("resolve: base URL must be absolute, got %v", base)
	}

	var namespaced []*html.Node
	dom.Walk(doc, func(n *html.Node) bool {
		rewriteURL(n, base)
		if needsNamespace(n) {
			namespaced = append(namespaced, n)
		}
		return true
	})

	seq := r.counter.Next()
	suffix := fmt.Sprintf("$preview_%d", seq)
	for _, n := range namespaced {
		for _, key := range []string{"id", "for", "name"} {
			if v := dom.GetAttr(n, key); v != "" {
				dom.SetAttr(n, key, v+suffix)
			}
		}
	}
	return doc, nil
}

// rewriteURL makes the first relative href or src of n absolute. Values that
// do not parse are left alone.
func rewriteURL(n *html.Node, base *url.URL) {
	for _, key := range []string{"href", "src"} {
		v := dom.GetAttr(n, key)
		if v == "" || absoluteRe.MatchString(v) {
			continue
		}
		ref, err := url.Parse(v)
		if err != nil {
			continue
		}
		dom.SetAttr(n, key, base.ResolveReference(ref).String())
		return
	}
}

func needsNamespace(n *html.Node) bool {
	if strings.HasPrefix(dom.GetAttr(n, "name"), ReservedPrefix) {
		return true
	}
	return dom.HasAttr(n, "for")
}
