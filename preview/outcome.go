package preview

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/instantpreview/store"
)

// Outcome is how a preview run ended.
type Outcome string

const (
	OutcomeMounted        Outcome = "mounted"
	OutcomeNotInSitemap   Outcome = "not_in_sitemap"
	OutcomeFetchFailed    Outcome = "fetch_failed"
	OutcomeTargetNotFound Outcome = "target_not_found"
	OutcomeEmpty          Outcome = "empty"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeMountFailed    Outcome = "mount_failed"
)

// Classify maps a Run error to its outcome. nil is OutcomeMounted.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeMounted
	case errors.Is(err, ErrNotInSitemap):
		return OutcomeNotInSitemap
	case errors.Is(err, ErrTargetNotFound):
		return OutcomeTargetNotFound
	case errors.Is(err, ErrEmpty):
		return OutcomeEmpty
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFetchFailed
	}
}

// Report describes one finished run.
type Report struct {
	URL      string
	Anchor   string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Reporter receives run reports. Implementations must not block.
type Reporter interface {
	Report(ctx context.Context, r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report)

func (f ReporterFunc) Report(ctx context.Context, r Report) { f(ctx, r) }

// StoreReporter appends reports to the SQLite outcome log.
func StoreReporter(s *store.Store, logger *slog.Logger) Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return ReporterFunc(func(ctx context.Context, r Report) {
		e := &store.Entry{
			URL:        r.URL,
			Fragment:   r.Anchor,
			Outcome:    string(r.Outcome),
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			e.Detail = r.Err.Error()
		}
		// The run context is usually cancelled by now.
		if err := s.Record(context.WithoutCancel(ctx), e); err != nil {
			logger.Warn("preview: record outcome", "error", err)
		}
	})
}
