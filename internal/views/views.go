// Package views loads the data behind each page and shapes it for display.
//
// A view issues its reads concurrently and aggregates only after every read
// has completed. Read failures are logged and produce an empty view flagged
// Unavailable; they never reach the caller as errors. When the caller's
// context ends before the data is committed the load returns ErrDiscarded
// and nothing should be rendered.
package views

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"fanliga/internal/aggregate"
	"fanliga/internal/gateway"
)

// ErrDiscarded means the requester went away before the view was ready.
var ErrDiscarded = errors.New("view discarded")

type Options struct {
	Box              aggregate.Box
	DefaultSort      aggregate.SortKey
	DefaultDirection aggregate.Direction
	// OnDiscard is called with the view name whenever a load is discarded.
	OnDiscard func(view string)
}

// Service builds views from a gateway reader.
type Service struct {
	gw   gateway.Reader
	opts Options
}

func NewService(gw gateway.Reader, opts Options) *Service {
	if opts.DefaultSort == "" {
		opts.DefaultSort = aggregate.SortByDate
	}
	if opts.DefaultDirection == "" {
		opts.DefaultDirection = aggregate.Desc
	}
	if opts.Box == (aggregate.Box{}) {
		opts.Box = aggregate.Box{Width: 600, Height: 240, Inset: 24}
	}
	return &Service{gw: gw, opts: opts}
}

// Box returns the chart rectangle trend views are drawn in.
func (s *Service) Box() aggregate.Box { return s.opts.Box }

// DefaultQuery is the ledger ordering used when a request names none.
func (s *Service) DefaultQuery() aggregate.LedgerQuery {
	return aggregate.LedgerQuery{
		SortKey:   s.opts.DefaultSort,
		Direction: s.opts.DefaultDirection,
		Filter:    aggregate.FilterAll,
	}
}

// loader runs the reads of one view load.
type loader struct {
	ctx  context.Context
	view string
	g    errgroup.Group

	mu     sync.Mutex
	failed []error
}

func (s *Service) newLoader(ctx context.Context, view string) *loader {
	return &loader{ctx: ctx, view: view}
}

// get schedules call and stores its result in dst on success.
func get[T any](l *loader, op string, dst *T, call func(context.Context) (T, error)) {
	l.g.Go(func() error {
		v, err := call(l.ctx)
		if err != nil {
			l.fail(op, err)
			return nil
		}
		*dst = v
		return nil
	})
}

func (l *loader) fail(op string, err error) {
	if l.ctx.Err() == nil {
		slog.ErrorContext(l.ctx, "View fetch failed", "view", l.view, "op", op, "error", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, err)
}

// wait blocks until every scheduled read is done. It returns ErrDiscarded
// when the context ended, otherwise whether any read failed.
func (l *loader) wait() (failed bool, err error) {
	_ = l.g.Wait()
	if l.ctx.Err() != nil {
		return false, ErrDiscarded
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failed) > 0, nil
}

// notFound reports whether any failed read was a missing record.
func (l *loader) notFound() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, err := range l.failed {
		if errors.Is(err, gateway.ErrNotFound) {
			return true
		}
	}
	return false
}

func (s *Service) discarded(view string) error {
	if s.opts.OnDiscard != nil {
		s.opts.OnDiscard(view)
	}
	return ErrDiscarded
}

// Amount is a signed number ready for display.
type Amount struct {
	Value   float64
	Display string
	Class   string
}

func NewAmount(v float64) Amount {
	return Amount{Value: v, Display: aggregate.FormatSigned(v), Class: aggregate.Classify(v).Class()}
}
