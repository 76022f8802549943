// Package driver evaluates batches of type-model queries against a
// resolved universe on a bounded worker pool.
package driver

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"hostmeta/internal/ledger"
	"hostmeta/internal/resolved"
	"hostmeta/internal/trace"
)

// Options configures Run.
type Options struct {
	Jobs     int  // <= 0 means GOMAXPROCS
	FailFast bool // stop the batch at the first failed query
	Tracer   trace.Tracer
	Ledger   *ledger.Ledger // nil disables recording
	Sink     ProgressSink
}

// Stats summarizes a batch.
type Stats struct {
	Total, Answered, NoAnswer, Failed, Skipped int
	Assumptions                                int
	Elapsed                                    time.Duration
}

// Run evaluates qs against u. Outcomes are returned in query order. A
// failed query is reported in its Outcome; Run itself returns an error
// only when ctx is cancelled or FailFast stops the batch.
func Run(ctx context.Context, u *resolved.Universe, finder MethodFinder, qs []Query, opts Options) ([]Outcome, Stats, error) {
	start := time.Now()
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.FromContext(ctx)
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, len(qs))
	for i, q := range qs {
		outcomes[i] = Outcome{Index: i, Query: q, Skipped: true}
		emit(opts.Sink, Event{Index: i, Query: q.String(), Status: StatusQueued})
	}
	if len(qs) == 0 {
		return outcomes, Stats{}, nil
	}

	batch := trace.Begin(tracer, trace.ScopeDriver, "batch", trace.ParentSpan(ctx))
	ev := &evaluator{u: u, finder: finder}

	// Each goroutine owns outcomes[i]; no lock needed.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(qs)))
	for i := range qs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			o := &outcomes[i]
			o.Skipped = false
			label := o.Query.String()
			emit(opts.Sink, Event{Index: i, Query: label, Status: StatusWorking})

			span := trace.Begin(tracer, trace.ScopeQuery, label, batch.ID())
			qstart := time.Now()
			if err := ev.eval(o.Query, o); err != nil {
				o.fail(err)
			} else if opts.Ledger != nil && len(o.raw) > 0 {
				if _, err := opts.Ledger.Record(label, o.raw); err != nil {
					o.fail(err)
				}
			}
			elapsed := time.Since(qstart)
			o.ElapsedUS = elapsed.Microseconds()
			span.WithExtra("assumptions", strconv.Itoa(len(o.Assumptions))).End(o.Summary())

			if o.Err != nil {
				trace.Point(tracer, trace.ScopeQuery, "query-error", label+": "+o.Error)
				emit(opts.Sink, Event{Index: i, Query: label, Status: StatusError, Err: o.Err, Elapsed: elapsed})
				if opts.FailFast {
					return o.Err
				}
				return nil
			}
			emit(opts.Sink, Event{Index: i, Query: label, Status: StatusDone, Elapsed: elapsed})
			return nil
		})
	}
	err := g.Wait()

	stats := Stats{Total: len(qs), Elapsed: time.Since(start)}
	for i := range outcomes {
		o := &outcomes[i]
		stats.Assumptions += len(o.Assumptions)
		switch {
		case o.Skipped:
			stats.Skipped++
		case o.Err != nil:
			stats.Failed++
		case o.Found:
			stats.Answered++
		default:
			stats.NoAnswer++
		}
	}
	batch.WithExtra("queries", strconv.Itoa(stats.Total)).
		WithExtra("failed", strconv.Itoa(stats.Failed)).
		End("")
	return outcomes, stats, err
}

func emit(s ProgressSink, ev Event) {
	if s != nil {
		s.OnEvent(ev)
	}
}
