package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/jvm-rewrite/errors"
	"github.com/wippyai/jvm-rewrite/rewrite"
)

// Status is the outcome of one unit.
type Status int

const (
	StatusCanceled Status = iota
	StatusSkipped
	StatusUnchanged
	StatusRewritten
	StatusFailed
)

var statusNames = [...]string{
	StatusCanceled:  "canceled",
	StatusSkipped:   "skipped",
	StatusUnchanged: "unchanged",
	StatusRewritten: "rewritten",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Options configures a Processor.
type Options struct {
	// Selector picks the units to transform. Nil means DefaultSelector{}.
	Selector Selector
	// OnEvent is called once per finished unit, from worker goroutines.
	OnEvent func(Event)
	// Workers bounds concurrent transforms. Zero means GOMAXPROCS.
	Workers int
	// CacheSize bounds the incremental cache. Zero means DefaultCacheSize.
	CacheSize   int
	Incremental bool
	// FailFast cancels outstanding units on the first failure and makes
	// Process return it.
	FailFast bool
}

// Event reports a finished unit.
type Event struct {
	Err    error
	Unit   string
	Status Status
	Done   int
	Total  int
	Cached bool
}

// UnitResult is the outcome of one unit. Output is the bytes to write; for
// skipped, unchanged and failed units it is the input.
type UnitResult struct {
	Err         error
	Name        string
	Class       string
	Output      []byte
	Rewrites    []rewrite.Rewrite
	Diagnostics []rewrite.Diagnostic
	Scope       Scope
	Status      Status
	Cached      bool
}

// Summary aggregates a Process call.
type Summary struct {
	Results     []UnitResult
	Elapsed     time.Duration
	Processed   int
	Rewritten   int
	Unchanged   int
	Skipped     int
	Failed      int
	Canceled    int
	Cached      int
	Rewrites    int
	Diagnostics int
}

// Failures returns the failed units.
func (s *Summary) Failures() []UnitResult {
	var out []UnitResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Err joins the errors of all failed units, or returns nil.
func (s *Summary) Err() error {
	var errs []error
	for _, r := range s.Failures() {
		errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
	}
	return stderrors.Join(errs...)
}

// Processor runs the rewrite over many units in parallel. The rule table
// is shared by all workers; each unit is transformed independently.
type Processor struct {
	cfg      rewrite.Config
	selector Selector
	cache    *Cache
	opts     Options
}

// New creates a processor.
func New(cfg rewrite.Config, opts Options) (*Processor, error) {
	if cfg.Rules == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "rule table is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	p := &Processor{cfg: cfg, selector: opts.Selector, opts: opts}
	if p.selector == nil {
		p.selector = DefaultSelector{}
	}
	if opts.Incremental {
		size := opts.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		cache, err := NewCache(size)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// IsIncremental reports whether unchanged inputs are served from the cache
// instead of being transformed again.
func (p *Processor) IsIncremental() bool {
	return p.opts.Incremental
}

// Process transforms units and returns one result per unit in input
// order. A failing unit never stops its siblings unless FailFast is set,
// in which case the first failure is returned alongside the partial
// summary.
func (p *Processor) Process(ctx context.Context, units []Unit) (*Summary, error) {
	start := time.Now()
	results := make([]UnitResult, len(units))
	for i, u := range units {
		results[i] = UnitResult{Name: u.Name, Scope: u.Scope, Output: u.Data, Status: StatusCanceled}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	var done atomic.Int64

	for i := range units {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := p.processUnit(units[i])
			results[i] = res

			n := int(done.Add(1))
			if p.opts.OnEvent != nil {
				p.opts.OnEvent(Event{
					Unit:   res.Name,
					Status: res.Status,
					Err:    res.Err,
					Cached: res.Cached,
					Done:   n,
					Total:  len(units),
				})
			}
			if res.Err != nil && p.opts.FailFast {
				return fmt.Errorf("%s: %w", res.Name, res.Err)
			}
			return nil
		})
	}

	err := g.Wait()
	summary := summarize(results)
	summary.Elapsed = time.Since(start)

	Logger().Info("processed units",
		zap.Int("total", len(units)),
		zap.Int("rewritten", summary.Rewritten),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("cached", summary.Cached),
		zap.Int("rewrites", summary.Rewrites),
		zap.Duration("elapsed", summary.Elapsed))

	if err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *Processor) processUnit(u Unit) UnitResult {
	r := UnitResult{Name: u.Name, Scope: u.Scope, Output: u.Data}

	if !p.selector.Select(u) {
		r.Status = StatusSkipped
		return r
	}

	if p.cache != nil {
		if res, ok := p.cache.Get(u.Data); ok {
			r.Cached = true
			fill(&r, res)
			return r
		}
	}

	res, err := rewrite.TransformReport(u.Data, p.cfg)
	if err != nil {
		r.Status = StatusFailed
		r.Err = err
		Logger().Warn("unit failed", zap.String("unit", u.Name), zap.Error(err))
		return r
	}
	if p.cache != nil {
		p.cache.Add(u.Data, res)
	}
	fill(&r, res)

	for _, rw := range res.Rewrites {
		Logger().Debug("rewrote call site",
			zap.String("unit", u.Name),
			zap.String("method", rw.Method),
			zap.String("from", rw.From.String()),
			zap.String("to", rw.To.String()))
	}
	for _, d := range res.Diagnostics {
		Logger().Debug("diagnostic",
			zap.String("unit", u.Name),
			zap.String("kind", string(d.Kind)),
			zap.String("method", d.Method),
			zap.String("detail", d.Detail))
	}
	return r
}

func fill(r *UnitResult, res *rewrite.Result) {
	r.Class = res.Class
	r.Output = res.Output
	r.Rewrites = res.Rewrites
	r.Diagnostics = res.Diagnostics
	if res.Changed {
		r.Status = StatusRewritten
	} else {
		r.Status = StatusUnchanged
	}
}

func summarize(results []UnitResult) *Summary {
	s := &Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusRewritten:
			s.Rewritten++
		case StatusUnchanged:
			s.Unchanged++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusCanceled:
			s.Canceled++
		}
		if r.Status == StatusRewritten || r.Status == StatusUnchanged || r.Status == StatusFailed {
			s.Processed++
		}
		if r.Cached {
			s.Cached++
		}
		s.Rewrites += len(r.Rewrites)
		s.Diagnostics += len(r.Diagnostics)
	}
	return s
}
