// Package batch runs rate-limit-sensitive work item by item with pacing,
// cooldowns, and progress reporting.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/henrybloomingdale/clinlit/internal/backoff"
	"github.com/henrybloomingdale/clinlit/internal/llm"
)

// Defaults for the article-analysis phase.
const (
	DefaultInterItemDelay   = 20 * time.Second
	DefaultJitter           = 10 * time.Second
	DefaultCooldownEvery    = 3
	DefaultCooldown         = 60 * time.Second
	DefaultRateLimitBackoff = 30 * time.Second
)

// Progress is one progress event. Current counts completed items.
type Progress struct {
	Processing bool `json:"processing"`
	Total      int  `json:"total"`
	Current    int  `json:"current"`
}

// Sink receives progress events.
type Sink interface {
	Emit(Progress)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Progress)

func (f SinkFunc) Emit(p Progress) { f(p) }

// NopSink discards all events.
var NopSink Sink = SinkFunc(func(Progress) {})

// Config paces the executor. Concurrency below 1 is treated as 1.
type Config struct {
	Concurrency      int
	InterItemDelay   time.Duration
	Jitter           time.Duration
	CooldownEvery    int
	Cooldown         time.Duration
	RateLimitBackoff time.Duration
}

// AnalysisConfig returns the pacing used for LLM article analyses:
// serial execution, 20 s between items with up to 10 s of jitter, and a
// 60 s cooldown every third item.
func AnalysisConfig() Config {
	return Config{
		Concurrency:      1,
		InterItemDelay:   DefaultInterItemDelay,
		Jitter:           DefaultJitter,
		CooldownEvery:    DefaultCooldownEvery,
		Cooldown:         DefaultCooldown,
		RateLimitBackoff: DefaultRateLimitBackoff,
	}
}

// Result carries the outcome of one item in input order.
type Result[R any] struct {
	Index   int
	Value   R
	Err     error
	Retried bool
	Skipped bool
}

// Executor schedules items against a Config. The zero value is not
// usable; construct with New.
type Executor struct {
	cfg   Config
	clock backoff.Policy
}

// New builds an executor. The clock argument supplies the sleep and
// jitter sources so tests can run on a fake clock.
func New(cfg Config, clock backoff.Policy) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Executor{cfg: cfg, clock: clock}
}

// Worker processes one item. Errors are captured into the item's Result,
// never propagated as the run error.
type Worker[T, R any] func(ctx context.Context, item T, index int) (R, error)

// Run processes items in input order and returns one Result per item,
// also in input order. Items not yet dispatched when ctx is canceled are
// marked Skipped; in-flight items run to completion. The returned error
// is non-nil only for a fatal scheduling failure, in which case the sink
// sees a terminal {false, 0, 0} event.
func Run[T, R any](ctx context.Context, ex *Executor, items []T, worker Worker[T, R], sink Sink) (results []Result[R], err error) {
	if sink == nil {
		sink = NopSink
	}
	total := len(items)
	results = make([]Result[R], total)

	defer func() {
		if r := recover(); r != nil {
			sink.Emit(Progress{Processing: false, Total: 0, Current: 0})
			err = fmt.Errorf("batch run: %v", r)
		}
	}()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		completed int
	)
	sem := make(chan struct{}, ex.cfg.Concurrency)

	dispatched := 0
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}

		if dispatched > 0 {
			wait := ex.cfg.InterItemDelay + ex.clock.Jitter(ex.cfg.Jitter)
			if ex.cfg.CooldownEvery > 0 && dispatched%ex.cfg.CooldownEvery == 0 {
				wait += ex.cfg.Cooldown
			}
			if sleepErr := ex.clock.Sleep(ctx, wait); sleepErr != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		dispatched++
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()

			value, workErr := runWorker(ctx, worker, item, i)
			retried := false
			if workErr != nil && llm.IsRateLimit(workErr) {
				wait := ex.cfg.RateLimitBackoff + ex.clock.Jitter(ex.cfg.RateLimitBackoff)
				if ex.clock.Sleep(ctx, wait) == nil {
					value, workErr = runWorker(ctx, worker, item, i)
					retried = true
				}
			}

			mu.Lock()
			results[i] = Result[R]{Index: i, Value: value, Err: workErr, Retried: retried}
			completed++
			sink.Emit(Progress{Processing: true, Total: total, Current: completed})
			mu.Unlock()
		}(i, item)
	}

	wg.Wait()

	for i := dispatched; i < total; i++ {
		results[i] = Result[R]{Index: i, Skipped: true}
	}

	sink.Emit(Progress{Processing: false, Total: total, Current: total})
	return results, nil
}

// runWorker shields the executor from worker panics by converting them
// into item errors.
func runWorker[T, R any](ctx context.Context, worker Worker[T, R], item T, index int) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic on item %d: %v", index, r)
		}
	}()
	return worker(ctx, item, index)
}
