package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "limitless_fanout_tasks_total",
		Help: "Fan-out tasks by outcome (success or failure kind)",
	}, []string{"outcome"})

	inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "limitless_fanout_inflight",
		Help: "Fan-out tasks currently running",
	})
)

const (
	// DefaultMaxConcurrency bounds the number of tasks in flight.
	DefaultMaxConcurrency = 10

	// Unbounded disables the concurrency bound.
	Unbounded = -1

	// DefaultTimeout is applied to every task.
	DefaultTimeout = 30 * time.Second

	// DefaultProgressEvery is the number of completed tasks between
	// progress log lines.
	DefaultProgressEvery = 50
)

// FailureKind classifies why a task did not produce a record.
type FailureKind string

const (
	KindNetwork   FailureKind = "network"
	KindStatus    FailureKind = "status"
	KindDecode    FailureKind = "decode"
	KindPanic     FailureKind = "panic"
	KindCancelled FailureKind = "cancelled"
	KindError     FailureKind = "error"
)

// Classifier maps a task error to a FailureKind.
type Classifier func(error) FailureKind

// Config holds aggregator configuration
type Config struct {
	// MaxConcurrency is the maximum number of tasks in flight.
	// Zero selects DefaultMaxConcurrency, Unbounded (-1) removes the bound.
	MaxConcurrency int
	// Timeout per task
	Timeout time.Duration
	// ProgressEvery logs progress after this many completed tasks
	ProgressEvery int
	// Classifier maps task errors to failure kinds (default: DefaultClassifier)
	Classifier Classifier
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		Timeout:        DefaultTimeout,
		ProgressEvery:  DefaultProgressEvery,
		Classifier:     DefaultClassifier,
	}
}

// DefaultClassifier reports deadline errors as network failures and
// everything else as KindError.
func DefaultClassifier(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindError
}

// Aggregator runs fan-out batches. It holds no per-batch state and can be
// shared across goroutines.
type Aggregator struct {
	config Config
}

// New creates an aggregator, filling unset fields with defaults.
func New(config Config) *Aggregator {
	if config.MaxConcurrency == 0 || config.MaxConcurrency < Unbounded {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = DefaultProgressEvery
	}
	if config.Classifier == nil {
		config.Classifier = DefaultClassifier
	}
	return &Aggregator{config: config}
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config {
	return a.config
}

// Item is a successful fetch.
type Item[T any] struct {
	Ref   string
	Index int
	Value T
}

// Failure records a ref that produced no record.
type Failure struct {
	Ref   string
	Index int
	Kind  FailureKind
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s (#%d): %s: %v", f.Ref, f.Index, f.Kind, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the joined outcome of a batch. Records and Failures are both
// sorted by Index.
type Result[T any] struct {
	Records  []Item[T]
	Failures []Failure
	Duration time.Duration
}

// Total returns the number of refs the batch was given.
func (r Result[T]) Total() int {
	return len(r.Records) + len(r.Failures)
}

// Values returns the record values in input order.
func (r Result[T]) Values() []T {
	values := make([]T, len(r.Records))
	for i, item := range r.Records {
		values[i] = item.Value
	}
	return values
}

// Err joins all failures, or returns nil when every task succeeded.
func (r Result[T]) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Collect runs fetch once per ref and waits for every task. It never fails as
// a whole: each ref lands in either Records or Failures.
func Collect[T any](ctx context.Context, a *Aggregator, refs []string, fetch func(ctx context.Context, ref string) (T, error)) Result[T] {
	start := time.Now()
	cfg := a.config

	log.Info().
		Int("total", len(refs)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Dur("task_timeout", cfg.Timeout).
		Msg("Starting fan-out")

	var (
		mu       sync.Mutex
		records  = make([]Item[T], 0, len(refs))
		failures []Failure
		done     int
	)

	record := func(item *Item[T], failure *Failure) {
		mu.Lock()
		defer mu.Unlock()

		if failure != nil {
			failures = append(failures, *failure)
			tasksTotal.WithLabelValues(string(failure.Kind)).Inc()
			log.Warn().
				Err(failure.Err).
				Str("ref", failure.Ref).
				Int("index", failure.Index).
				Str("kind", string(failure.Kind)).
				Msg("Fan-out task failed")
		} else {
			records = append(records, *item)
			tasksTotal.WithLabelValues("success").Inc()
		}

		done++
		if done%cfg.ProgressEvery == 0 {
			log.Info().
				Int("completed", done).
				Int("total", len(refs)).
				Float64("progress_pct", float64(done)/float64(len(refs))*100).
				Msg("Fan-out progress")
		}
	}

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrency)

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			// Remaining refs were never dispatched
			for j := i; j < len(refs); j++ {
				record(nil, &Failure{Ref: refs[j], Index: j, Kind: KindCancelled, Err: err})
			}
			break
		}

		g.Go(func() error {
			inflight.Inc()
			defer inflight.Dec()

			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("ref", ref).
						Str("stack", string(debug.Stack())).
						Msg("Fan-out task panicked")
					record(nil, &Failure{Ref: ref, Index: i, Kind: KindPanic, Err: fmt.Errorf("panic: %v", r)})
				}
			}()

			if err := ctx.Err(); err != nil {
				record(nil, &Failure{Ref: ref, Index: i, Kind: KindCancelled, Err: err})
				return nil
			}

			taskCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			value, err := fetch(taskCtx, ref)
			if err != nil {
				record(nil, &Failure{Ref: ref, Index: i, Kind: a.classify(ctx, err), Err: err})
				return nil
			}

			record(&Item[T]{Ref: ref, Index: i, Value: value}, nil)
			return nil
		})
	}

	// Tasks never return errors; Wait is only the join
	_ = g.Wait()

	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })

	result := Result[T]{
		Records:  records,
		Failures: failures,
		Duration: time.Since(start),
	}

	log.Info().
		Int("fetched", len(result.Records)).
		Int("failed", len(result.Failures)).
		Int("total", len(refs)).
		Dur("duration", result.Duration).
		Msg("Fan-out complete")

	return result
}

// classify attributes a task error to the parent context when the batch was
// cancelled, and to the configured classifier otherwise.
func (a *Aggregator) classify(parent context.Context, err error) FailureKind {
	if perr := parent.Err(); perr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, perr)) {
		return KindCancelled
	}
	return a.config.Classifier(err)
}
