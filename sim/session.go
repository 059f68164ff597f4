// Package sim drives a cache over an address trace.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/trace"
)

// DefaultProgressInterval is how many addresses pass between progress
// notifications.
const DefaultProgressInterval = 1_000_000

// TraceReadError aborts a run when the trace source fails before its end.
type TraceReadError struct {
	Processed uint64
	Err       error
}

func (e *TraceReadError) Error() string {
	return fmt.Sprintf("trace read error after %d addresses: %v", e.Processed, e.Err)
}

func (e *TraceReadError) Unwrap() error {
	return e.Err
}

// Progress is delivered to progress hooks while a run is under way.
type Progress struct {
	Processed uint64
	Stats     cache.Statistics
	Elapsed   time.Duration
}

// ProgressHook observes progress notifications.
type ProgressHook func(Progress)

// Report is the outcome of a completed run.
type Report struct {
	Config    cache.Config
	Stats     cache.Statistics
	Processed uint64
	WallTime  time.Duration
	Seed      uint64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for progress and warnings.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithProgressInterval sets the notification period. Zero disables progress.
func WithProgressInterval(n uint64) Option {
	return func(s *Session) {
		s.progressInterval = n
	}
}

// WithProgressHook registers a hook called on every progress notification.
func WithProgressHook(hook ProgressHook) Option {
	return func(s *Session) {
		s.hooks = append(s.hooks, hook)
	}
}

// Session owns one cache and feeds it a trace.
type Session struct {
	cache            *cache.Cache
	logger           *logrus.Logger
	progressInterval uint64
	hooks            []ProgressHook
}

// NewSession creates a session around c.
func NewSession(c *cache.Cache, opts ...Option) *Session {
	s := &Session{
		cache:            c,
		progressInterval: DefaultProgressInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetOutput(io.Discard)
	}

	return s
}

// Cache returns the simulated cache.
func (s *Session) Cache() *cache.Cache {
	return s.cache
}

// Run accesses the cache once per address of src until src is exhausted.
// A read failure of src returns a *TraceReadError and no report. Cancelling
// ctx stops the run between two addresses.
func (s *Session) Run(ctx context.Context, src trace.Source) (Report, error) {
	start := time.Now()
	done := ctx.Done()

	var processed uint64

	s.logger.WithFields(logrus.Fields{
		"sets":   s.cache.Config().SetNum,
		"ways":   s.cache.Config().Associativity,
		"policy": s.cache.Config().Policy,
	}).Debug("simulation started")

	for {
		select {
		case <-done:
			return Report{}, fmt.Errorf("simulation stopped after %d addresses: %w",
				processed, ctx.Err())
		default:
		}

		addr, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return Report{}, &TraceReadError{Processed: processed, Err: err}
		}

		s.cache.Access(addr)
		processed++

		if s.progressInterval > 0 && processed%s.progressInterval == 0 {
			s.notify(processed, start)
		}
	}

	if r, ok := src.(interface{ Trailing() int }); ok && r.Trailing() > 0 {
		s.logger.WithField("bytes", r.Trailing()).
			Warn("trace ends with a partial record, ignored")
	}

	report := Report{
		Config:    s.cache.Config(),
		Stats:     s.cache.Stats(),
		Processed: processed,
		WallTime:  time.Since(start),
		Seed:      s.cache.Seed(),
	}

	s.logger.WithFields(logrus.Fields{
		"addresses": processed,
		"wall_time": report.WallTime,
	}).Info("trace processed")

	return report, nil
}

func (s *Session) notify(processed uint64, start time.Time) {
	p := Progress{
		Processed: processed,
		Stats:     s.cache.Stats(),
		Elapsed:   time.Since(start),
	}

	s.logger.WithField("addresses", processed).Info("simulation progress")

	for _, hook := range s.hooks {
		hook(p)
	}
}
