// Package scheduler runs background jobs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrAlreadyStarted is returned by Start on a running poller.
var ErrAlreadyStarted = errors.New("poller already started")

// Job is one unit of scheduled work. Returned errors are logged; they never
// stop the schedule.
type Job func(ctx context.Context) error

// Config configures a Poller.
type Config struct {
	// Name identifies the job in logs.
	Name string

	// Interval between the end of one scheduling decision and the next tick.
	Interval time.Duration

	// Job is the work to run. Required.
	Job Job

	// Logger is optional; slog.Default() is used when nil.
	Logger *slog.Logger
}

// Poller runs a job immediately on Start and then every Interval. At most
// one run is in flight: a tick that fires while a run is still going waits
// for it to finish instead of overlapping it. Panics are recovered.
type Poller struct {
	name     string
	interval time.Duration
	job      Job
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

// New creates a Poller. It panics if Job is nil or Interval is not positive.
func New(cfg Config) *Poller {
	if cfg.Job == nil {
		panic("scheduler.New: Job is required")
	}

	if cfg.Interval <= 0 {
		panic("scheduler.New: Interval must be positive")
	}

	name := cfg.Name
	if name == "" {
		name = "poller"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		name:     name,
		interval: cfg.Interval,
		job:      cfg.Job,
		logger:   logger.With(slog.String("component", "scheduler.Poller"), slog.String("job", name)),
	}
}

// Start schedules the job and triggers the first run right away. Runs use a
// context derived from ctx that is cancelled by Stop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return ErrAlreadyStarted
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cronLogger := cronLogger{logger: p.logger}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.DelayIfStillRunning(cronLogger)),
	)

	id := c.Schedule(intervalSchedule(p.interval), cron.FuncJob(func() { p.run(jobCtx) }))
	wrapped := c.Entry(id).WrappedJob

	p.cron = c
	p.cancel = cancel

	c.Start()

	p.initial.Go(wrapped.Run)

	p.logger.Info("poller started", slog.Duration("interval", p.interval))

	return nil
}

// Stop cancels in-flight work and waits for it to return, or for ctx to end.
// Stopping a poller that never started is a no-op.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()

	if c == nil {
		return nil
	}

	cancel()
	stopped := c.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		p.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping %s: %w", p.name, ctx.Err())
	}
}

func (p *Poller) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := p.job(ctx); err != nil {
		p.logger.Warn("scheduled run failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)

		return
	}

	p.logger.Debug("scheduled run completed", slog.Duration("duration", time.Since(start)))
}

// intervalSchedule fires a fixed duration after the previous activation.
// Unlike cron.Every it does not round to whole seconds.
type intervalSchedule time.Duration

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}

// cronLogger adapts slog to cron.Logger. Cron's chatty info lines are
// demoted to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
