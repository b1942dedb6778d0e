package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/vidgrab/internal/service"
)

// ErrShutdownTimeout is returned when the janitor doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("janitor shutdown timed out")

// Sweeper runs one retention pass.
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepReport, error)
}

// Janitor runs retention sweeps on a fixed interval.
type Janitor struct {
	interval time.Duration
	sweeper  Sweeper
	logger   *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	sweeps int
	mu     sync.Mutex
}

// Config holds janitor configuration.
type Config struct {
	Interval time.Duration
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg Config, sweeper Sweeper, logger *slog.Logger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Janitor{
		interval: cfg.Interval,
		sweeper:  sweeper,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the sweep loop. The first sweep runs immediately.
func (j *Janitor) Start() {
	j.logger.Info("starting retention janitor", "interval", j.interval)

	j.wg.Add(1)
	go j.run()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (j *Janitor) Stop(timeout time.Duration) error {
	j.logger.Info("stopping retention janitor")
	j.cancel()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("retention janitor stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// Sweeps returns the number of completed sweep attempts.
func (j *Janitor) Sweeps() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sweeps
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()
	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	start := time.Now()
	report, err := j.sweeper.Sweep(j.ctx)

	j.mu.Lock()
	j.sweeps++
	j.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		j.logger.Error("retention sweep failed", "error", err)
		return
	}
	j.logger.Debug("retention sweep finished",
		"duration", time.Since(start),
		"scanned", report.Scanned,
		"deleted", len(report.Deleted),
		"freed_bytes", report.FreedBytes,
	)
}
