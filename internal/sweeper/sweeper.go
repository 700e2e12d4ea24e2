// Package sweeper periodically refreshes cached relationship state and
// archives stale actions.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextbestmove/nbm/internal/store"
)

// Target is the service the sweeper maintains.
type Target interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	RefreshUser(ctx context.Context, userID string, now time.Time) (int, error)
	ArchiveStale(ctx context.Context, userID string, now time.Time, policy store.ArchivePolicy) ([]string, error)
}

// Result summarises one sweep.
type Result struct {
	Users     int `json:"users"`
	Refreshed int `json:"refreshed"`
	Archived  int `json:"archived"`
	Failed    int `json:"failed"`
}

// Sweeper runs maintenance sweeps on a ticker.
type Sweeper struct {
	target Target
	config *Config
	logger *slog.Logger

	mu   sync.Mutex
	last Result
	runs int

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new sweeper.
func New(target Target, cfg *Config, logger *slog.Logger) *Sweeper {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		target: target,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the sweep loop.
func (sw *Sweeper) Start() {
	sw.wg.Add(1)
	go sw.loop()
	sw.logger.Info("sweeper started", "interval", sw.config.Interval)
}

// Stop gracefully stops the sweeper.
func (sw *Sweeper) Stop() {
	sw.cancel()
	sw.wg.Wait()
	sw.logger.Info("sweeper stopped")
}

func (sw *Sweeper) loop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			return
		case <-ticker.C:
			if _, err := sw.RunOnce(sw.ctx, time.Now().UTC()); err != nil {
				sw.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// RunOnce sweeps every user once. Per-user failures are logged and counted;
// only failing to list users is returned as an error.
func (sw *Sweeper) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	users, err := sw.target.ListUserIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		mu  sync.Mutex
		res = Result{Users: len(users)}
		wg  sync.WaitGroup
	)
	sem := make(chan struct{}, sw.config.Workers)
	policy := sw.config.ArchivePolicy()

loop:
	for _, userID := range users {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()

			refreshed, err := sw.target.RefreshUser(ctx, userID, now)
			if err != nil {
				sw.logger.Warn("refresh failed", "user_id", userID, "error", err)
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return
			}
			archived, err := sw.target.ArchiveStale(ctx, userID, now, policy)
			if err != nil {
				sw.logger.Warn("archive failed", "user_id", userID, "error", err)
			}

			mu.Lock()
			res.Refreshed += refreshed
			res.Archived += len(archived)
			if err != nil {
				res.Failed++
			}
			mu.Unlock()
		}(userID)
	}
	wg.Wait()

	sw.mu.Lock()
	sw.last = res
	sw.runs++
	sw.mu.Unlock()

	sw.logger.Info("sweep complete", "users", res.Users, "refreshed", res.Refreshed, "archived", res.Archived, "failed", res.Failed)
	return res, nil
}

// GetStats returns current sweeper statistics.
func (sw *Sweeper) GetStats() map[string]interface{} {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return map[string]interface{}{
		"runs":     sw.runs,
		"workers":  sw.config.Workers,
		"interval": sw.config.Interval.String(),
		"last":     sw.last,
	}
}
