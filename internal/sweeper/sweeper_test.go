package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nextbestmove/nbm/internal/store"
)

// mockTarget records sweep calls.
type mockTarget struct {
	mu        sync.Mutex
	users     []string
	refreshed map[string]int
	failUser  string
	listErr   error
	policy    store.ArchivePolicy
	active    int
	maxActive int
}

func (m *mockTarget) ListUserIDs(ctx context.Context) ([]string, error) {
	return m.users, m.listErr
}

func (m *mockTarget) RefreshUser(ctx context.Context, userID string, now time.Time) (int, error) {
	m.mu.Lock()
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	m.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	if userID == m.failUser {
		return 0, errors.New("boom")
	}
	if m.refreshed == nil {
		m.refreshed = make(map[string]int)
	}
	m.refreshed[userID]++
	return 1, nil
}

func (m *mockTarget) ArchiveStale(ctx context.Context, userID string, now time.Time, policy store.ArchivePolicy) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = policy
	return []string{userID + "-old"}, nil
}

func TestRunOnce(t *testing.T) {
	target := &mockTarget{users: []string{"a", "b", "c"}, failUser: "b"}
	sw := New(target, nil, nil)

	res, err := sw.RunOnce(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if res.Users != 3 || res.Refreshed != 2 || res.Archived != 2 || res.Failed != 1 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if target.policy.DoneAfter != 90*24*time.Hour || target.policy.StaleAutoAfter != 7*24*time.Hour {
		t.Errorf("Unexpected policy: %+v", target.policy)
	}

	stats := sw.GetStats()
	if stats["runs"] != 1 {
		t.Errorf("Expected 1 run, got %v", stats["runs"])
	}
}

func TestRunOnce_RespectsWorkerLimit(t *testing.T) {
	target := &mockTarget{users: []string{"1", "2", "3", "4", "5", "6", "7", "8"}}
	cfg := DefaultConfig()
	cfg.Workers = 2
	sw := New(target, cfg, nil)

	if _, err := sw.RunOnce(context.Background(), time.Now()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if target.maxActive > 2 {
		t.Errorf("Expected at most 2 concurrent refreshes, got %d", target.maxActive)
	}
	if len(target.refreshed) != 8 {
		t.Errorf("Expected 8 users refreshed, got %d", len(target.refreshed))
	}
}

// slowTarget blocks every refresh until release is closed, ignoring ctx.
type slowTarget struct {
	mockTarget
	started chan string
	release chan struct{}
}

func (s *slowTarget) RefreshUser(ctx context.Context, userID string, now time.Time) (int, error) {
	s.started <- userID
	<-s.release
	return s.mockTarget.RefreshUser(ctx, userID, now)
}

func TestRunOnce_CancelStopsQueuedUsers(t *testing.T) {
	target := &slowTarget{
		mockTarget: mockTarget{users: []string{"a", "b", "c"}},
		started:    make(chan string, 3),
		release:    make(chan struct{}),
	}
	cfg := DefaultConfig()
	cfg.Workers = 1
	sw := New(target, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		res, _ := sw.RunOnce(ctx, time.Now())
		done <- res
	}()

	<-target.started
	cancel()
	// Give the dispatcher a chance to observe the cancellation while the
	// only worker slot is still taken.
	time.Sleep(20 * time.Millisecond)
	close(target.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce did not return after cancel")
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.refreshed) != 1 {
		t.Errorf("Expected only the in-flight user refreshed, got %v", target.refreshed)
	}
}

func TestRunOnce_ListError(t *testing.T) {
	sw := New(&mockTarget{listErr: errors.New("db down")}, nil, nil)
	if _, err := sw.RunOnce(context.Background(), time.Now()); err == nil {
		t.Error("Expected error")
	}
}

func TestStartStop(t *testing.T) {
	target := &mockTarget{users: []string{"a"}}
	cfg := DefaultConfig()
	cfg.Interval = 20 * time.Millisecond
	sw := New(target, cfg, nil)

	sw.Start()
	time.Sleep(100 * time.Millisecond)
	sw.Stop()

	target.mu.Lock()
	defer target.mu.Unlock()
	if target.refreshed["a"] == 0 {
		t.Error("Expected at least one sweep")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []func(c *Config){
		func(c *Config) { c.Interval = 0 },
		func(c *Config) { c.Workers = 0 },
		func(c *Config) { c.DoneArchiveDays = 0 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
