package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextbestmove/nbm/internal/planner"
	"github.com/nextbestmove/nbm/internal/sweeper"
	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	initViperDefaults()
	t.Cleanup(viper.Reset)
}

func TestSweeperConfigFromViper(t *testing.T) {
	resetViper(t)
	viper.Set("sweeper.interval", "5m")
	viper.Set("sweeper.workers", 2)

	cfg, err := sweeperConfig()
	if err != nil {
		t.Fatalf("sweeperConfig failed: %v", err)
	}
	if cfg.Interval != 5*time.Minute {
		t.Errorf("Expected interval 5m, got %v", cfg.Interval)
	}
	if cfg.Workers != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.Workers)
	}
	if cfg.DoneArchiveDays != 90 {
		t.Errorf("Expected default done window, got %d", cfg.DoneArchiveDays)
	}

	viper.Set("sweeper.workers", 0)
	if _, err := sweeperConfig(); err == nil {
		t.Error("Expected validation error for zero workers")
	}
}

func TestAPIClientSendsUser(t *testing.T) {
	resetViper(t)
	users := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users <- r.Header.Get(planner.UserHeader)
		if r.URL.Path == "/missing" {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	viper.Set("api", srv.URL)
	viper.Set("user", "u-42")

	var out map[string]bool
	if err := apiJSON(http.MethodGet, "/anything", nil, &out); err != nil {
		t.Fatalf("apiJSON failed: %v", err)
	}
	if gotUser := <-users; gotUser != "u-42" {
		t.Errorf("Expected user header u-42, got %q", gotUser)
	}
	if !out["ok"] {
		t.Errorf("Expected decoded body, got %v", out)
	}

	if _, err := apiGet("/missing"); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestCheckHealth(t *testing.T) {
	resetViper(t)
	svc, st, err := openTestService(t)
	if err != nil {
		t.Fatalf("openService failed: %v", err)
	}
	defer st.Close()

	srv := httptest.NewServer(planner.NewServer(svc, "", nil).Handler())
	defer srv.Close()
	viper.Set("api", srv.URL)

	health, err := CheckHealth()
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.OK || health.DB != "ok" {
		t.Errorf("Expected healthy response, got %+v", health)
	}
	if !isDaemonRunning() {
		t.Error("Expected daemon to be reported running")
	}
}

func TestOpenServiceAndSweep(t *testing.T) {
	resetViper(t)
	svc, st, err := openTestService(t)
	if err != nil {
		t.Fatalf("openService failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := svc.CreateRelationship(ctx, "u1", planner.RelationshipInput{Name: "Ada"}); err != nil {
		t.Fatalf("CreateRelationship failed: %v", err)
	}

	cfg, err := sweeperConfig()
	if err != nil {
		t.Fatal(err)
	}
	res, err := sweeper.New(svc, cfg, nil).RunOnce(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if res.Users != 1 || res.Failed != 0 {
		t.Errorf("Expected one clean user, got %+v", res)
	}
}

func TestHelpers(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("Expected abc..., got %q", got)
	}
	if got := truncateID("1234567890"); got != "12345678" {
		t.Errorf("Expected 12345678, got %q", got)
	}
	if got := formatDate(time.Time{}); got != "-" {
		t.Errorf("Expected -, got %q", got)
	}
	if got := formatTime(nil); got != "never" {
		t.Errorf("Expected never, got %q", got)
	}
	if got := dateQuery("2026-03-02"); got != "?date=2026-03-02" {
		t.Errorf("Expected date query, got %q", got)
	}
}

func openTestService(t *testing.T) (*planner.Service, interface{ Close() error }, error) {
	t.Helper()
	dir := t.TempDir()
	viper.Set("db", filepath.Join(dir, "data", "nbm.db"))
	viper.Set("weights", filepath.Join(dir, "weights.yaml"))
	svc, st, err := openService(nil)
	if err != nil {
		return nil, nil, err
	}
	return svc, st, nil
}
