package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

const planJSON = `{
  "date": "2026-03-02",
  "capacity": {"level": "light", "action_count": 3, "source": "override"},
  "actions": [
    {"action": {"id": "a1111111-aaaa", "title": "Reply to Dana", "action_type": "FOLLOW_UP", "state": "REPLIED",
      "due_date": "2026-03-01T00:00:00Z", "relationship_id": "r1"},
     "lane": "priority", "next_move_score": 61.5, "breakdown": {"due_urgency": 30, "tier": 10}},
    {"action": {"id": "a2222222-bbbb", "title": "Send recap", "action_type": "OUTREACH", "state": "NEW",
      "estimated_minutes": 10},
     "lane": "on_deck", "next_move_score": 12, "breakdown": {"duration": 4}}
  ]
}`

type fakeAPI struct {
	mu       sync.Mutex
	users    []string
	paths    []string
	capacity string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"db":"ok"}`))
	})
	mux.HandleFunc("/plan", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(planJSON))
	})
	mux.HandleFunc("/actions/fit", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.URL.Query().Get("minutes") == "1" {
			w.Write([]byte(`{"minutes":1,"action":null}`))
			return
		}
		w.Write([]byte(`{"minutes":15,"action":{"action":{"id":"a2222222-bbbb","title":"Send recap","action_type":"OUTREACH","state":"NEW"},"lane":"on_deck","next_move_score":12}}`))
	})
	mux.HandleFunc("/actions/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if strings.HasSuffix(r.URL.Path, "/complete") {
			w.Write([]byte(`{"relationship_state":"ACTIVE_CONVERSATION"}`))
			return
		}
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/capacity", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body struct {
			Level string `json:"level"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Level == "" {
			http.Error(w, `{"error":"level required"}`, http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.capacity = body.Level
		f.mu.Unlock()
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, r.Header.Get("X-User-ID"))
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
}

func (f *fakeAPI) snapshot() (users, paths []string, capacity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...), append([]string(nil), f.paths...), f.capacity
}

func loadedApp(t *testing.T) (*App, *fakeAPI) {
	t.Helper()
	f, srv := newFakeAPI(t)
	app := New(srv.URL, "user-1")
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	msg := app.fetchPlan()()
	app.Update(msg)
	return app, f
}

func TestClient_GetPlan(t *testing.T) {
	f, srv := newFakeAPI(t)
	c := NewClient(srv.URL, "user-1")

	plan, err := c.GetPlan("2026-03-02")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if plan.Level != "light" || plan.ActionCount != 3 || plan.Source != "override" {
		t.Errorf("Expected light/3/override capacity, got %+v", plan)
	}
	if len(plan.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(plan.Items))
	}
	first := plan.Items[0]
	if first.DueDate != "2026-03-01" {
		t.Errorf("Expected trimmed due date, got %q", first.DueDate)
	}
	if first.Breakdown["due_urgency"] != 30 {
		t.Errorf("Expected breakdown to decode, got %v", first.Breakdown)
	}
	if plan.Items[1].EstimatedMinutes == nil || *plan.Items[1].EstimatedMinutes != 10 {
		t.Errorf("Expected estimate 10, got %v", plan.Items[1].EstimatedMinutes)
	}
	users, _, _ := f.snapshot()
	if len(users) == 0 || users[0] != "user-1" {
		t.Errorf("Expected X-User-ID header, got %v", users)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := NewClient(srv.URL, "user-1")
	if err := c.SetCapacity(""); err == nil {
		t.Error("Expected API error for empty level")
	}
}

func TestClient_CheckHealth(t *testing.T) {
	_, srv := newFakeAPI(t)
	ok, err := NewClient(srv.URL, "").CheckHealth()
	if err != nil || !ok {
		t.Errorf("Expected healthy daemon, got %v, %v", ok, err)
	}
}

func TestApp_PlanLoaded(t *testing.T) {
	app, _ := loadedApp(t)

	if len(app.items()) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(app.items()))
	}
	view := app.View()
	for _, want := range []string{"PRIORITY", "ON DECK", "Reply to Dana", "Send recap", "light capacity"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestApp_NavigationAndDetail(t *testing.T) {
	app, _ := loadedApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	if app.selectedIdx != 1 {
		t.Fatalf("Expected selection 1, got %d", app.selectedIdx)
	}
	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	if app.selectedIdx != 1 {
		t.Errorf("Expected selection to stay at 1, got %d", app.selectedIdx)
	}
	app.Update(tea.KeyMsg{Type: tea.KeyUp})

	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if app.mode != "detail" {
		t.Fatalf("Expected detail mode, got %s", app.mode)
	}
	view := app.View()
	if !strings.Contains(view, "due_urgency") || !strings.Contains(view, "+30.0") {
		t.Errorf("Expected score breakdown in detail view")
	}

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if app.mode != "list" {
		t.Errorf("Expected list mode after esc, got %s", app.mode)
	}
}

func TestApp_DoneCommand(t *testing.T) {
	app, f := loadedApp(t)

	msg := app.executeCommand("done")()
	result, ok := msg.(commandResultMsg)
	if !ok {
		t.Fatalf("Expected commandResultMsg, got %T", msg)
	}
	if !strings.Contains(result.message, "ACTIVE_CONVERSATION") {
		t.Errorf("Expected relationship state in message, got %q", result.message)
	}
	_, paths, _ := f.snapshot()
	found := false
	for _, p := range paths {
		if p == "POST /actions/a1111111-aaaa/complete" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected complete call, got %v", paths)
	}
}

func TestApp_SnoozeUsage(t *testing.T) {
	app, _ := loadedApp(t)

	msg := app.executeCommand("/snooze nope")()
	if result := msg.(commandResultMsg); result.message != "Usage: snooze <hours>" {
		t.Errorf("Expected usage message, got %q", result.message)
	}

	msg = app.executeCommand("snooze 4")()
	if result := msg.(commandResultMsg); !strings.HasPrefix(result.message, "✓ Snoozed for 4h") {
		t.Errorf("Expected snooze confirmation, got %q", result.message)
	}
}

func TestApp_FitSelectsAction(t *testing.T) {
	app, _ := loadedApp(t)

	msg := app.executeCommand("fit 15")()
	app.Update(msg)
	if app.selectedIdx != 1 {
		t.Errorf("Expected fit to select second item, got %d", app.selectedIdx)
	}
	if !strings.Contains(app.message, "Send recap") {
		t.Errorf("Expected fit message, got %q", app.message)
	}

	app.Update(app.executeCommand("fit 1")())
	if app.message != "Nothing fits in 1 minutes" {
		t.Errorf("Expected empty fit message, got %q", app.message)
	}
}

func TestApp_CapacityCommand(t *testing.T) {
	app, f := loadedApp(t)

	msg := app.executeCommand("capacity huge")()
	if result := msg.(commandResultMsg); !strings.HasPrefix(result.message, "Usage") {
		t.Errorf("Expected usage for bad level, got %q", result.message)
	}

	app.executeCommand("capacity micro")()
	if _, _, capacity := f.snapshot(); capacity != "micro" {
		t.Errorf("Expected capacity micro, got %q", capacity)
	}
}

func TestApp_UnknownCommand(t *testing.T) {
	app, _ := loadedApp(t)
	msg := app.executeCommand("dance")()
	if result := msg.(commandResultMsg); !strings.HasPrefix(result.message, "Unknown: dance") {
		t.Errorf("Expected unknown message, got %q", result.message)
	}
}

func TestSuggestions_Commands(t *testing.T) {
	s := NewSuggestions()

	s.Update("/sn")
	if !s.IsVisible() {
		t.Fatal("Expected suggestions to be visible")
	}
	if sel := s.Selected(); sel == nil || sel.Text != "snooze" {
		t.Errorf("Expected snooze, got %+v", sel)
	}

	s.Update("plain text")
	if s.IsVisible() {
		t.Error("Expected suggestions hidden without prefix")
	}
}

func TestSuggestions_Actions(t *testing.T) {
	s := NewSuggestions()
	items := []PlanItem{
		{Title: "Reply to Dana", ActionType: "FOLLOW_UP", Lane: "priority"},
		{Title: "Send recap", ActionType: "OUTREACH", Lane: "on_deck"},
	}

	s.Update("@")
	s.SetActions(items)
	if len(s.filtered) != 2 {
		t.Fatalf("Expected 2 action suggestions, got %d", len(s.filtered))
	}

	s.Update("@recap")
	if sel := s.Selected(); sel == nil || sel.Text != "Send recap" {
		t.Errorf("Expected Send recap, got %+v", sel)
	}

	s.Next()
	s.Prev()
	if sel := s.Selected(); sel == nil || sel.Type != "action" {
		t.Errorf("Expected action suggestion, got %+v", sel)
	}
}

func TestApp_AtJumpSelectsAction(t *testing.T) {
	app, _ := loadedApp(t)

	app.input.SetValue("@recap")
	app.suggestions.Update("@recap")
	app.suggestions.SetActions(app.items())
	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	if app.selectedIdx != 1 {
		t.Errorf("Expected jump to second item, got %d", app.selectedIdx)
	}
	if app.input.Value() != "" {
		t.Errorf("Expected input cleared, got %q", app.input.Value())
	}
}
