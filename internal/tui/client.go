package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the nbm API
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

type scoredAction struct {
	Action struct {
		ID               string `json:"id"`
		Title            string `json:"title"`
		ActionType       string `json:"action_type"`
		State            string `json:"state"`
		DueDate          string `json:"due_date"`
		EstimatedMinutes *int   `json:"estimated_minutes"`
		RelationshipID   string `json:"relationship_id"`
	} `json:"action"`
	Lane      string             `json:"lane"`
	Score     float64            `json:"next_move_score"`
	Breakdown map[string]float64 `json:"breakdown"`
}

func (sa scoredAction) item() PlanItem {
	due := sa.Action.DueDate
	if len(due) >= 10 {
		due = due[:10]
	}
	return PlanItem{
		ID:               sa.Action.ID,
		Title:            sa.Action.Title,
		ActionType:       sa.Action.ActionType,
		State:            sa.Action.State,
		DueDate:          due,
		Lane:             sa.Lane,
		Score:            sa.Score,
		EstimatedMinutes: sa.Action.EstimatedMinutes,
		RelationshipID:   sa.Action.RelationshipID,
		Breakdown:        sa.Breakdown,
	}
}

// GetPlan fetches the plan for a day; an empty date means today
func (c *Client) GetPlan(date string) (*PlanView, error) {
	path := "/plan"
	if date != "" {
		path += "?date=" + date
	}
	body, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var plan struct {
		Date     string `json:"date"`
		Capacity struct {
			Level       string `json:"level"`
			ActionCount int    `json:"action_count"`
			Source      string `json:"source"`
		} `json:"capacity"`
		Actions []scoredAction `json:"actions"`
	}
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, err
	}

	view := &PlanView{
		Date:        plan.Date,
		Level:       plan.Capacity.Level,
		Source:      plan.Capacity.Source,
		ActionCount: plan.Capacity.ActionCount,
		Items:       make([]PlanItem, len(plan.Actions)),
	}
	for i, sa := range plan.Actions {
		view.Items[i] = sa.item()
	}
	return view, nil
}

// CompleteAction marks an action done
func (c *Client) CompleteAction(id string) (string, error) {
	body, err := c.do(http.MethodPost, "/actions/"+id+"/complete", map[string]interface{}{})
	if err != nil {
		return "", err
	}
	var result struct {
		RelationshipState string `json:"relationship_state"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	return result.RelationshipState, nil
}

// SnoozeAction hides an action for the given duration
func (c *Client) SnoozeAction(id string, d time.Duration) error {
	_, err := c.do(http.MethodPost, "/actions/"+id+"/snooze", map[string]interface{}{
		"until": time.Now().UTC().Add(d),
	})
	return err
}

// Fit returns the best action for the given minutes, or nil
func (c *Client) Fit(minutes int) (*PlanItem, error) {
	body, err := c.do(http.MethodGet, "/actions/fit?minutes="+strconv.Itoa(minutes), nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Action *scoredAction `json:"action"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if result.Action == nil {
		return nil, nil
	}
	item := result.Action.item()
	return &item, nil
}

// SetCapacity overrides today's capacity level
func (c *Client) SetCapacity(level string) error {
	_, err := c.do(http.MethodPut, "/capacity", map[string]string{"level": level})
	return err
}

func (c *Client) do(method, path string, data interface{}) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-ID", c.userID)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(bytes.TrimSpace(body)))
	}

	return body, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}
