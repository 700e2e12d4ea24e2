// Package tui provides the interactive terminal UI for the daily plan.
package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	actionItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

var laneTitles = map[string]string{
	"priority":  "PRIORITY",
	"in_motion": "IN MOTION",
	"on_deck":   "ON DECK",
}

var capacityLevels = []string{"micro", "light", "standard", "heavy"}

// App is the main TUI application model.
type App struct {
	client       *Client
	plan         *PlanView
	date         string
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string // "list" or "detail"
	message      string
	loading      bool
	daemonOnline bool
	suggestions  *Suggestions
}

// New creates a new TUI application.
func New(apiAddr, userID string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: done | snooze <hours> | fit <minutes> | capacity <level> | refresh"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	vp := viewport.New(80, 20)

	return &App{
		client:      NewClient(apiAddr, userID),
		input:       ti,
		viewport:    vp,
		mode:        "list",
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchPlan(),
		a.checkDaemon(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode == "detail" {
				a.mode = "list"
				return a, nil
			}

		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else if a.selectedIdx > 0 {
				a.selectedIdx--
			}
			return a, nil

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else if a.selectedIdx < len(a.items())-1 {
				a.selectedIdx++
			}
			return a, nil

		case "tab", "enter":
			if a.suggestions.IsVisible() {
				if selected := a.suggestions.Selected(); selected != nil {
					if selected.Type == "action" {
						a.selectByTitle(selected.Text)
						a.input.SetValue("")
					} else {
						a.input.SetValue(selected.Text + " ")
						a.input.CursorEnd()
					}
					a.suggestions.Update(a.input.Value())
				}
				return a, nil
			}
			if msg.String() == "tab" {
				a.toggleDetail()
				return a, nil
			}
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				a.suggestions.Update("")
				return a, a.executeCommand(cmd)
			}
			a.toggleDetail()
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 10

	case planLoadedMsg:
		a.loading = false
		a.plan = msg.plan
		if a.selectedIdx >= len(a.items()) {
			a.selectedIdx = max(0, len(a.items())-1)
		}

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case fitResultMsg:
		if msg.item == nil {
			a.message = fmt.Sprintf("Nothing fits in %d minutes", msg.minutes)
			return a, nil
		}
		a.message = fmt.Sprintf("✓ %d min: %s (%s)", msg.minutes, msg.item.Title, laneTitle(msg.item.Lane))
		a.selectByID(msg.item.ID)
		return a, nil

	case dateChangedMsg:
		a.date = msg.date
		a.selectedIdx = 0
		return a, a.fetchPlan()

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchPlan()

	case errMsg:
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	// Update input
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())
	if strings.HasPrefix(a.input.Value(), "@") {
		a.suggestions.SetActions(a.items())
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("NextBestMove")
	header += "  " + daemonStatus
	if a.plan != nil {
		header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(
			fmt.Sprintf("[%s · %s capacity · %d slots]", a.plan.Date, a.plan.Level, a.plan.ActionCount))
	}

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "list":
		b.WriteString(a.renderPlan(contentHeight))
	case "detail":
		b.WriteString(a.renderDetail())
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	// Suggestions render below the input
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case "list":
		status = fmt.Sprintf(" Actions: %d | ↑↓:nav | Enter:details | /:commands | @:jump | Ctrl+C:quit", len(a.items()))
	default:
		status = " Esc:back | done | snooze <hours> | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) items() []PlanItem {
	if a.plan == nil {
		return nil
	}
	return a.plan.Items
}

func (a *App) selected() *PlanItem {
	items := a.items()
	if a.selectedIdx < 0 || a.selectedIdx >= len(items) {
		return nil
	}
	return &items[a.selectedIdx]
}

func (a *App) toggleDetail() {
	if a.mode == "detail" {
		a.mode = "list"
		return
	}
	if a.selected() != nil {
		a.mode = "detail"
	}
}

func (a *App) selectByID(id string) {
	for i, item := range a.items() {
		if item.ID == id {
			a.selectedIdx = i
			return
		}
	}
}

func (a *App) selectByTitle(title string) {
	for i, item := range a.items() {
		if item.Title == title {
			a.selectedIdx = i
			return
		}
	}
}

func (a *App) renderPlan(height int) string {
	if a.loading && a.plan == nil {
		return "\n  Loading plan...\n"
	}
	items := a.items()
	if len(items) == 0 {
		return "\n  Nothing on the plan. Enjoy the quiet day.\n"
	}

	var lines []string
	selectedLine := 0
	lane := ""
	for i, item := range items {
		if item.Lane != lane {
			lane = item.Lane
			lines = append(lines, formatLane(lane))
		}
		if i == a.selectedIdx {
			selectedLine = len(lines)
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %5.1f  %s", item.Score, item.Title)))
		} else {
			meta := lipgloss.NewStyle().Foreground(mutedColor).Render(formatMeta(item))
			lines = append(lines, actionItemStyle.Render(fmt.Sprintf("  %5.1f  %s  %s", item.Score, item.Title, meta)))
		}
	}

	if len(lines) > height {
		start := selectedLine - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) renderDetail() string {
	item := a.selected()
	if item == nil {
		return "\n  No action selected.\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n  %s\n", lipgloss.NewStyle().Bold(true).Render(item.Title)))
	b.WriteString(fmt.Sprintf("  ID: %s\n", shortID(item.ID)))
	b.WriteString(fmt.Sprintf("  Lane: %s\n", formatLane(item.Lane)))
	b.WriteString(fmt.Sprintf("  Type: %s  State: %s\n", item.ActionType, item.State))
	if item.DueDate != "" {
		b.WriteString(fmt.Sprintf("  Due: %s\n", item.DueDate))
	}
	if item.EstimatedMinutes != nil {
		b.WriteString(fmt.Sprintf("  Estimate: %d min\n", *item.EstimatedMinutes))
	}
	if item.RelationshipID != "" {
		b.WriteString(fmt.Sprintf("  Relationship: %s\n", shortID(item.RelationshipID)))
	}

	b.WriteString(fmt.Sprintf("\n  Score %s\n", lipgloss.NewStyle().Bold(true).Foreground(cyanColor).Render(fmt.Sprintf("%.1f", item.Score))))
	keys := make([]string, 0, len(item.Breakdown))
	for k := range item.Breakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := item.Breakdown[k]
		style := lipgloss.NewStyle().Foreground(mutedColor)
		if v > 0 {
			style = lipgloss.NewStyle().Foreground(successColor)
		} else if v < 0 {
			style = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(fmt.Sprintf("    • %-16s %s\n", k, style.Render(fmt.Sprintf("%+.1f", v))))
	}

	return b.String()
}

func formatLane(lane string) string {
	switch lane {
	case "priority":
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render("▲ " + laneTitle(lane))
	case "in_motion":
		return lipgloss.NewStyle().Foreground(warningColor).Bold(true).Render("► " + laneTitle(lane))
	default:
		return lipgloss.NewStyle().Foreground(secondaryColor).Bold(true).Render("○ " + laneTitle(lane))
	}
}

func laneTitle(lane string) string {
	if title, ok := laneTitles[lane]; ok {
		return title
	}
	return strings.ToUpper(lane)
}

func formatMeta(item PlanItem) string {
	parts := []string{item.ActionType}
	if item.DueDate != "" {
		parts = append(parts, "due "+item.DueDate)
	}
	if item.EstimatedMinutes != nil {
		parts = append(parts, fmt.Sprintf("%dm", *item.EstimatedMinutes))
	}
	return strings.Join(parts, " · ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (a *App) fetchPlan() tea.Cmd {
	a.loading = true
	date := a.date
	return func() tea.Msg {
		plan, err := a.client.GetPlan(date)
		if err != nil {
			return errMsg{err}
		}
		return planLoadedMsg{plan}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]
	selected := a.selected()

	switch cmd {
	case "q", "quit", "exit":
		return tea.Quit
	case "refresh", "r":
		return tea.Batch(a.fetchPlan(), a.checkDaemon())
	}

	return func() tea.Msg {
		switch cmd {
		case "done":
			if selected == nil {
				return commandResultMsg{"No action selected"}
			}
			state, err := a.client.CompleteAction(selected.ID)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			if state != "" {
				return commandResultMsg{fmt.Sprintf("✓ Done: %s (relationship now %s)", selected.Title, state)}
			}
			return commandResultMsg{fmt.Sprintf("✓ Done: %s", selected.Title)}

		case "snooze":
			if selected == nil {
				return commandResultMsg{"No action selected"}
			}
			hours := 24
			if len(args) > 0 {
				h, err := strconv.Atoi(args[0])
				if err != nil || h <= 0 {
					return commandResultMsg{"Usage: snooze <hours>"}
				}
				hours = h
			}
			if err := a.client.SnoozeAction(selected.ID, time.Duration(hours)*time.Hour); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Snoozed for %dh: %s", hours, selected.Title)}

		case "fit":
			if len(args) < 1 {
				return commandResultMsg{"Usage: fit <minutes>"}
			}
			minutes, err := strconv.Atoi(args[0])
			if err != nil || minutes <= 0 {
				return commandResultMsg{"Usage: fit <minutes>"}
			}
			item, err := a.client.Fit(minutes)
			if err != nil {
				return errMsg{err}
			}
			return fitResultMsg{minutes: minutes, item: item}

		case "capacity":
			if len(args) < 1 || !validLevel(args[0]) {
				return commandResultMsg{"Usage: capacity <" + strings.Join(capacityLevels, "|") + ">"}
			}
			if err := a.client.SetCapacity(args[0]); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Capacity set to %s", args[0])}

		case "date":
			if len(args) < 1 {
				return dateChangedMsg{""}
			}
			if _, err := time.Parse("2006-01-02", args[0]); err != nil {
				return commandResultMsg{"Usage: date YYYY-MM-DD"}
			}
			return dateChangedMsg{args[0]}

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: done, snooze, fit, capacity, refresh)", cmd)}
		}
	}
}

func validLevel(level string) bool {
	for _, l := range capacityLevels {
		if l == level {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type planLoadedMsg struct {
	plan *PlanView
}

type daemonStatusMsg struct {
	online bool
}

type fitResultMsg struct {
	minutes int
	item    *PlanItem
}

type dateChangedMsg struct {
	date string
}
