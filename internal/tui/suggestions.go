package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for commands
type Suggestions struct {
	items        []SuggestionItem
	filtered     []SuggestionItem
	selectedIdx  int
	visible      bool
	prefix       string // "/" or "@"
	currentInput string
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command" or "action"
}

var commandSuggestions = []SuggestionItem{
	{Text: "done", Description: "Complete the selected action", Type: "command"},
	{Text: "snooze", Description: "Snooze the selected action (snooze <hours>)", Type: "command"},
	{Text: "fit", Description: "Best action for a free slot (fit <minutes>)", Type: "command"},
	{Text: "capacity", Description: "Override today's capacity (micro|light|standard|heavy)", Type: "command"},
	{Text: "date", Description: "Show the plan for another day (date YYYY-MM-DD)", Type: "command"},
	{Text: "refresh", Description: "Reload the plan", Type: "command"},
	{Text: "quit", Description: "Exit", Type: "command"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{
		items:   commandSuggestions,
		visible: false,
	}
}

// Update updates suggestions based on current input
func (s *Suggestions) Update(input string) {
	s.currentInput = input
	if input == "" {
		s.visible = false
		s.filtered = nil
		s.prefix = ""
		return
	}

	switch input[0] {
	case '/':
		s.prefix = "/"
		s.items = commandSuggestions
		s.visible = true
		s.filter(strings.ToLower(strings.TrimPrefix(input, "/")))
	case '@':
		s.prefix = "@"
		// Action references arrive through SetActions
		if len(s.items) > 0 && s.items[0].Type == "command" {
			s.items = []SuggestionItem{}
		}
		s.visible = true
		s.filter(strings.ToLower(strings.TrimPrefix(input, "@")))
	default:
		s.visible = false
		s.filtered = nil
		s.prefix = ""
	}
}

// SetActions updates the action reference suggestions
func (s *Suggestions) SetActions(items []PlanItem) {
	if s.prefix != "@" {
		return
	}
	s.items = make([]SuggestionItem, len(items))
	for i, item := range items {
		s.items[i] = SuggestionItem{
			Text:        item.Title,
			Description: fmt.Sprintf("%s · %s", item.ActionType, item.Lane),
			Type:        "action",
		}
	}
	s.filter(strings.ToLower(strings.TrimPrefix(s.currentInput, "@")))
}

func (s *Suggestions) filter(query string) {
	s.selectedIdx = 0
	if query == "" {
		s.filtered = s.items
		return
	}

	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Text), query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))

	itemStyle := lipgloss.NewStyle().Foreground(fgColor)
	descStyle := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	header := "Commands"
	if s.prefix == "@" {
		header = "Actions"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render(header))
	b.WriteString("\n")

	// Show max 5 suggestions
	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}

		var line string
		if i == s.selectedIdx {
			line = selectedStyle.Render("▶ " + item.Text)
			if item.Description != "" {
				line += " " + selectedStyle.Render(item.Description)
			}
		} else {
			line = itemStyle.Render("  " + item.Text)
			if item.Description != "" {
				line += " " + descStyle.Render(item.Description)
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return suggestionStyle.Render(b.String())
}
