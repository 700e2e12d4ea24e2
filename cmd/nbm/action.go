package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
	"github.com/nextbestmove/nbm/internal/planner"
	"github.com/spf13/cobra"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Manage actions",
}

var actionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an action",
	RunE:  runActionAdd,
}

var actionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List actions",
	RunE:  runActionList,
}

var actionCompleteCmd = &cobra.Command{
	Use:   "complete [action-id]",
	Short: "Mark an action done",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionComplete,
}

var actionSnoozeCmd = &cobra.Command{
	Use:   "snooze [action-id]",
	Short: "Hide an action until later",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionSnooze,
}

var actionPromiseCmd = &cobra.Command{
	Use:   "promise [action-id]",
	Short: "Set or clear the time you promised to follow up",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionPromise,
}

var actionStateCmd = &cobra.Command{
	Use:   "state [action-id] [NEW|SENT|REPLIED]",
	Short: "Record progress on an action",
	Args:  cobra.ExactArgs(2),
	RunE:  runActionState,
}

var actionArchiveCmd = &cobra.Command{
	Use:   "archive [action-id]",
	Short: "Archive an action",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionArchive,
}

var (
	actRelationship string
	actTitle        string
	actType         string
	actDue          string
	actMinutes      int
	actAuto         bool
	actStateFilter  string

	actGotResponse bool
	actCallBooked  bool
	actReplied     bool

	snoozeFor   time.Duration
	promiseAt   string
	promiseDrop bool
)

func init() {
	actionCmd.AddCommand(actionAddCmd, actionListCmd, actionCompleteCmd, actionSnoozeCmd,
		actionPromiseCmd, actionStateCmd, actionArchiveCmd)

	actionAddCmd.Flags().StringVar(&actRelationship, "relationship", "", "Relationship id")
	actionAddCmd.Flags().StringVar(&actTitle, "title", "", "Action title")
	actionAddCmd.Flags().StringVar(&actType, "type", "", "Action type (OUTREACH, FOLLOW_UP, NURTURE, CALL_PREP, POST_CALL, CONTENT, FAST_WIN)")
	actionAddCmd.Flags().StringVar(&actDue, "due", "", "Due date (YYYY-MM-DD)")
	actionAddCmd.Flags().IntVar(&actMinutes, "minutes", 0, "Estimated minutes")
	actionAddCmd.Flags().BoolVar(&actAuto, "auto", false, "Mark as auto-created")
	actionAddCmd.MarkFlagRequired("type")

	actionListCmd.Flags().StringVar(&actStateFilter, "state", "", "Filter by state (NEW, SENT, REPLIED, SNOOZED, DONE, ARCHIVED)")

	actionCompleteCmd.Flags().BoolVar(&actGotResponse, "got-response", false, "The contact responded")
	actionCompleteCmd.Flags().BoolVar(&actCallBooked, "call-booked", false, "A call is now on the calendar")
	actionCompleteCmd.Flags().BoolVar(&actReplied, "replied", false, "You replied to their email")

	actionSnoozeCmd.Flags().DurationVar(&snoozeFor, "for", 24*time.Hour, "How long to snooze")

	actionPromiseCmd.Flags().StringVar(&promiseAt, "at", "", "Promised time (RFC3339)")
	actionPromiseCmd.Flags().BoolVar(&promiseDrop, "clear", false, "Clear the promise")
}

func runActionAdd(cmd *cobra.Command, args []string) error {
	in := planner.ActionInput{
		Title:       actTitle,
		Type:        models.ActionType(actType),
		DueDate:     actDue,
		AutoCreated: actAuto,
	}
	if actRelationship != "" {
		in.RelationshipID = &actRelationship
	}
	if cmd.Flags().Changed("minutes") {
		in.EstimatedMinutes = &actMinutes
	}

	var action models.Action
	if err := apiJSON(http.MethodPost, "/actions", in, &action); err != nil {
		return err
	}
	fmt.Printf("Created action: %s\n", action.ID)
	return nil
}

func runActionList(cmd *cobra.Command, args []string) error {
	path := "/actions"
	if actStateFilter != "" {
		path += "?state=" + actStateFilter
	}

	var actions []models.Action
	if err := apiJSON(http.MethodGet, path, nil, &actions); err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Println("No actions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tSTATE\tDUE\tRELATIONSHIP")
	for _, a := range actions {
		rel := ""
		if a.RelationshipID != nil {
			rel = truncateID(*a.RelationshipID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(a.ID), truncate(a.Title, 40), a.Type, a.State, formatDate(a.DueDate), rel)
	}
	w.Flush()
	return nil
}

func runActionComplete(cmd *cobra.Command, args []string) error {
	now := time.Now().UTC()
	var events models.CompletionEvents
	if actGotResponse {
		events.GotResponseAt = &now
	}
	if actCallBooked {
		events.NextCallCalendaredAt = &now
	}
	if actReplied {
		events.RepliedToEmailAt = &now
	}

	var result planner.CompletionResult
	if err := apiJSON(http.MethodPost, "/actions/"+args[0]+"/complete", events, &result); err != nil {
		return err
	}
	fmt.Printf("Completed action %s\n", args[0])
	if result.RelationshipState != "" {
		if result.PreviousState != "" && result.PreviousState != result.RelationshipState {
			fmt.Printf("Relationship: %s -> %s\n", result.PreviousState, result.RelationshipState)
		} else {
			fmt.Printf("Relationship: %s\n", result.RelationshipState)
		}
	}
	return nil
}

func runActionSnooze(cmd *cobra.Command, args []string) error {
	if snoozeFor <= 0 {
		return fmt.Errorf("--for must be positive")
	}
	until := time.Now().UTC().Add(snoozeFor)
	var action models.Action
	if err := apiJSON(http.MethodPost, "/actions/"+args[0]+"/snooze", map[string]interface{}{"until": until}, &action); err != nil {
		return err
	}
	fmt.Printf("Snoozed action %s until %s\n", args[0], until.Format(time.RFC3339))
	return nil
}

func runActionPromise(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{"promised_due_at": nil}
	if !promiseDrop {
		if promiseAt == "" {
			return fmt.Errorf("either --at or --clear is required")
		}
		t, err := time.Parse(time.RFC3339, promiseAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		body["promised_due_at"] = t
	}

	var action models.Action
	if err := apiJSON(http.MethodPost, "/actions/"+args[0]+"/promise", body, &action); err != nil {
		return err
	}
	if action.PromisedDueAt == nil {
		fmt.Printf("Cleared promise on %s\n", args[0])
	} else {
		fmt.Printf("Promised %s by %s\n", args[0], action.PromisedDueAt.Format(time.RFC3339))
	}
	return nil
}

func runActionState(cmd *cobra.Command, args []string) error {
	var action models.Action
	if err := apiJSON(http.MethodPost, "/actions/"+args[0]+"/state", map[string]string{"state": args[1]}, &action); err != nil {
		return err
	}
	fmt.Printf("Action %s is now %s\n", args[0], action.State)
	return nil
}

func runActionArchive(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/actions/"+args[0]+"/archive", nil); err != nil {
		return err
	}
	fmt.Printf("Archived action %s\n", args[0])
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
