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

var relationshipCmd = &cobra.Command{
	Use:     "relationship",
	Aliases: []string{"rel"},
	Short:   "Manage relationships",
}

var relAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a relationship",
	RunE:  runRelAdd,
}

var relListCmd = &cobra.Command{
	Use:   "list",
	Short: "List relationships",
	RunE:  runRelList,
}

var relShowCmd = &cobra.Command{
	Use:   "show [relationship-id]",
	Short: "Show a relationship with its derived state and lane",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelShow,
}

var relTransitionCmd = &cobra.Command{
	Use:   "transition [relationship-id] [state]",
	Short: "Manually move a relationship to another state",
	Args:  cobra.ExactArgs(2),
	RunE:  runRelTransition,
}

var relEmailCmd = &cobra.Command{
	Use:   "email [relationship-id]",
	Short: "Record email signals for a relationship",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelEmail,
}

var (
	relName        string
	relTier        string
	relCadence     string
	relDeal        string
	relNextMeeting string
	relReason      string

	emailDays       int
	emailUnread     bool
	emailThreads    int
	emailOpenLoops  bool
	emailUnanswered bool
	emailRecent     int
)

func init() {
	relationshipCmd.AddCommand(relAddCmd, relListCmd, relShowCmd, relTransitionCmd, relEmailCmd)

	relAddCmd.Flags().StringVar(&relName, "name", "", "Contact name (required)")
	relAddCmd.Flags().StringVar(&relTier, "tier", "warm", "Tier (inner, active, warm, background)")
	relAddCmd.Flags().StringVar(&relCadence, "cadence", "", "Cadence (frequent, moderate, occasional, rare)")
	relAddCmd.Flags().StringVar(&relDeal, "deal", "", "Deal stage (none, open, won, lost)")
	relAddCmd.Flags().StringVar(&relNextMeeting, "next-meeting", "", "Next meeting time (RFC3339)")
	relAddCmd.MarkFlagRequired("name")

	relTransitionCmd.Flags().StringVar(&relReason, "reason", "", "Why the state changed")

	relEmailCmd.Flags().IntVar(&emailDays, "days-since", -1, "Days since the last email (-1 for unknown)")
	relEmailCmd.Flags().BoolVar(&emailUnread, "unread", false, "There are unread emails")
	relEmailCmd.Flags().IntVar(&emailThreads, "threads", 0, "Number of threads")
	relEmailCmd.Flags().BoolVar(&emailOpenLoops, "open-loops", false, "There are open loops")
	relEmailCmd.Flags().BoolVar(&emailUnanswered, "unanswered-asks", false, "There are unanswered asks")
	relEmailCmd.Flags().IntVar(&emailRecent, "recent", 0, "Emails in the recent window")
}

func runRelAdd(cmd *cobra.Command, args []string) error {
	in := planner.RelationshipInput{
		Name:      relName,
		Tier:      models.Tier(relTier),
		Cadence:   models.Cadence(relCadence),
		DealStage: models.DealStage(relDeal),
	}
	if relNextMeeting != "" {
		t, err := time.Parse(time.RFC3339, relNextMeeting)
		if err != nil {
			return fmt.Errorf("invalid --next-meeting: %w", err)
		}
		in.NextMeetingAt = &t
	}

	var rel models.Relationship
	if err := apiJSON(http.MethodPost, "/relationships", in, &rel); err != nil {
		return err
	}
	fmt.Printf("Created relationship: %s (%s)\n", rel.ID, rel.State)
	return nil
}

func runRelList(cmd *cobra.Command, args []string) error {
	var rels []models.Relationship
	if err := apiJSON(http.MethodGet, "/relationships", nil, &rels); err != nil {
		return err
	}
	if len(rels) == 0 {
		fmt.Println("No relationships found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIER\tSTATE\tMOMENTUM\tLAST TOUCH")
	for _, r := range rels {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f %s\t%s\n",
			truncateID(r.ID), truncate(r.Name, 30), r.Tier, r.State,
			r.MomentumScore, r.MomentumTrend, formatTime(r.LastInteractionAt))
	}
	w.Flush()
	return nil
}

func runRelShow(cmd *cobra.Command, args []string) error {
	var view planner.RelationshipView
	if err := apiJSON(http.MethodGet, "/relationships/"+args[0]+"/state", nil, &view); err != nil {
		return err
	}

	r := view.Relationship
	fmt.Printf("ID:         %s\n", r.ID)
	fmt.Printf("Name:       %s\n", r.Name)
	fmt.Printf("Tier:       %s\n", r.Tier)
	fmt.Printf("Cadence:    %s\n", r.Cadence)
	fmt.Printf("Deal:       %s\n", r.DealStage)
	fmt.Printf("State:      %s (detected %s)\n", r.State, view.DetectedState)
	fmt.Printf("Lane:       %s\n", view.Lane)
	fmt.Printf("Momentum:   %.1f %s\n", view.Snapshot.MomentumScore, view.Snapshot.MomentumTrend)
	fmt.Printf("Pending:    %d (%d overdue)\n", view.Snapshot.PendingActionsCount, view.Snapshot.OverdueActionsCount)
	if view.Snapshot.DaysSinceLastInteraction != nil {
		fmt.Printf("Silence:    %d days\n", *view.Snapshot.DaysSinceLastInteraction)
	}
	if view.Snapshot.NextMoveActionID != "" {
		fmt.Printf("Next move:  %s\n", view.Snapshot.NextMoveActionID)
	}
	fmt.Printf("Actions:    %v\n", view.ValidActionTypes)
	return nil
}

func runRelTransition(cmd *cobra.Command, args []string) error {
	in := planner.TransitionInput{To: models.RelationshipState(args[1]), Reason: relReason}
	var rel models.Relationship
	if err := apiJSON(http.MethodPost, "/relationships/"+args[0]+"/transition", in, &rel); err != nil {
		return err
	}
	fmt.Printf("Relationship %s is now %s\n", truncateID(rel.ID), rel.State)
	return nil
}

func runRelEmail(cmd *cobra.Command, args []string) error {
	in := planner.EmailSignalsInput{
		HasUnread:         emailUnread,
		ThreadCount:       emailThreads,
		HasOpenLoops:      emailOpenLoops,
		HasUnansweredAsks: emailUnanswered,
		RecentEmailCount:  emailRecent,
	}
	if emailDays >= 0 {
		in.DaysSinceLastEmail = &emailDays
	}
	if _, err := apiPut("/relationships/"+args[0]+"/email-signals", in); err != nil {
		return err
	}
	fmt.Printf("Updated email signals for %s\n", args[0])
	return nil
}
