package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
	"github.com/nextbestmove/nbm/internal/planner"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the daily plan",
	RunE:  runPlan,
}

var fitCmd = &cobra.Command{
	Use:   "fit [minutes]",
	Short: "Pick the best action for a free slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runFit,
}

var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Show the day's capacity",
	RunE:  runCapacityShow,
}

var capacitySetCmd = &cobra.Command{
	Use:   "set [level]",
	Short: "Override the capacity for one day",
	Args:  cobra.ExactArgs(1),
	RunE:  runCapacitySet,
}

var capacityClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the override for one day",
	RunE:  runCapacityClear,
}

var capacityDefaultCmd = &cobra.Command{
	Use:   "default [level]",
	Short: "Set your default capacity",
	Args:  cobra.ExactArgs(1),
	RunE:  runCapacityDefault,
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show recent decision records",
	RunE:  runDecisions,
}

var (
	planDate       string
	capacityDate   string
	capacityReason string
	decisionLimit  int
)

func init() {
	planCmd.Flags().StringVar(&planDate, "date", "", "Plan date (YYYY-MM-DD, default today)")

	capacityCmd.AddCommand(capacitySetCmd, capacityClearCmd, capacityDefaultCmd)
	capacityCmd.PersistentFlags().StringVar(&capacityDate, "date", "", "Date (YYYY-MM-DD, default today)")
	capacitySetCmd.Flags().StringVar(&capacityReason, "reason", "", "Why the day is lighter or heavier")

	decisionsCmd.Flags().IntVar(&decisionLimit, "limit", 20, "Number of records")
}

func dateQuery(date string) string {
	if date == "" {
		return ""
	}
	return "?date=" + date
}

func runPlan(cmd *cobra.Command, args []string) error {
	var plan planner.Plan
	if err := apiJSON(http.MethodGet, "/plan"+dateQuery(planDate), nil, &plan); err != nil {
		return err
	}

	fmt.Printf("Plan for %s: %s capacity (%s), %d slots\n",
		plan.Date, plan.Capacity.Level, plan.Capacity.Source, plan.Capacity.ActionCount)
	if len(plan.Actions) == 0 {
		fmt.Println("Nothing to do")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LANE\tSCORE\tID\tTITLE\tTYPE\tDUE")
	for _, sa := range plan.Actions {
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\t%s\n",
			sa.Lane, sa.Score, truncateID(sa.Action.ID), truncate(sa.Action.Title, 40),
			sa.Action.Type, formatDate(sa.Action.DueDate))
	}
	w.Flush()
	return nil
}

func runFit(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("minutes must be an integer: %w", err)
	}

	var fit planner.FitResponse
	if err := apiJSON(http.MethodGet, "/actions/fit?minutes="+strconv.Itoa(minutes), nil, &fit); err != nil {
		return err
	}
	if fit.Action == nil {
		fmt.Printf("Nothing fits in %d minutes\n", minutes)
		return nil
	}

	a := fit.Action.Action
	fmt.Printf("Best for %d minutes: %s\n", minutes, a.Title)
	fmt.Printf("ID:     %s\n", a.ID)
	fmt.Printf("Type:   %s\n", a.Type)
	fmt.Printf("Lane:   %s\n", fit.Action.Lane)
	fmt.Printf("Score:  %.1f\n", fit.Action.Score)
	if a.EstimatedMinutes != nil {
		fmt.Printf("Effort: %d min\n", *a.EstimatedMinutes)
	}
	return nil
}

func runCapacityShow(cmd *cobra.Command, args []string) error {
	var capacity models.Capacity
	if err := apiJSON(http.MethodGet, "/capacity"+dateQuery(capacityDate), nil, &capacity); err != nil {
		return err
	}
	fmt.Printf("Level:   %s\n", capacity.Level)
	fmt.Printf("Actions: %d\n", capacity.ActionCount)
	fmt.Printf("Source:  %s\n", capacity.Source)
	if capacity.Reason != "" {
		fmt.Printf("Reason:  %s\n", capacity.Reason)
	}
	return nil
}

func runCapacitySet(cmd *cobra.Command, args []string) error {
	in := planner.CapacityInput{Level: models.CapacityLevel(args[0]), Reason: capacityReason}
	var o models.CapacityOverride
	if err := apiJSON(http.MethodPut, "/capacity"+dateQuery(capacityDate), in, &o); err != nil {
		return err
	}
	fmt.Printf("Capacity for %s set to %s\n", o.Date, o.Level)
	return nil
}

func runCapacityClear(cmd *cobra.Command, args []string) error {
	if err := apiDelete("/capacity" + dateQuery(capacityDate)); err != nil {
		return err
	}
	fmt.Println("Capacity override cleared")
	return nil
}

func runCapacityDefault(cmd *cobra.Command, args []string) error {
	if _, err := apiPut("/capacity/default", planner.CapacityInput{Level: models.CapacityLevel(args[0])}); err != nil {
		return err
	}
	fmt.Printf("Default capacity set to %s\n", args[0])
	return nil
}

func runDecisions(cmd *cobra.Command, args []string) error {
	var decisions []models.Decision
	if err := apiJSON(http.MethodGet, "/decisions?limit="+strconv.Itoa(decisionLimit), nil, &decisions); err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No decisions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tOUTCOME\tSUBJECT\tINPUTS")
	for _, d := range decisions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.Timestamp.Local().Format(time.DateTime), d.Kind, truncate(d.Outcome, 30),
			truncateID(d.SubjectID), truncateID(d.InputsHash))
	}
	w.Flush()
	return nil
}
