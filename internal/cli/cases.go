package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prahari-health/prahari/internal/model"
)

var (
	casesExpertID int64
	casesNotes    string
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Work the escalation queue",
	Long: `Cases lists and advances escalated conversations. Every case moves
open -> in_progress -> resolved, or is closed outright.`,
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open and in-progress cases",
	RunE:  runCasesList,
}

var casesReviewCmd = &cobra.Command{
	Use:   "review <case-number>",
	Short: "Claim a case for review",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesReview,
}

var casesResolveCmd = &cobra.Command{
	Use:   "resolve <case-number>",
	Short: "Resolve a reviewed case",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesResolve,
}

var casesCloseCmd = &cobra.Command{
	Use:   "close <case-number>",
	Short: "Close a case without resolution",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesClose,
}

func init() {
	rootCmd.AddCommand(casesCmd)
	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesReviewCmd)
	casesCmd.AddCommand(casesResolveCmd)
	casesCmd.AddCommand(casesCloseCmd)

	casesListCmd.Flags().Int64Var(&casesExpertID, "expert", 0, "only cases assigned to this expert")
	casesReviewCmd.Flags().Int64Var(&casesExpertID, "expert", 0, "expert taking the case")
	casesResolveCmd.Flags().StringVar(&casesNotes, "notes", "", "resolution notes")
	casesCloseCmd.Flags().StringVar(&casesNotes, "notes", "", "closing notes")
}

func runCasesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := buildApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	var expert *int64
	if cmd.Flags().Changed("expert") {
		expert = &casesExpertID
	}

	cases, err := app.cases.ListPending(ctx, expert)
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}
	if len(cases) == 0 {
		fmt.Println("No pending cases.")
		return nil
	}

	fmt.Printf("%-16s %-9s %-12s %-17s %-14s %s\n",
		"CASE", "SEVERITY", "STATUS", "CREATED", "USER", "REASON")
	for _, c := range cases {
		fmt.Printf("%-16s %-9s %-12s %-17s %-14s %s\n",
			c.CaseNumber,
			c.Severity,
			c.Status,
			c.CreatedAt.Format("2006-01-02 15:04"),
			truncate(c.UserID, 14),
			truncate(c.Reason, 50))
	}
	fmt.Printf("\n%d pending case(s)\n", len(cases))
	return nil
}

func runCasesReview(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := buildApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	var expert *int64
	if cmd.Flags().Changed("expert") {
		expert = &casesExpertID
	}

	c, err := app.cases.StartReview(ctx, args[0], expert)
	if err != nil {
		return fmt.Errorf("review case: %w", err)
	}

	fmt.Printf("✓ %s in review\n", c.CaseNumber)
	if c.AssignedExpertID != nil {
		fmt.Printf("  Assigned to expert %d\n", *c.AssignedExpertID)
	}
	printCase(c)
	return nil
}

func runCasesResolve(cmd *cobra.Command, args []string) error {
	return finishCase(args[0], "resolved", func(ctx context.Context, a *app) (*model.EscalatedCase, error) {
		return a.cases.ResolveCase(ctx, args[0], casesNotes)
	})
}

func runCasesClose(cmd *cobra.Command, args []string) error {
	return finishCase(args[0], "closed", func(ctx context.Context, a *app) (*model.EscalatedCase, error) {
		return a.cases.CloseCase(ctx, args[0], casesNotes)
	})
}

func finishCase(caseNumber, verb string, fn func(context.Context, *app) (*model.EscalatedCase, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := buildApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	c, err := fn(ctx, app)
	if err != nil {
		return fmt.Errorf("%s case: %w", verb, err)
	}

	fmt.Printf("✓ %s %s\n", c.CaseNumber, verb)
	if c.ResolutionNotes != "" {
		fmt.Printf("  Notes: %s\n", c.ResolutionNotes)
	}
	return nil
}

func printCase(c *model.EscalatedCase) {
	fmt.Printf("  Severity: %s\n", c.Severity)
	fmt.Printf("  User:     %s\n", c.UserID)
	fmt.Printf("  Reason:   %s\n", c.Reason)
	fmt.Printf("  Query:    %s\n", truncate(c.OriginalQuery, 80))
}
