package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prahari-health/prahari/internal/knowledge"
	"github.com/prahari-health/prahari/internal/model"
	"github.com/prahari-health/prahari/internal/sourcecheck"
)

var (
	sourcesCheckTimeout time.Duration
	sourcesCheckJSON    bool
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the medical sources behind the knowledge base",
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Sweep source websites for reachability",
	Long: `Check fetches every active source's URL, honoring robots.txt and
per-domain rate limits, and reports which references are still serving.

Without a database the sweep falls back to the built-in catalog.

Example:
  prahari sources check
  prahari sources check --json`,
	RunE: runSourcesCheck,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesCheckCmd)

	sourcesCheckCmd.Flags().DurationVar(&sourcesCheckTimeout, "timeout", 5*time.Minute, "sweep timeout")
	sourcesCheckCmd.Flags().BoolVar(&sourcesCheckJSON, "json", false, "print reports as JSON")
}

func runSourcesCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), sourcesCheckTimeout)
	defer cancel()

	app, err := buildApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	sources, err := loadSources(ctx, app)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		fmt.Println("No active sources to check.")
		return nil
	}

	checker := sourcecheck.NewChecker(app.cfg.HTTP, app.cfg.RateLimit, app.logger)
	reports := checker.CheckAll(ctx, sources)

	if sourcesCheckJSON {
		return printReportsJSON(reports)
	}
	printReports(reports)
	return nil
}

// loadSources prefers the database; without one the built-in catalog
// still gives the sweep something to walk.
func loadSources(ctx context.Context, app *app) ([]model.MedicalSource, error) {
	if app.know != nil {
		return app.know.ActiveSources(ctx)
	}
	app.logger.Warn("no database configured, checking built-in catalog")
	catalog := knowledge.DefaultCatalog()
	sources := make([]model.MedicalSource, 0, len(catalog.Sources))
	for _, cs := range catalog.Sources {
		sources = append(sources, model.MedicalSource{
			Name:           cs.Name,
			AuthorityLevel: cs.AuthorityLevel,
			URL:            cs.URL,
			IsActive:       true,
		})
	}
	return sources, nil
}

func printReports(reports []sourcecheck.SourceReport) {
	fmt.Fprintln(os.Stderr, "═══════════════════════════════════════════════")
	fmt.Fprintln(os.Stderr, "  Prahari Source Sweep")
	fmt.Fprintln(os.Stderr, "═══════════════════════════════════════════════")

	for _, r := range reports {
		icon := statusIcon(r.Status)
		line := fmt.Sprintf("%s %-40s", icon, r.Source.Name)
		if r.HTTPStatus != 0 {
			line += fmt.Sprintf(" [%d]", r.HTTPStatus)
		}
		if r.Detail != "" {
			line += " " + truncate(r.Detail, 60)
		}
		fmt.Println(line)
	}

	counts := sourcecheck.CountByStatus(reports)
	fmt.Fprintln(os.Stderr, "───────────────────────────────────────────────")
	fmt.Fprintf(os.Stderr, "  Reachable: %d  Blocked: %d  Broken: %d  Skipped: %d\n",
		counts[sourcecheck.StatusReachable],
		counts[sourcecheck.StatusBlocked],
		counts[sourcecheck.StatusBroken],
		counts[sourcecheck.StatusSkipped])
	fmt.Fprintln(os.Stderr, "═══════════════════════════════════════════════")
}

func printReportsJSON(reports []sourcecheck.SourceReport) error {
	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reports: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func statusIcon(s sourcecheck.Status) string {
	switch s {
	case sourcecheck.StatusReachable:
		return "✓"
	case sourcecheck.StatusBlocked:
		return "⚠"
	case sourcecheck.StatusBroken:
		return "✗"
	default:
		return "-"
	}
}
