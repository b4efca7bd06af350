package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prahari-health/prahari/internal/model"
	"github.com/prahari-health/prahari/internal/worker"
)

var (
	batchConcurrency int
	batchOutputDir   string
	batchTimeout     time.Duration
	batchEscalate    bool
	batchLLMProvider string
	batchLLMModel    string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Validate recorded conversations from a file in parallel",
	Long: `Batch validates recorded conversations concurrently. The input file
holds one conversation per line, pipe-separated:

  user query|assistant answer|confidence

The confidence field is optional; lines starting with # are skipped.
Each conversation gets a JSON verdict in the output directory and the
run prints a summary by risk level.

Example:
  prahari batch conversations.txt
  prahari batch conversations.txt --concurrency 8 --output-dir ./verdicts
  prahari batch conversations.txt --escalate`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", runtime.NumCPU(), "number of concurrent validations")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./prahari-verdicts", "output directory for verdict files")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for the batch run")
	batchCmd.Flags().BoolVar(&batchEscalate, "escalate", false, "open expert cases for verdicts that require escalation")

	batchCmd.Flags().StringVar(&batchLLMProvider, "llm-provider", "", "claim extraction provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&batchLLMModel, "llm-model", "", "claim extraction model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	if err := applyLLMFlags(batchLLMProvider, batchLLMModel); err != nil {
		return err
	}

	app, err := buildApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	inputs, err := worker.ReadInputsFromFile(file)
	if err != nil {
		return fmt.Errorf("read conversations: %w", err)
	}
	for i := range inputs {
		inputs[i].UseSemantic = app.cfg.Validation.SemanticEnabled
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Prahari Batch Validation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:     %s\n", file)
	fmt.Fprintf(os.Stderr, "  Conversations:  %d\n", len(inputs))
	fmt.Fprintf(os.Stderr, "  Workers:        %d\n", batchConcurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:     %s\n", batchOutputDir)
	fmt.Fprintf(os.Stderr, "  Semantic:       %v\n", app.cfg.Validation.SemanticEnabled && app.know != nil)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(batchOutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(app.orch, batchConcurrency)
	outcomes := processor.Process(ctx, inputs)

	byRisk := make(map[model.RiskLevel]int)
	escalations := 0
	failures := 0

	for i, outcome := range outcomes {
		path := filepath.Join(batchOutputDir, verdictFilename(i, outcome.Input.UserQuery))
		if err := writeVerdict(path, outcome); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", truncate(outcome.Input.UserQuery, 48), err)
			failures++
			continue
		}

		if outcome.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", truncate(outcome.Input.UserQuery, 48), outcome.Error)
			continue
		}

		result := outcome.Result
		byRisk[result.RiskLevel]++
		if result.RequiresEscalation {
			escalations++
			if batchEscalate {
				if _, err := openCase(ctx, app, outcome.Input, result); err != nil {
					app.logger.Error("batch escalation failed",
						zap.String("query", outcome.Input.UserQuery), zap.Error(err))
				}
			}
		}

		fmt.Fprintf(os.Stderr, "✓ %-8s %s\n", result.RiskLevel, truncate(outcome.Input.UserQuery, 48))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:        %d\n", len(outcomes))
	for _, risk := range model.RiskLevels() {
		if byRisk[risk] > 0 {
			fmt.Fprintf(os.Stderr, "  %-12s  %d\n", string(risk)+":", byRisk[risk])
		}
	}
	fmt.Fprintf(os.Stderr, "  Escalations:  %d\n", escalations)
	fmt.Fprintf(os.Stderr, "  Failures:     %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", batchOutputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// writeVerdict stores one outcome as a JSON file
func writeVerdict(path string, outcome *worker.ValidationOutcome) error {
	report := struct {
		Query      string                  `json:"query"`
		Response   string                  `json:"response"`
		Confidence float64                 `json:"confidence,omitempty"`
		Result     *model.ValidationResult `json:"result,omitempty"`
		Error      string                  `json:"error,omitempty"`
	}{
		Query:      outcome.Input.UserQuery,
		Response:   outcome.Input.BotResponse,
		Confidence: outcome.Input.BaselineConfidence,
		Result:     outcome.Result,
	}
	if outcome.Error != nil {
		report.Error = outcome.Error.Error()
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	return nil
}

// verdictFilename builds a stable, filesystem-safe name from the query
func verdictFilename(index int, query string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, query)
	slug = strings.Trim(slug, "-")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	if slug == "" {
		slug = "conversation"
	}
	return fmt.Sprintf("%03d-%s.json", index+1, slug)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
