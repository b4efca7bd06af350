package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/prahari-health/prahari/internal/disclaim"
	"github.com/prahari-health/prahari/internal/escalate"
	"github.com/prahari-health/prahari/internal/model"
	"github.com/prahari-health/prahari/internal/pipeline"
)

var (
	valQuery       string
	valResponse    string
	valConfidence  float64
	valSemantic    bool
	valEscalate    bool
	valJSON        bool
	valLang        string
	valUserID      string
	valMessageID   string
	valTimeout     time.Duration
	valLLMProvider string
	valLLMModel    string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate one assistant answer and print the verdict",
	Long: `Validate runs a single question and answer pair through the safety
pipeline: the deterministic rule ladder first, then (when a knowledge
base is reachable) the semantic stage that fact-checks extracted claims.
The verdict includes the risk level, the escalation decision and the
reply decorated with the matching disclaimer.

Example:
  prahari validate -q "my child has fever" -r "give paracetamol syrup and fluids"
  prahari validate -q "chest pain and breathless" -r "try relaxation" --json
  prahari validate -q "..." -r "..." --llm-provider openai --llm-model gpt-4o-mini`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&valQuery, "query", "q", "", "user question (required)")
	validateCmd.Flags().StringVarP(&valResponse, "response", "r", "", "assistant answer to validate (required)")
	validateCmd.Flags().Float64Var(&valConfidence, "confidence", 0, "generator confidence in the answer (0..1, 0 = unknown)")
	validateCmd.Flags().BoolVar(&valSemantic, "semantic", true, "run the semantic stage (needs database)")
	validateCmd.Flags().BoolVar(&valEscalate, "escalate", false, "open an expert case when the verdict requires escalation")
	validateCmd.Flags().BoolVar(&valJSON, "json", false, "print the verdict as JSON")
	validateCmd.Flags().StringVar(&valLang, "lang", "en", "disclaimer language code")
	validateCmd.Flags().StringVar(&valUserID, "user", "", "user id for the audit trail")
	validateCmd.Flags().StringVar(&valMessageID, "message-id", "", "message id for the audit trail")
	validateCmd.Flags().DurationVar(&valTimeout, "timeout", time.Minute, "overall validation timeout")

	validateCmd.Flags().StringVar(&valLLMProvider, "llm-provider", "", "claim extraction provider (openai, anthropic, ollama)")
	validateCmd.Flags().StringVar(&valLLMModel, "llm-model", "", "claim extraction model name")

	_ = validateCmd.MarkFlagRequired("query")
	_ = validateCmd.MarkFlagRequired("response")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), valTimeout)
	defer cancel()

	if err := applyLLMFlags(valLLMProvider, valLLMModel); err != nil {
		return err
	}

	app, err := buildApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	input := pipeline.Input{
		UserQuery:          valQuery,
		BotResponse:        valResponse,
		BaselineConfidence: valConfidence,
		UserID:             valUserID,
		MessageID:          valMessageID,
		UseSemantic:        app.cfg.Validation.SemanticEnabled,
	}
	if cmd.Flags().Changed("semantic") {
		input.UseSemantic = valSemantic
	}

	result, err := app.orch.Validate(ctx, input)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	disclaimer, err := app.selector.GetDisclaimer(ctx, result.RiskLevel, model.Language(valLang))
	if err != nil {
		app.logger.Warn("disclaimer selection failed", zap.Error(err))
	}

	reply := valResponse
	if disclaimer != nil {
		reply = disclaim.Append(valResponse, disclaimer)
		if valUserID != "" {
			_ = app.selector.TrackShown(ctx, valUserID, disclaimer, valMessageID,
				disclaim.TrackingContext(result.RiskLevel, triggeredKeywords(result)))
		}
	}

	var opened *model.EscalatedCase
	if valEscalate && result.RequiresEscalation {
		opened, err = openCase(ctx, app, input, result)
		if err != nil {
			return err
		}
	}

	if valJSON {
		return printVerdictJSON(result, reply, opened)
	}
	printVerdict(result, reply, opened)
	return nil
}

// applyLLMFlags pushes the LLM flags into viper so loadConfig sees them,
// pulling the provider's API key from the environment when the config
// carries none.
func applyLLMFlags(provider, modelName string) error {
	if modelName != "" {
		viper.Set("llm.model", modelName)
	}
	if provider == "" {
		return nil
	}
	viper.Set("llm.provider", provider)

	if viper.GetString("llm.api_key") != "" {
		return nil
	}
	switch strings.ToLower(provider) {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		viper.Set("llm.api_key", key)
	case "anthropic", "claude":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		viper.Set("llm.api_key", key)
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			viper.Set("llm.base_url", baseURL)
		}
	}
	return nil
}

// openCase hands an escalation-worthy verdict to the expert queue
func openCase(ctx context.Context, app *app, input pipeline.Input, result *model.ValidationResult) (*model.EscalatedCase, error) {
	if app.cases == nil {
		app.logger.Warn("escalation requested but no database is configured")
		return nil, nil
	}

	opened, err := app.cases.OpenCase(ctx, escalate.OpenCaseInput{
		UserID:   input.UserID,
		Query:    input.UserQuery,
		Response: input.BotResponse,
		Severity: result.RiskLevel,
		Reason:   result.Message,
		Keywords: triggeredKeywords(result),
	})
	if err != nil {
		return nil, fmt.Errorf("escalate: %w", err)
	}
	return opened, nil
}

func triggeredKeywords(result *model.ValidationResult) []string {
	keywords := make([]string, 0, len(result.EmergencyKeywords)+len(result.HighRiskKeywords))
	keywords = append(keywords, result.EmergencyKeywords...)
	keywords = append(keywords, result.HighRiskKeywords...)
	return keywords
}

func printVerdict(result *model.ValidationResult, reply string, opened *model.EscalatedCase) {
	fmt.Printf("Risk level:   %s\n", result.RiskLevel)
	fmt.Printf("Confidence:   %.2f\n", result.ConfidenceScore)

	escalation := "no"
	if result.RequiresEscalation {
		escalation = fmt.Sprintf("yes (%s)", result.EscalationTrigger)
	}
	fmt.Printf("Escalation:   %s\n", escalation)
	if result.Rule != "" {
		fmt.Printf("Decided by:   %s\n", result.Rule)
	}
	if result.AccuracyScore != nil {
		fmt.Printf("Accuracy:     %.2f\n", *result.AccuracyScore)
	}
	fmt.Printf("Assessment:   %s\n", result.Message)

	for _, claim := range result.ContradictedClaims {
		fmt.Printf("  ✗ %s\n", claim)
	}
	for _, claim := range result.VerifiedClaims {
		fmt.Printf("  ✓ %s\n", claim)
	}
	if opened != nil {
		fmt.Printf("Case opened:  %s\n", opened.CaseNumber)
	}

	fmt.Println()
	fmt.Println(reply)
}

func printVerdictJSON(result *model.ValidationResult, reply string, opened *model.EscalatedCase) error {
	out := struct {
		Result *model.ValidationResult `json:"result"`
		Reply  string                  `json:"reply"`
		Case   *model.EscalatedCase    `json:"case,omitempty"`
	}{Result: result, Reply: reply, Case: opened}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
