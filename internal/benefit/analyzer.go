// Package benefit runs the benefit oracle over the shortlisted
// candidates. Each candidate is analyzed independently against the
// user's stated spending; a failed analysis drops the candidate rather
// than failing the request.
package benefit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/oracle"
	"github.com/radicalcardists/card-recommender/internal/types"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency bounds parallel oracle calls
	DefaultConcurrency = 3
	// DefaultPerCandidateTimeout bounds one candidate's analysis
	DefaultPerCandidateTimeout = 60 * time.Second
	// maxListItems caps warnings and tips so a rambling model cannot
	// flood the response
	maxListItems = 5
)

const systemPrompt = "You estimate the monetary value of a card's benefits for a specific user. " +
	"Use only the benefit evidence provided; do not invent benefits the evidence does not mention. " +
	"Apply caps, minimum-spend conditions and exclusions conservatively. " +
	"When a condition cannot be verified from the user's spending, assume it is not met " +
	"and add a warning instead of counting the benefit."

// Analyzer fans the benefit oracle out over candidates
type Analyzer struct {
	oracle      *oracle.Client
	logger      *log.Logger
	concurrency int
	timeout     time.Duration
}

// NewAnalyzer creates an analyzer with the default fan-out settings
func NewAnalyzer(client *oracle.Client, logger *log.Logger) *Analyzer {
	return &Analyzer{
		oracle:      client,
		logger:      logger,
		concurrency: DefaultConcurrency,
		timeout:     DefaultPerCandidateTimeout,
	}
}

// AnalyzeAll runs the benefit oracle for every candidate and attaches
// the resulting analysis. Candidates whose analysis fails are dropped;
// an empty result with a nil error means every analysis failed and the
// caller has no winner to pick.
func (a *Analyzer) AnalyzeAll(ctx context.Context, intent types.UserIntent, candidates []types.Candidate) ([]types.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]*types.BenefitAnalysis, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, candidate := range candidates {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			analysis, err := a.Analyze(callCtx, intent, candidate)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.Warn("Benefit analysis failed, dropping candidate",
					"card_id", candidate.CardID, "error", err)
				return nil
			}
			results[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analyzed := make([]types.Candidate, 0, len(candidates))
	for i, candidate := range candidates {
		if results[i] == nil {
			continue
		}
		candidate.Analysis = results[i]
		analyzed = append(analyzed, candidate)
	}
	return analyzed, nil
}

// Analyze runs the benefit oracle for a single candidate
func (a *Analyzer) Analyze(ctx context.Context, intent types.UserIntent, candidate types.Candidate) (*types.BenefitAnalysis, error) {
	start := time.Now()
	userPrompt := buildPrompt(intent, candidate)

	result, err := a.oracle.CallFunction(ctx, systemPrompt, userPrompt, benefitFunction(), validateAnalysis)
	if err != nil {
		return nil, fmt.Errorf("benefit analysis for card %s failed: %w", candidate.CardID, err)
	}
	analysis := result.(*types.BenefitAnalysis)
	analysis.CardID = candidate.CardID

	a.logger.Debug("Analyzed candidate benefits",
		"card_id", candidate.CardID,
		"annual_savings", analysis.AnnualSavings,
		"conditions_met", analysis.ConditionsMet,
		"duration", time.Since(start))
	return analysis, nil
}

// buildPrompt renders the user's spending and the candidate's retrieved
// evidence into the oracle's context window
func buildPrompt(intent types.UserIntent, candidate types.Candidate) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Card: %s (annual fee %s", candidate.CardName, candidate.AnnualFee.StringFixed(0))
	if candidate.PrevMonthMin.IsPositive() {
		fmt.Fprintf(&sb, ", requires %s prior-month spend", candidate.PrevMonthMin.StringFixed(0))
	}
	sb.WriteString(")\n\n")

	sb.WriteString("User's monthly spending:\n")
	categories := make([]string, 0, len(intent.Spending))
	for category := range intent.Spending {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		entry := intent.Spending[category]
		fmt.Fprintf(&sb, "- %s: %s", category, entry.Amount.StringFixed(0))
		if len(entry.Merchants) > 0 {
			fmt.Fprintf(&sb, " (merchants: %s)", strings.Join(entry.Merchants, ", "))
		}
		if len(entry.PaymentMethods) > 0 {
			fmt.Fprintf(&sb, " (via: %s)", strings.Join(entry.PaymentMethods, ", "))
		}
		if entry.Notes != "" {
			fmt.Fprintf(&sb, " (%s)", entry.Notes)
		}
		sb.WriteByte('\n')
	}
	if len(intent.Subscriptions) > 0 {
		fmt.Fprintf(&sb, "Subscriptions: %s\n", strings.Join(intent.Subscriptions, ", "))
	}
	if est := intent.Constraints.EstimatedPriorMonthSpend; est != nil {
		fmt.Fprintf(&sb, "Estimated total spend last month: %s\n", est.StringFixed(0))
	}
	if len(intent.Constraints.MustIncludeCategories) > 0 {
		fmt.Fprintf(&sb, "Categories the card must cover: %s\n", strings.Join(intent.Constraints.MustIncludeCategories, ", "))
	}

	sb.WriteString("\nCard benefit evidence:\n")
	for _, item := range candidate.Evidence {
		fmt.Fprintf(&sb, "[%s] %s\n", item.Hit.DocType, item.Hit.Text)
	}
	return sb.String()
}

func validateAnalysis(arguments json.RawMessage) (any, error) {
	var analysis types.BenefitAnalysis
	if err := json.Unmarshal(arguments, &analysis); err != nil {
		return nil, fmt.Errorf("invalid JSON in function arguments: %w", err)
	}
	if analysis.MonthlySavings.IsNegative() || analysis.AnnualSavings.IsNegative() {
		return nil, fmt.Errorf("savings must not be negative")
	}
	// A monthly figure with a zero annual figure means the model skipped
	// the annualization step
	if analysis.AnnualSavings.IsZero() && analysis.MonthlySavings.IsPositive() {
		return nil, fmt.Errorf("annual_savings must be provided when monthly_savings is positive")
	}
	if analysis.Warnings == nil {
		analysis.Warnings = []string{}
	}
	if len(analysis.Warnings) > maxListItems {
		analysis.Warnings = analysis.Warnings[:maxListItems]
	}
	if len(analysis.OptimizationTips) > maxListItems {
		analysis.OptimizationTips = analysis.OptimizationTips[:maxListItems]
	}
	return &analysis, nil
}

func benefitFunction() openai.FunctionDefinition {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"monthly_savings": map[string]any{
				"type":        "number",
				"description": "Estimated monthly savings from the card's benefits, after caps and conditions",
			},
			"annual_savings": map[string]any{
				"type":        "number",
				"description": "Estimated annual savings, normally 12x monthly unless benefits are time-limited",
			},
			"conditions_met": map[string]any{
				"type":        "boolean",
				"description": "Whether the user's spending satisfies the card's benefit conditions",
			},
			"warnings": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Conditions that could not be verified or are likely to be missed",
			},
			"category_breakdown": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "number"},
				"description":          "Monthly savings per spending category",
			},
			"optimization_tips": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Concrete ways the user could earn more from this card",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Short explanation of how the savings were computed",
			},
		},
		"required": []string{"monthly_savings", "annual_savings", "conditions_met", "warnings"},
	}
	return openai.FunctionDefinition{
		Name:        "analyze_benefit",
		Description: "Estimate the monetary benefit of a card for the user's spending pattern",
		Parameters:  params,
	}
}
