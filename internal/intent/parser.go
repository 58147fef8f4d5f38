// Package intent turns a free-form description of spending habits into
// a structured UserIntent via the parsing oracle. Any syntactically
// valid intent is treated as trustworthy input downstream.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/oracle"
	"github.com/radicalcardists/card-recommender/internal/types"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You convert a user's natural-language description of their spending habits " +
	"into structured data. Extract every piece of information the user mentions. " +
	"Distinguish hard constraints from soft wishes: only absolute phrasing " +
	"(\"never\", \"must not exceed\", \"strictly under\") becomes a filter; flexible " +
	"phrasing (\"prefer\", \"ideally\", \"ok to go over a little\") stays a preference. " +
	"Amounts are monthly unless the user says otherwise."

// Parser wraps the intent-parsing oracle
type Parser struct {
	oracle *oracle.Client
	logger *log.Logger
}

// NewParser creates a parser with explicit dependencies
func NewParser(client *oracle.Client, logger *log.Logger) *Parser {
	return &Parser{oracle: client, logger: logger}
}

// Parse converts user input into a UserIntent
func (p *Parser) Parse(ctx context.Context, userInput string) (types.UserIntent, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return types.UserIntent{}, fmt.Errorf("user input is empty")
	}

	start := time.Now()
	result, err := p.oracle.CallFunction(ctx, systemPrompt, userInput, intentFunction(), validateIntent)
	if err != nil {
		return types.UserIntent{}, fmt.Errorf("intent parsing failed: %w", err)
	}
	parsed := result.(*types.UserIntent)

	p.logger.Debug("Parsed user intent",
		"categories", len(parsed.Spending),
		"query_text", parsed.QueryText,
		"confidence", parsed.Confidence,
		"duration", time.Since(start))
	return *parsed, nil
}

// validateIntent parses the function arguments and normalizes spending
// categories onto the closed category set
func validateIntent(arguments json.RawMessage) (any, error) {
	var parsed types.UserIntent
	if err := json.Unmarshal(arguments, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON in function arguments: %w", err)
	}
	if strings.TrimSpace(parsed.QueryText) == "" {
		return nil, fmt.Errorf("query_text must not be empty")
	}

	normalized := make(map[string]types.SpendingEntry, len(parsed.Spending))
	for category, entry := range parsed.Spending {
		if entry.Amount.IsNegative() {
			return nil, fmt.Errorf("spending amount for %q must not be negative", category)
		}
		key := types.NormalizeCategory(category)
		if key == "" {
			continue
		}
		if existing, ok := normalized[key]; ok {
			existing.Amount = existing.Amount.Add(entry.Amount)
			normalized[key] = existing
		} else {
			normalized[key] = entry
		}
	}
	parsed.Spending = normalized

	for i, category := range parsed.Constraints.MustIncludeCategories {
		parsed.Constraints.MustIncludeCategories[i] = types.NormalizeCategory(category)
	}
	for i, category := range parsed.Constraints.MustExcludeCategories {
		parsed.Constraints.MustExcludeCategories[i] = types.NormalizeCategory(category)
	}

	if t := parsed.Filters.Type; t != "" && t != types.CardTypeCredit && t != types.CardTypeDebit {
		return nil, fmt.Errorf("filter type must be credit or debit, got %q", t)
	}
	return &parsed, nil
}

// intentFunction is the schema of the extract_spending_pattern call
func intentFunction() openai.FunctionDefinition {
	spendingEntry := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{
				"type":        "number",
				"description": "Estimated monthly spend in this category",
			},
			"merchants": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Merchants or services the user mentioned",
			},
			"payment_methods": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Payment methods the user mentioned for this category",
			},
			"notes": map[string]any{
				"type":        "string",
				"description": "Extra context, e.g. weekends only",
			},
		},
		"required": []string{"amount"},
	}

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"spending": map[string]any{
				"type":                 "object",
				"description":          "Estimated monthly spend per category; keys are spending categories",
				"additionalProperties": spendingEntry,
			},
			"subscriptions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Subscription services the user pays for",
			},
			"preferences": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"max_annual_fee": map[string]any{
						"type":        "number",
						"description": "Soft annual fee ceiling",
					},
					"prefer_types": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": []string{"credit", "debit"}},
						"description": "Preferred card types",
					},
					"prefer_brands": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Preferred card brands",
					},
					"card_count_preference": map[string]any{
						"type":        "string",
						"description": "How many cards the user wants, e.g. 1 or 2-3",
					},
					"only_online": map[string]any{
						"type":        "boolean",
						"description": "Whether the user prefers online-only cards",
					},
				},
			},
			"constraints": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pre_month_spending_estimate": map[string]any{
						"type":        "number",
						"description": "Estimated total spend last month",
					},
					"must_include_categories": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"must_exclude_categories": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
			},
			"confidence": map[string]any{
				"type":        "number",
				"description": "Extraction confidence between 0 and 1",
				"minimum":     0,
				"maximum":     1,
			},
			"uncertainties": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Ambiguous or missing information",
			},
			"query_text": map[string]any{
				"type":        "string",
				"description": "Short natural-language summary for similarity search, e.g. 'groceries 300, video subscriptions, digital payments, low fee, debit preferred'",
			},
			"filters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"annual_fee_max": map[string]any{
						"type":        "number",
						"description": "Hard annual fee ceiling",
					},
					"pre_month_min_max": map[string]any{
						"type":        "number",
						"description": "Hard ceiling on acceptable prior-month spend requirements",
					},
					"type": map[string]any{
						"type": "string",
						"enum": []string{"credit", "debit"},
					},
					"only_online": map[string]any{
						"type": "boolean",
					},
				},
			},
		},
		"required": []string{"spending", "query_text", "filters"},
	}

	return openai.FunctionDefinition{
		Name:        "extract_spending_pattern",
		Description: "Extract spending pattern, preferences and constraints from a natural-language description",
		Parameters:  params,
	}
}
