package types

import "github.com/shopspring/decimal"

// EvidenceItem is one retrieved hit admitted into a card's evidence set,
// carrying the doc-type weighted score used for ranking
type EvidenceItem struct {
	Hit           RetrievedHit `json:"hit"`
	AdjustedScore float64      `json:"adjusted_score"` // RawScore x doc-type weight
}

// ScoreBreakdown carries every number that contributed to a card's
// similarity-phase score, for the explain surface
type ScoreBreakdown struct {
	SimilarityScore float64 `json:"similarity_score"`
	CoverageBonus   float64 `json:"coverage_bonus"`
	Penalty         float64 `json:"penalty"`
	NormalizedScore float64 `json:"normalized_score"` // diagnostic only, never used for ordering
}

// CardAggregate is the per-card result of evidence aggregation and
// similarity scoring. Derived per query, never cached across requests.
type CardAggregate struct {
	CardID    string         `json:"card_id"`
	CardName  string         `json:"card_name"`
	Evidence  []EvidenceItem `json:"evidence"`   // ordered by descending AdjustedScore, at most the evidence cap
	TotalHits int            `json:"total_hits"` // all hits retrieved for this card, before capping
	Scores    ScoreBreakdown `json:"scores"`
}

// ShortlistScore is the value used for Top-M selection. The normalized
// score deliberately plays no part here so a card with few but highly
// specific chunks is not punished.
func (a CardAggregate) ShortlistScore() float64 {
	return a.Scores.SimilarityScore + a.Scores.CoverageBonus - a.Scores.Penalty
}

// BenefitAnalysis is the benefit oracle's verdict for one candidate
type BenefitAnalysis struct {
	CardID            string                     `json:"card_id,omitempty"`
	MonthlySavings    decimal.Decimal            `json:"monthly_savings"`
	AnnualSavings     decimal.Decimal            `json:"annual_savings"`
	ConditionsMet     bool                       `json:"conditions_met"`
	Warnings          []string                   `json:"warnings"`
	CategoryBreakdown map[string]decimal.Decimal `json:"category_breakdown,omitempty"`
	OptimizationTips  []string                   `json:"optimization_tips,omitempty"`
	Reasoning         string                     `json:"reasoning,omitempty"`
}

// Candidate is a shortlisted card moving through the final scoring phase
type Candidate struct {
	CardID       string           `json:"card_id"`
	CardName     string           `json:"card_name"`
	Scores       ScoreBreakdown   `json:"scores"`
	Evidence     []EvidenceItem   `json:"evidence"`
	AnnualFee    decimal.Decimal  `json:"annual_fee"`
	PrevMonthMin decimal.Decimal  `json:"prev_month_min"`
	Analysis     *BenefitAnalysis `json:"analysis,omitempty"` // nil until the benefit oracle has answered
	FinalScore   float64          `json:"final_score"`
}

// Recommendation is the result of one end-to-end request: exactly one
// winner plus the full ordered shortlist it was chosen from
type Recommendation struct {
	RequestID string      `json:"request_id"`
	Intent    UserIntent  `json:"intent"`
	Winner    Candidate   `json:"winner"`
	Ranked    []Candidate `json:"ranked"`
	Response  string      `json:"response,omitempty"` // oracle-generated explanation, optional
}

// ExplainedHit pairs a hit with the exact numbers the aggregator used
// for it; the explain surface must expose these verbatim
type ExplainedHit struct {
	Hit           RetrievedHit `json:"hit"`
	RawScore      float64      `json:"raw_score"`
	DocTypeWeight float64      `json:"doc_type_weight"`
	AdjustedScore float64      `json:"adjusted_score"`
}
