package ranking

import "github.com/radicalcardists/card-recommender/internal/types"

const (
	// DefaultEvidenceCap is the maximum number of hits admitted into one
	// card's evidence set
	DefaultEvidenceCap = 3
	// DefaultShortlistSize is the Top-M passed to the benefit oracle
	DefaultShortlistSize = 5
	// DefaultCoverageUnit is the bonus per distinct matched spending category
	DefaultCoverageUnit = 1.0
	// DefaultPenaltyUnit is the deduction per violated user constraint
	DefaultPenaltyUnit = 1.0

	// secondEvidenceWeight and thirdEvidenceWeight discount the second and
	// third strongest evidence items when folding them into the similarity
	// score
	secondEvidenceWeight = 0.6
	thirdEvidenceWeight  = 0.3
)

// EvidenceStage names one step of the evidence fill order. The exact
// order is policy, not a law of the domain, so it travels in the config.
type EvidenceStage string

const (
	// StageBenefitMatching admits benefit chunks whose category matches a
	// category the user actually spends in
	StageBenefitMatching EvidenceStage = "benefit-matching"
	// StageNotes admits notes chunks; they carry hard constraints and
	// exclusions
	StageNotes EvidenceStage = "notes"
	// StageSummaryFallback admits the summary chunk only when no matching
	// benefit evidence was found; summary is the weakest, most generic
	// signal and must not dilute specific benefit evidence
	StageSummaryFallback EvidenceStage = "summary-fallback"
	// StageSummary admits the summary chunk whenever the cap allows
	StageSummary EvidenceStage = "summary"
	// StageBenefitRemaining admits benefit chunks that did not match any
	// user category, so a card whose hits are all off-category still
	// competes
	StageBenefitRemaining EvidenceStage = "benefit-remaining"
)

// DefaultEvidenceStages is the default fill order
var DefaultEvidenceStages = []EvidenceStage{
	StageBenefitMatching,
	StageNotes,
	StageSummaryFallback,
	StageBenefitRemaining,
}

// Config is the complete, immutable ranking configuration for one
// request. Callers thread it through every call; nothing in this package
// reads mutable package state.
type Config struct {
	DocTypeWeights map[types.DocType]float64
	EvidenceCap    int
	ShortlistSize  int
	CoverageUnit   float64
	PenaltyUnit    float64
	EvidenceStages []EvidenceStage
}

// DefaultConfig returns the standard ranking configuration
func DefaultConfig() Config {
	return Config{
		DocTypeWeights: map[types.DocType]float64{
			types.DocTypeSummary: 1.15,
			types.DocTypeBenefit: 1.0,
			types.DocTypeNotes:   0.85,
		},
		EvidenceCap:    DefaultEvidenceCap,
		ShortlistSize:  DefaultShortlistSize,
		CoverageUnit:   DefaultCoverageUnit,
		PenaltyUnit:    DefaultPenaltyUnit,
		EvidenceStages: DefaultEvidenceStages,
	}
}

// WithDocTypeWeights returns a copy of the config with the given
// weights laid over the existing ones. Doc types the overrides do not
// mention keep their configured weight; the receiver's map is never
// mutated, so a shared default config stays shared.
func (c Config) WithDocTypeWeights(overrides map[types.DocType]float64) Config {
	if len(overrides) == 0 {
		return c
	}
	merged := make(map[types.DocType]float64, len(c.DocTypeWeights)+len(overrides))
	for docType, weight := range c.DocTypeWeights {
		merged[docType] = weight
	}
	for docType, weight := range overrides {
		merged[docType] = weight
	}
	c.DocTypeWeights = merged
	return c
}

// Weight returns the doc-type weight, defaulting to 1.0 for types the
// config does not mention
func (c Config) Weight(docType types.DocType) float64 {
	if w, ok := c.DocTypeWeights[docType]; ok {
		return w
	}
	return 1.0
}

// Adjusted computes a hit's doc-type weighted score
func (c Config) Adjusted(hit types.RetrievedHit) float64 {
	return hit.RawScore * c.Weight(hit.DocType)
}
