package types

import "github.com/shopspring/decimal"

// SpendingEntry describes estimated monthly spend in one category
type SpendingEntry struct {
	Amount         decimal.Decimal `json:"amount"`
	Merchants      []string        `json:"merchants,omitempty"`
	PaymentMethods []string        `json:"payment_methods,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// Preferences are soft user wishes; they influence scoring but never
// exclude a card outright
type Preferences struct {
	MaxAnnualFee        *decimal.Decimal `json:"max_annual_fee,omitempty"`
	PreferredTypes      []CardType       `json:"prefer_types,omitempty"`
	PreferredBrands     []string         `json:"prefer_brands,omitempty"`
	CardCountPreference string           `json:"card_count_preference,omitempty"`
	OnlyOnline          bool             `json:"only_online,omitempty"`
}

// Constraints are hard facts about the user's situation
type Constraints struct {
	EstimatedPriorMonthSpend *decimal.Decimal `json:"pre_month_spending_estimate,omitempty"`
	MustIncludeCategories    []string         `json:"must_include_categories,omitempty"`
	MustExcludeCategories    []string         `json:"must_exclude_categories,omitempty"`
}

// Filters are hard structured filters pushed down to the similarity
// index; only expressions the user stated as absolute become filters
type Filters struct {
	AnnualFeeMax     *decimal.Decimal `json:"annual_fee_max,omitempty"`
	PriorMonthMinMax *decimal.Decimal `json:"pre_month_min_max,omitempty"`
	Type             CardType         `json:"type,omitempty"`
	OnlyOnline       bool             `json:"only_online,omitempty"`
}

// UserIntent is the structured form of a free-text spending description,
// produced once per request by the intent-parsing oracle and treated as
// read-only input from then on.
type UserIntent struct {
	Spending      map[string]SpendingEntry `json:"spending"`
	Subscriptions []string                 `json:"subscriptions,omitempty"`
	Preferences   Preferences              `json:"preferences"`
	Constraints   Constraints              `json:"constraints"`
	Confidence    float64                  `json:"confidence,omitempty"`
	Uncertainties []string                 `json:"uncertainties,omitempty"`
	QueryText     string                   `json:"query_text"`
	Filters       Filters                  `json:"filters"`
}

// SpendingCategories returns the categories the user actually spends in,
// restricted to the allowed set
func (u UserIntent) SpendingCategories() map[string]bool {
	out := make(map[string]bool, len(u.Spending))
	for category, entry := range u.Spending {
		if entry.Amount.IsPositive() {
			if _, ok := AllowedCategoriesMap[category]; ok {
				out[category] = true
			}
		}
	}
	return out
}
