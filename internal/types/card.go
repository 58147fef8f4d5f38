package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CardType represents the payment type of a card
type CardType string

const (
	CardTypeCredit CardType = "credit"
	CardTypeDebit  CardType = "debit"
)

// SpendingCategory is a standardized spending category shared between
// the card corpus and parsed user intents
type SpendingCategory struct {
	Name      string
	Guideline string
}

// AllowedCategories is the closed set of standardized spending categories.
// Benefit chunks and user intents are normalized to these at ingestion
// and parse time respectively.
var AllowedCategories = []SpendingCategory{
	{Name: "grocery", Guideline: "supermarkets and grocery stores"},
	{Name: "convenience", Guideline: "convenience stores"},
	{Name: "cafe", Guideline: "coffee shops and bakeries"},
	{Name: "dining", Guideline: "restaurants and food service"},
	{Name: "delivery_app", Guideline: "food delivery platforms"},
	{Name: "digital_payment", Guideline: "digital wallets and pay services"},
	{Name: "subscription_video", Guideline: "video streaming subscriptions"},
	{Name: "subscription_music", Guideline: "music streaming subscriptions"},
	{Name: "fuel", Guideline: "fuel and service stations"},
	{Name: "transit", Guideline: "public transport and taxis"},
	{Name: "telecom", Guideline: "mobile and internet bills"},
	{Name: "travel", Guideline: "airlines, hotels and travel agencies"},
	{Name: "online_shopping", Guideline: "online retail"},
	{Name: "education", Guideline: "tuition and learning services"},
	{Name: "medical", Guideline: "hospitals and pharmacies"},
	{Name: "other", Guideline: "anything not covered above"},
}

// AllowedCategoriesMap provides O(1) membership checks
var AllowedCategoriesMap = func() map[string]SpendingCategory {
	m := make(map[string]SpendingCategory, len(AllowedCategories))
	for _, c := range AllowedCategories {
		m[c.Name] = c
	}
	return m
}()

// NormalizeCategory maps a free-form category label onto the closed
// category set; anything unrecognized becomes "other" so scoring never
// meets an unknown category. Empty input stays empty.
func NormalizeCategory(raw string) string {
	category := strings.ToLower(strings.TrimSpace(raw))
	if category == "" {
		return ""
	}
	category = strings.ReplaceAll(category, " ", "_")
	category = strings.ReplaceAll(category, "-", "_")
	if _, ok := AllowedCategoriesMap[category]; ok {
		return category
	}
	return "other"
}

// CategoryNames returns the names of all allowed categories
func CategoryNames() []string {
	names := make([]string, len(AllowedCategories))
	for i, c := range AllowedCategories {
		names[i] = c.Name
	}
	return names
}

// Benefit is a single benefit clause of a card
type Benefit struct {
	Category   string `json:"category"`
	Text       string `json:"text"`
	Conditions string `json:"conditions,omitempty"`
	Exclusions string `json:"exclusions,omitempty"`
	PaymentTag string `json:"payment_tag,omitempty"`
}

// Card represents a card record in the catalog, independent of the
// upstream source format
type Card struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Issuer       string          `json:"issuer"`
	Type         CardType        `json:"type"`
	AnnualFee    decimal.Decimal `json:"annual_fee"`
	PrevMonthMin decimal.Decimal `json:"prev_month_min"`
	OnlineOnly   bool            `json:"online_only,omitempty"`
	Discontinued bool            `json:"discontinued,omitempty"`
	Benefits     []Benefit       `json:"benefits"`
	Notes        string          `json:"notes,omitempty"`
}
