package types

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// DocType classifies a chunk of card documentation
type DocType string

const (
	DocTypeSummary DocType = "summary"
	DocTypeBenefit DocType = "benefit"
	DocTypeNotes   DocType = "notes"
)

// AllDocTypes lists every valid doc type, in canonical order
var AllDocTypes = []DocType{DocTypeSummary, DocTypeBenefit, DocTypeNotes}

// ParseDocType validates a doc type string
func ParseDocType(s string) (DocType, error) {
	switch DocType(s) {
	case DocTypeSummary, DocTypeBenefit, DocTypeNotes:
		return DocType(s), nil
	}
	return "", fmt.Errorf("unknown doc type %q", s)
}

// ChunkMetadata is the closed metadata schema attached to every chunk.
// It is validated at ingestion so scoring never has to defend against
// malformed values; optional fields are pointers and absence means the
// corresponding bonus/penalty term simply does not apply.
type ChunkMetadata struct {
	CardID        string           `json:"card_id"`
	CardName      string           `json:"card_name"`
	CardType      CardType         `json:"card_type,omitempty"`
	OnlineOnly    bool             `json:"online_only,omitempty"`
	DocType       DocType          `json:"doc_type"`
	Category      string           `json:"category,omitempty"`    // standardized spending category, benefit chunks only
	PaymentTag    string           `json:"payment_tag,omitempty"` // payment-method tag, benefit chunks only
	HasExclusions bool             `json:"has_exclusions,omitempty"`
	RequiresSpend bool             `json:"requires_spend,omitempty"`
	AnnualFee     *decimal.Decimal `json:"annual_fee,omitempty"`     // total annual fee when known
	PrevMonthMin  *decimal.Decimal `json:"prev_month_min,omitempty"` // minimum prior-month spend when known
	Discontinued  bool             `json:"discontinued,omitempty"`
	TextLength    int              `json:"text_length,omitempty"`
	Part          int              `json:"part,omitempty"`  // 1-based part index for split benefit text
	Parts         int              `json:"parts,omitempty"` // total parts, 0 when not split
}

// Validate checks invariants that must hold before a chunk enters the store
func (m ChunkMetadata) Validate() error {
	if m.CardID == "" {
		return fmt.Errorf("chunk metadata missing card id")
	}
	if _, err := ParseDocType(string(m.DocType)); err != nil {
		return err
	}
	if m.Category != "" {
		if _, ok := AllowedCategoriesMap[m.Category]; !ok {
			return fmt.Errorf("unknown category %q for card %s", m.Category, m.CardID)
		}
	}
	if m.Parts > 0 && (m.Part < 1 || m.Part > m.Parts) {
		return fmt.Errorf("part index %d out of range 1..%d", m.Part, m.Parts)
	}
	return nil
}

// ToMap flattens the metadata for storage backends that only accept
// string-valued metadata
func (m ChunkMetadata) ToMap() map[string]string {
	out := map[string]string{
		"card_id":      m.CardID,
		"card_name":    m.CardName,
		"doc_type":     string(m.DocType),
		"discontinued": strconv.FormatBool(m.Discontinued),
		"text_length":  strconv.Itoa(m.TextLength),
	}
	if m.CardType != "" {
		out["card_type"] = string(m.CardType)
	}
	if m.OnlineOnly {
		out["online_only"] = "true"
	}
	if m.Category != "" {
		out["category"] = m.Category
	}
	if m.PaymentTag != "" {
		out["payment_tag"] = m.PaymentTag
	}
	if m.HasExclusions {
		out["has_exclusions"] = "true"
	}
	if m.RequiresSpend {
		out["requires_spend"] = "true"
	}
	if m.AnnualFee != nil {
		out["annual_fee"] = m.AnnualFee.String()
	}
	if m.PrevMonthMin != nil {
		out["prev_month_min"] = m.PrevMonthMin.String()
	}
	if m.Parts > 0 {
		out["part"] = strconv.Itoa(m.Part)
		out["parts"] = strconv.Itoa(m.Parts)
	}
	return out
}

// ChunkMetadataFromMap rebuilds metadata from its flattened form.
// Unparseable optional values degrade to absent rather than failing, so
// a single bad record cannot poison a whole retrieval pass.
func ChunkMetadataFromMap(raw map[string]string) (ChunkMetadata, error) {
	docType, err := ParseDocType(raw["doc_type"])
	if err != nil {
		return ChunkMetadata{}, err
	}
	m := ChunkMetadata{
		CardID:        raw["card_id"],
		CardName:      raw["card_name"],
		CardType:      CardType(raw["card_type"]),
		OnlineOnly:    raw["online_only"] == "true",
		DocType:       docType,
		Category:      raw["category"],
		PaymentTag:    raw["payment_tag"],
		HasExclusions: raw["has_exclusions"] == "true",
		RequiresSpend: raw["requires_spend"] == "true",
		Discontinued:  raw["discontinued"] == "true",
	}
	if m.CardID == "" {
		return ChunkMetadata{}, fmt.Errorf("chunk metadata missing card id")
	}
	if v, ok := raw["text_length"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.TextLength = n
		}
	}
	if v, ok := raw["annual_fee"]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			m.AnnualFee = &d
		}
	}
	if v, ok := raw["prev_month_min"]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			m.PrevMonthMin = &d
		}
	}
	if v, ok := raw["part"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.Part = n
		}
	}
	if v, ok := raw["parts"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.Parts = n
		}
	}
	return m, nil
}

// Chunk is an immutable text fragment describing part of a card
type Chunk struct {
	ID       string
	CardID   string
	DocType  DocType
	Text     string
	Metadata ChunkMetadata
}

// RetrievedHit is a chunk returned from the similarity index for one
// query. Ephemeral, never persisted.
type RetrievedHit struct {
	ChunkID  string        `json:"chunk_id"`
	CardID   string        `json:"card_id"`
	DocType  DocType       `json:"doc_type"`
	Text     string        `json:"text"`
	RawScore float64       `json:"raw_score"` // cosine similarity, higher is closer
	Metadata ChunkMetadata `json:"metadata"`
}
