// Package chunker turns card records into the small, immutable text
// fragments the similarity index works over. One chunk carries one
// benefit, one set of notes, or one card summary; long benefit text is
// split into parts so a single verbose clause cannot dominate retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/radicalcardists/card-recommender/internal/types"
)

const (
	// maxChunkChars bounds a single chunk; longer benefit text is split
	// into parts at sentence boundaries
	maxChunkChars = 600
	// minKeepChars drops fragments too short to carry meaning
	minKeepChars = 20
)

// ChunkCard produces the full chunk set for one card. The set replaces
// any previously stored chunks wholesale on re-ingestion.
func ChunkCard(card types.Card) ([]types.Chunk, error) {
	if card.ID == "" {
		return nil, fmt.Errorf("card is missing an id")
	}

	base := baseMetadata(card)
	var chunks []types.Chunk

	// Summary: the weakest, most generic signal, exactly one per card
	summaryText := buildSummary(card)
	chunks = append(chunks, newChunk(card, types.DocTypeSummary, 0, summaryText, func(m *types.ChunkMetadata) {
		m.DocType = types.DocTypeSummary
	}, base))

	// One or more benefit chunks per benefit clause
	seq := 0
	for _, benefit := range card.Benefits {
		text := strings.TrimSpace(benefit.Text)
		if benefit.Conditions != "" {
			text += "\n" + strings.TrimSpace(benefit.Conditions)
		}
		if len(text) < minKeepChars {
			continue
		}

		category := types.NormalizeCategory(benefit.Category)
		parts := splitText(text, maxChunkChars)
		for i, part := range parts {
			partIdx, partCnt := 0, 0
			if len(parts) > 1 {
				partIdx, partCnt = i+1, len(parts)
			}
			b := benefit
			chunks = append(chunks, newChunk(card, types.DocTypeBenefit, seq, part, func(m *types.ChunkMetadata) {
				m.DocType = types.DocTypeBenefit
				m.Category = category
				m.PaymentTag = b.PaymentTag
				m.HasExclusions = b.Exclusions != ""
				m.Part = partIdx
				m.Parts = partCnt
			}, base))
			seq++
		}
	}

	// Notes: exclusions and caveats carry hard constraints, worth their
	// own chunk even when short
	notesText := buildNotes(card)
	if notesText != "" {
		chunks = append(chunks, newChunk(card, types.DocTypeNotes, 0, notesText, func(m *types.ChunkMetadata) {
			m.DocType = types.DocTypeNotes
		}, base))
	}

	for _, chunk := range chunks {
		if err := chunk.Metadata.Validate(); err != nil {
			return nil, fmt.Errorf("card %s: %w", card.ID, err)
		}
	}
	return chunks, nil
}

func baseMetadata(card types.Card) types.ChunkMetadata {
	m := types.ChunkMetadata{
		CardID:       card.ID,
		CardName:     card.Name,
		CardType:     card.Type,
		OnlineOnly:   card.OnlineOnly,
		Discontinued: card.Discontinued,
	}
	fee := card.AnnualFee
	m.AnnualFee = &fee
	if card.PrevMonthMin.IsPositive() {
		minSpend := card.PrevMonthMin
		m.PrevMonthMin = &minSpend
		m.RequiresSpend = true
	}
	return m
}

func newChunk(card types.Card, docType types.DocType, seq int, text string, customize func(*types.ChunkMetadata), base types.ChunkMetadata) types.Chunk {
	metadata := base
	customize(&metadata)
	metadata.TextLength = len(text)
	return types.Chunk{
		ID:       fmt.Sprintf("%s:%s:%d", card.ID, docType, seq),
		CardID:   card.ID,
		DocType:  docType,
		Text:     text,
		Metadata: metadata,
	}
}

// buildSummary assembles the one generic description chunk for a card
func buildSummary(card types.Card) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s by %s, %s card.", card.Name, card.Issuer, card.Type)
	fmt.Fprintf(&sb, " Annual fee %s.", card.AnnualFee.StringFixed(0))
	if card.PrevMonthMin.IsPositive() {
		fmt.Fprintf(&sb, " Requires %s prior-month spend.", card.PrevMonthMin.StringFixed(0))
	}
	if card.OnlineOnly {
		sb.WriteString(" Online application only.")
	}
	categories := benefitCategories(card)
	if len(categories) > 0 {
		fmt.Fprintf(&sb, " Benefits: %s.", strings.Join(categories, ", "))
	}
	return sb.String()
}

func buildNotes(card types.Card) string {
	var parts []string
	for _, benefit := range card.Benefits {
		if excl := strings.TrimSpace(benefit.Exclusions); excl != "" {
			parts = append(parts, excl)
		}
	}
	if notes := strings.TrimSpace(card.Notes); notes != "" {
		parts = append(parts, notes)
	}
	return strings.Join(parts, "\n")
}

func benefitCategories(card types.Card) []string {
	seen := make(map[string]bool)
	var out []string
	for _, benefit := range card.Benefits {
		category := types.NormalizeCategory(benefit.Category)
		if category != "" && !seen[category] {
			seen[category] = true
			out = append(out, category)
		}
	}
	return out
}

// splitText splits text into chunks of at most maxChars, preferring
// sentence boundaries, and merges trailing fragments shorter than
// minKeepChars into their predecessor
func splitText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= maxChars {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	for _, sentence := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxChars {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}

	// Merge a too-short tail into the previous part
	if len(parts) > 1 && len(parts[len(parts)-1]) < minKeepChars {
		parts[len(parts)-2] += " " + parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}
	return parts
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
