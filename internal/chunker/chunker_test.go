package chunker

import (
	"strings"
	"testing"

	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCard() types.Card {
	return types.Card{
		ID:           "card-1",
		Name:         "Everyday Card",
		Issuer:       "Acme Bank",
		Type:         types.CardTypeCredit,
		AnnualFee:    decimal.NewFromInt(45),
		PrevMonthMin: decimal.NewFromInt(300),
		Benefits: []types.Benefit{
			{
				Category:   "grocery",
				Text:       "5% cashback at supermarkets on purchases up to 200 per month.",
				Conditions: "Requires 300 spend in the previous month.",
				Exclusions: "Excludes warehouse clubs and liquor stores.",
			},
			{
				Category: "Delivery App",
				Text:     "10% off food delivery orders, capped at 15 per month.",
			},
		},
		Notes: "Cashback posts on the following statement.",
	}
}

func chunksByType(chunks []types.Chunk, docType types.DocType) []types.Chunk {
	var out []types.Chunk
	for _, c := range chunks {
		if c.DocType == docType {
			out = append(out, c)
		}
	}
	return out
}

func TestChunkCardProducesAllDocTypes(t *testing.T) {
	chunks, err := ChunkCard(testCard())
	require.NoError(t, err)

	summaries := chunksByType(chunks, types.DocTypeSummary)
	benefits := chunksByType(chunks, types.DocTypeBenefit)
	notes := chunksByType(chunks, types.DocTypeNotes)

	require.Len(t, summaries, 1)
	require.Len(t, benefits, 2)
	require.Len(t, notes, 1)

	summary := summaries[0]
	assert.Equal(t, "card-1:summary:0", summary.ID)
	assert.Contains(t, summary.Text, "Everyday Card by Acme Bank")
	assert.Contains(t, summary.Text, "grocery")

	// Benefit categories are normalized at ingestion
	assert.Equal(t, "grocery", benefits[0].Metadata.Category)
	assert.Equal(t, "delivery_app", benefits[1].Metadata.Category)
	assert.Contains(t, benefits[0].Text, "Requires 300 spend")

	// Exclusions and free-form notes land in the notes chunk
	assert.Contains(t, notes[0].Text, "warehouse clubs")
	assert.Contains(t, notes[0].Text, "following statement")
}

func TestChunkCardMetadataCarriesFilterFields(t *testing.T) {
	chunks, err := ChunkCard(testCard())
	require.NoError(t, err)

	for _, chunk := range chunks {
		require.NoError(t, chunk.Metadata.Validate())
		assert.Equal(t, "card-1", chunk.Metadata.CardID)
		assert.Equal(t, types.CardTypeCredit, chunk.Metadata.CardType)
		require.NotNil(t, chunk.Metadata.AnnualFee)
		assert.True(t, chunk.Metadata.AnnualFee.Equal(decimal.NewFromInt(45)))
		require.NotNil(t, chunk.Metadata.PrevMonthMin)
		assert.True(t, chunk.Metadata.RequiresSpend)
		assert.Equal(t, len(chunk.Text), chunk.Metadata.TextLength)
	}
}

func TestChunkCardSplitsLongBenefitText(t *testing.T) {
	card := testCard()
	sentence := "This benefit applies to a very specific list of merchants that keeps going. "
	card.Benefits = []types.Benefit{{
		Category: "grocery",
		Text:     strings.Repeat(sentence, 20),
	}}

	chunks, err := ChunkCard(card)
	require.NoError(t, err)

	benefits := chunksByType(chunks, types.DocTypeBenefit)
	require.Greater(t, len(benefits), 1)
	for i, chunk := range benefits {
		assert.LessOrEqual(t, len(chunk.Text), maxChunkChars+len(sentence))
		assert.Equal(t, i+1, chunk.Metadata.Part)
		assert.Equal(t, len(benefits), chunk.Metadata.Parts)
	}
}

func TestChunkCardSkipsTinyBenefits(t *testing.T) {
	card := testCard()
	card.Benefits = []types.Benefit{{Category: "grocery", Text: "1% back"}}

	chunks, err := ChunkCard(card)
	require.NoError(t, err)
	assert.Empty(t, chunksByType(chunks, types.DocTypeBenefit))
}

func TestChunkCardNoNotesChunkWhenEmpty(t *testing.T) {
	card := testCard()
	card.Notes = ""
	for i := range card.Benefits {
		card.Benefits[i].Exclusions = ""
	}

	chunks, err := ChunkCard(card)
	require.NoError(t, err)
	assert.Empty(t, chunksByType(chunks, types.DocTypeNotes))
}

func TestChunkCardRequiresID(t *testing.T) {
	card := testCard()
	card.ID = ""
	_, err := ChunkCard(card)
	assert.Error(t, err)
}

func TestSplitTextMergesShortTail(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("A full sentence of reasonable length here. ", 6) + "Tiny.")
	parts := splitText(text, 120)
	require.Greater(t, len(parts), 1)
	assert.GreaterOrEqual(t, len(parts[len(parts)-1]), minKeepChars)
}
