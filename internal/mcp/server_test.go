package mcp

import (
	"testing"

	"github.com/radicalcardists/card-recommender/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntArg(t *testing.T) {
	n, err := intArg("top_k", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// JSON numbers decode to float64
	n, err = intArg("top_k", float64(7))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = intArg("top_k", "12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = intArg("top_k", "twelve")
	assert.Error(t, err)
	_, err = intArg("top_k", true)
	assert.Error(t, err)
}

func TestParseDocTypeList(t *testing.T) {
	docTypes, err := parseDocTypeList("summary, benefit")
	require.NoError(t, err)
	assert.Equal(t, []types.DocType{types.DocTypeSummary, types.DocTypeBenefit}, docTypes)

	_, err = parseDocTypeList("blog")
	assert.Error(t, err)
}

func TestParseDocTypeWeights(t *testing.T) {
	weights, err := parseDocTypeWeights("summary=1.0, notes=0.9")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, weights[types.DocTypeSummary], 1e-9)
	assert.InDelta(t, 0.9, weights[types.DocTypeNotes], 1e-9)

	_, err = parseDocTypeWeights("blog=1.0")
	assert.Error(t, err)
	_, err = parseDocTypeWeights("summary")
	assert.Error(t, err)
	_, err = parseDocTypeWeights("summary=high")
	assert.Error(t, err)
}

func TestDocTypeWeightsArgObjectForm(t *testing.T) {
	weights, err := docTypeWeightsArg(map[string]any{"benefit": 1.2})
	require.NoError(t, err)
	assert.InDelta(t, 1.2, weights[types.DocTypeBenefit], 1e-9)

	_, err = docTypeWeightsArg(map[string]any{"benefit": "1.2"})
	assert.Error(t, err)
	_, err = docTypeWeightsArg(42)
	assert.Error(t, err)
}
