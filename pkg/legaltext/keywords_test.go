package legaltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords_RanksByFrequency(t *testing.T) {
	text := "Lease lease LEASE tenant tenant landlord. The tenant pays rent."

	keywords := ExtractKeywords(text)

	// "rent" and "pays" have four letters; "the" is too short.
	assert.Equal(t, []string{"lease", "tenant", "landlord", "pays", "rent"}, keywords)
}

func TestExtractKeywords_SkipsStopWordsAndShortTokens(t *testing.T) {
	keywords := ExtractKeywords("this that with from and the of a contract")

	assert.Equal(t, []string{"contract"}, keywords)
}

func TestExtractKeywords_PluralsAreDistinct(t *testing.T) {
	keywords := ExtractKeywords("party parties party parties party")

	assert.Equal(t, []string{"party", "parties"}, keywords)
}

func TestExtractKeywords_CapsAtTen(t *testing.T) {
	text := "alpha bravo charlie delta echoes foxtrot golfs hotel india juliet kilos limas"

	keywords := ExtractKeywords(text)

	assert.Len(t, keywords, MaxKeywords)
	assert.Equal(t, "alpha", keywords[0])
	assert.Equal(t, "juliet", keywords[9])
}

func TestExtractKeywords_Deterministic(t *testing.T) {
	text := "Indemnification obligations survive termination. Termination requires notice. Notice must be written."

	first := ExtractKeywords(text)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ExtractKeywords(text))
	}
}

func TestExtractKeywords_Empty(t *testing.T) {
	assert.Empty(t, ExtractKeywords(""))
}
