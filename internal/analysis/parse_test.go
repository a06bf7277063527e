package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultJSON(t *testing.T) {
	raw := `{"summary":"Krótkie streszczenie.","analysis":"Pełna analiza.","recommendations":"Zalecenia.","possible_actions":"Kroki."}`
	r, ok := ParseResult(raw)
	require.True(t, ok)
	assert.Equal(t, "Krótkie streszczenie.", r.Summary)
	assert.Equal(t, "Pełna analiza.", r.Analysis)
	assert.Equal(t, "Zalecenia.", r.Recommendations)
	assert.Equal(t, "Kroki.", r.PossibleActions)
}

func TestParseResultFencedJSON(t *testing.T) {
	raw := "```json\n{\"summary\":\"S\",\"analysis\":\"A\",\"recommendations\":\"R\",\"possible_actions\":\"P\"}\n```"
	r, ok := ParseResult(raw)
	require.True(t, ok)
	assert.Equal(t, "A", r.Analysis)
}

func TestParseResultHeadingFallback(t *testing.T) {
	raw := `STRESZCZENIE:
Umowa zawiera klauzule abuzywne.

ANALIZA
Szczegółowa ocena prawna umowy deweloperskiej.
Klauzula 7 jest niedozwolona.

REKOMENDACJE:
Wystąpić z reklamacją.

MOŻLIWE DZIAŁANIA
Pozew do sądu rejonowego.`

	r, ok := ParseResult(raw)
	require.True(t, ok)
	assert.Contains(t, r.Summary, "klauzule abuzywne")
	assert.Contains(t, r.Analysis, "Klauzula 7")
	assert.Contains(t, r.Recommendations, "reklamacją")
	assert.Contains(t, r.PossibleActions, "sądu rejonowego")
}

func TestParseResultMarkdownHeadings(t *testing.T) {
	raw := "## Streszczenie\ncoś\n\n## Analiza\ntreść analizy"
	r, ok := ParseResult(raw)
	require.True(t, ok)
	assert.Equal(t, "coś", r.Summary)
	assert.Equal(t, "treść analizy", r.Analysis)
}

func TestParseResultGarbage(t *testing.T) {
	_, ok := ParseResult("całkowicie niezwiązany tekst bez struktury")
	assert.False(t, ok)
}

func TestTextConfidence(t *testing.T) {
	assert.Equal(t, 0.0, TextConfidence(""))
	assert.Equal(t, 0.0, TextConfidence("   "))

	clean := TextConfidence("Umowa najmu lokalu mieszkalnego została zawarta dnia 1 marca.")
	garbage := TextConfidence("�#�@4$%^&*(()_+~~~|\\///???<<>>")
	assert.Greater(t, clean, 0.9)
	assert.Less(t, garbage, 0.5)
	assert.Greater(t, clean, garbage)
}

func TestTextConfidencePolishBonus(t *testing.T) {
	withDiacritics := TextConfidence("Wezwanie do zapłaty należności głównej wraz z odsetkami ustawowymi.")
	without := TextConfidence("Wezwanie do zaplaty naleznosci glownej wraz z odsetkami ustawowymi.")
	assert.GreaterOrEqual(t, withDiacritics, without)
}
