package analysis

import (
	"encoding/json"
	"strings"
)

// Result is the structured output of the legal analysis model.
type Result struct {
	Summary         string `json:"summary"`
	Analysis        string `json:"analysis"`
	Recommendations string `json:"recommendations"`
	PossibleActions string `json:"possible_actions"`
}

// resultSchema constrains the model to the exact JSON shape of Result.
func resultSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":          str,
			"analysis":         str,
			"recommendations":  str,
			"possible_actions": str,
		},
		"required": []string{"summary", "analysis", "recommendations", "possible_actions"},
	}
}

// ParseResult decodes the model response. Strict JSON is tried first;
// when the model ignored the schema the Polish section headings are
// parsed out of plain text instead.
func ParseResult(raw string) (*Result, bool) {
	raw = strings.TrimSpace(raw)
	// Some responses come fenced even with a JSON mime type requested.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err == nil && r.Analysis != "" {
		return &r, true
	}
	if r := parseHeadings(raw); r != nil {
		return r, true
	}
	return nil, false
}

// Heading keyword -> Result field. Matching is prefix-based on
// upper-cased lines so "## STRESZCZENIE:" and "Streszczenie" both hit.
var headings = []struct {
	keyword string
	assign  func(r *Result, text string)
}{
	{"STRESZCZENIE", func(r *Result, t string) { r.Summary = t }},
	{"PODSUMOWANIE", func(r *Result, t string) { r.Summary = t }},
	{"ANALIZA", func(r *Result, t string) { r.Analysis = t }},
	{"REKOMENDACJE", func(r *Result, t string) { r.Recommendations = t }},
	{"ZALECENIA", func(r *Result, t string) { r.Recommendations = t }},
	{"MOŻLIWE DZIAŁANIA", func(r *Result, t string) { r.PossibleActions = t }},
	{"MOZLIWE DZIALANIA", func(r *Result, t string) { r.PossibleActions = t }},
}

func matchHeading(line string) int {
	up := strings.ToUpper(strings.TrimSpace(strings.TrimLeft(line, "#*- ")))
	for i, h := range headings {
		if strings.HasPrefix(up, h.keyword) {
			return i
		}
	}
	return -1
}

func parseHeadings(raw string) *Result {
	lines := strings.Split(raw, "\n")

	var r Result
	current := -1
	var buf []string
	flush := func() {
		if current >= 0 && len(buf) > 0 {
			headings[current].assign(&r, strings.TrimSpace(strings.Join(buf, "\n")))
		}
		buf = buf[:0]
	}

	found := false
	for _, line := range lines {
		if idx := matchHeading(line); idx >= 0 {
			flush()
			current = idx
			found = true
			// Text on the heading line itself ("STRESZCZENIE: ...").
			if _, rest, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(rest) != "" {
				buf = append(buf, strings.TrimSpace(rest))
			}
			continue
		}
		if current >= 0 {
			buf = append(buf, line)
		}
	}
	flush()

	if !found {
		return nil
	}
	if r.Analysis == "" {
		// Whole text as the analysis body when only other headings hit.
		r.Analysis = strings.TrimSpace(raw)
	}
	return &r
}
