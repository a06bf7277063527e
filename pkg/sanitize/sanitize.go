package sanitize

// Summary truncates s to at most max bytes, cutting back to the last
// space so words stay whole. Used for list previews and for the short
// summary fallback when the AI response has no summary section.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && i < len(s) && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return s[:i] + "…"
}
