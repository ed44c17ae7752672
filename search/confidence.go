package search

import "strings"

// Confidence scores a research note from its content and citation count.
// Additive from a 0.5 base; every tier threshold that is met contributes,
// so the score never decreases as content grows or citations accumulate.
// Capped at 0.95.
func Confidence(content string, citations int) float64 {
	score := 0.5

	length := len(content)
	if length > 500 {
		score += 0.10
	}
	if length > 1000 {
		score += 0.08
	}
	if length > 2000 {
		score += 0.07
	}

	if citations >= 2 {
		score += 0.10
	}
	if citations >= 4 {
		score += 0.08
	}
	if citations >= 6 {
		score += 0.07
	}

	if strings.ContainsAny(content, "0123456789") {
		score += 0.05
	}
	if strings.ContainsAny(content, `"“”`) {
		score += 0.04
	}
	if hasListMarkup(content) {
		score += 0.04
	}

	if score > 0.95 {
		score = 0.95
	}
	return score
}

// hasListMarkup reports whether content contains bulleted or numbered lines.
func hasListMarkup(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			return true
		}
		if len(trimmed) > 1 && trimmed[0] >= '0' && trimmed[0] <= '9' && (trimmed[1] == '.' || trimmed[1] == ')') {
			return true
		}
	}
	return false
}
