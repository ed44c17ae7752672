package classifier

import (
	"fmt"
	"strings"
)

// Indicator lists are matched as lowercase substrings. Complex indicators
// carry the highest weight so analytical language dominates mixed signals.
var (
	simpleIndicators = []string{
		"what is", "what are", "who is", "who was", "when was", "when did",
		"where is", "define ", "definition of", "meaning of", "capital of",
		"how many", "how much", "how old", "how tall", "how far",
	}
	moderateIndicators = []string{
		"how does", "how do", "how to", "why does", "why do", "why is",
		"explain", "describe", "difference between", "compare", "comparison",
		"benefits of", "advantages", "disadvantages", "pros and cons",
		"overview of",
	}
	complexIndicators = []string{
		"analyze", "analyse", "analysis", "comprehensive", "in-depth",
		"in depth", "detailed", "evaluate", "assess", "synthesize",
		"trade-offs", "tradeoffs", "implications", "impact of", "landscape",
		"ecosystem", "state of the art", "compare and contrast", "future of",
		"deep dive", "investigate", "roadmap",
	}
)

const (
	simpleKeywordWeight   = 2
	moderateKeywordWeight = 2
	complexKeywordWeight  = 3
)

var enumeratingConjunctions = []string{
	" and ", " as well as ", " along with ", " plus ", " versus ", " vs ",
}

var temporalMarkers = []string{
	"over time", "history of", "since", "latest", "recent", "current",
	"upcoming", "trend",
}

var quantitativeMarkers = []string{
	"percent", "statistics", "figures", "growth", "market size", "revenue",
}

type scores struct {
	simple   float64
	moderate float64
	complex  float64
}

func (s scores) total() float64 {
	return s.simple + s.moderate + s.complex
}

// scoreHeuristics runs the three scorers and picks the winning bucket.
// Ties resolve by precedence complex over moderate over simple.
func scoreHeuristics(query string) *Result {
	lower := strings.ToLower(query)

	var sc scores
	var reasons []string
	scoreKeywords(lower, &sc, &reasons)
	scoreLength(lower, &sc, &reasons)
	scoreStructure(lower, &sc, &reasons)

	complexity := Complex
	winning := sc.complex
	switch {
	case sc.complex >= sc.moderate && sc.complex >= sc.simple:
		// precedence default
	case sc.moderate >= sc.simple:
		complexity = Moderate
		winning = sc.moderate
	default:
		complexity = Simple
		winning = sc.simple
	}

	confidence := 0.5
	reasoning := "no heuristic indicators matched"
	if total := sc.total(); total > 0 {
		confidence = 0.5 + 0.45*(winning/total)
		if confidence > 0.95 {
			confidence = 0.95
		}
		reasoning = strings.Join(reasons, "; ")
	}

	est, model := profileFor(complexity)
	return &Result{
		Complexity:     complexity,
		Confidence:     confidence,
		Reasoning:      reasoning,
		EstimatedTime:  est,
		SuggestedModel: model,
		Source:         SourceHeuristic,
	}
}

// scoreKeywords counts indicator matches per bucket.
func scoreKeywords(lower string, sc *scores, reasons *[]string) {
	if n := countMatches(lower, simpleIndicators); n > 0 {
		sc.simple += float64(n * simpleKeywordWeight)
		*reasons = append(*reasons, fmt.Sprintf("%d simple keyword match(es)", n))
	}
	if n := countMatches(lower, moderateIndicators); n > 0 {
		sc.moderate += float64(n * moderateKeywordWeight)
		*reasons = append(*reasons, fmt.Sprintf("%d moderate keyword match(es)", n))
	}
	if n := countMatches(lower, complexIndicators); n > 0 {
		sc.complex += float64(n * complexKeywordWeight)
		*reasons = append(*reasons, fmt.Sprintf("%d complex keyword match(es)", n))
	}
}

// scoreLength votes by word count: short queries lean simple, long ones
// lean complex.
func scoreLength(lower string, sc *scores, reasons *[]string) {
	words := len(strings.Fields(lower))
	switch {
	case words == 0:
	case words <= 8:
		sc.simple++
		*reasons = append(*reasons, fmt.Sprintf("short query (%d words)", words))
	case words <= 15:
		sc.moderate++
		*reasons = append(*reasons, fmt.Sprintf("medium-length query (%d words)", words))
	default:
		sc.complex++
		*reasons = append(*reasons, fmt.Sprintf("long query (%d words)", words))
	}
}

// scoreStructure looks for multi-part phrasing: several question marks,
// enumerating conjunctions, temporal or quantitative language.
func scoreStructure(lower string, sc *scores, reasons *[]string) {
	if strings.Count(lower, "?") > 1 {
		sc.complex += 2
		*reasons = append(*reasons, "multiple questions")
	}

	conjunctions := 0
	for _, c := range enumeratingConjunctions {
		conjunctions += strings.Count(lower, c)
	}
	switch {
	case conjunctions >= 2:
		sc.complex++
		*reasons = append(*reasons, "enumerates multiple topics")
	case conjunctions == 1:
		sc.moderate++
		*reasons = append(*reasons, "joins two topics")
	}

	if countMatches(lower, temporalMarkers) > 0 {
		sc.moderate++
		*reasons = append(*reasons, "asks about recent developments")
	}
	if countMatches(lower, quantitativeMarkers) > 0 {
		sc.moderate++
		*reasons = append(*reasons, "asks for quantitative data")
	}
}

func countMatches(lower string, indicators []string) int {
	n := 0
	for _, indicator := range indicators {
		if strings.Contains(lower, indicator) {
			n++
		}
	}
	return n
}
