// Package synthesis assembles research notes into a cited answer and
// detects coverage gaps that can seed a follow-up round. Assembly is pure:
// no provider calls, deterministic output.
package synthesis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sweetpotato0/deepresearch/citation"
	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/search"
)

// Config controls gap detection and follow-up generation.
type Config struct {
	LowConfidence float64 // notes below this raise medium-priority gaps
	MinCitations  int     // notes below this raise low-priority gaps
	MaxFollowUps  int     // cap on follow-up sub-questions per round
}

// DefaultConfig returns the synthesis configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		LowConfidence: 0.6,
		MinCitations:  2,
		MaxFollowUps:  3,
	}
}

// Answer is the synthesized output of a research round.
type Answer struct {
	Text       string              `json:"text"`
	Citations  []citation.Citation `json:"citations"`
	Confidence float64             `json:"confidence"`
}

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// Compose joins notes into one cited answer. Notes are ordered by plan
// position, citations are merged with prior rounds' (richer record per
// URL wins) and renumbered, and each note's bracketed [n] markers are
// rewritten to the merged display numbers. Answer confidence is the mean
// of the note confidences.
func Compose(plan *planner.Plan, notes []search.Note, prior []citation.Citation) *Answer {
	ordered := orderByPlan(plan, notes)
	merged := citation.Merge(nil, prior)

	sections := make([]string, 0, len(ordered))
	confSum := 0.0
	for _, note := range ordered {
		merged = citation.Merge(merged, note.Citations)
		sections = append(sections, remapMarkers(note.Content, displayMap(note.Citations, merged)))
		confSum += note.Confidence
	}

	ans := &Answer{
		Text:      strings.Join(sections, "\n\n"),
		Citations: merged,
	}
	if len(ordered) > 0 {
		ans.Confidence = confSum / float64(len(ordered))
	}
	return ans
}

// orderByPlan returns notes in their sub-question's plan position. Notes
// without a matching sub-question keep their input order at the end.
func orderByPlan(plan *planner.Plan, notes []search.Note) []search.Note {
	bySub := make(map[string]int, len(notes))
	for i, note := range notes {
		bySub[note.SubQuestionID] = i
	}

	ordered := make([]search.Note, 0, len(notes))
	taken := make(map[int]bool, len(notes))
	if plan != nil {
		for _, sq := range plan.SubQuestions {
			if i, ok := bySub[sq.ID]; ok && !taken[i] {
				ordered = append(ordered, notes[i])
				taken[i] = true
			}
		}
	}
	for i, note := range notes {
		if !taken[i] {
			ordered = append(ordered, note)
		}
	}
	return ordered
}

// displayMap maps a note's local citation numbers to display numbers in the
// merged list, keyed by normalized URL.
func displayMap(local, merged []citation.Citation) map[int]int {
	byURL := make(map[string]int, len(merged))
	for _, c := range merged {
		byURL[citation.NormalizeURL(c.URL)] = c.DisplayNumber
	}

	remap := make(map[int]int, len(local))
	for i, c := range local {
		n := c.DisplayNumber
		if n == 0 {
			n = i + 1
		}
		if display, ok := byURL[citation.NormalizeURL(c.URL)]; ok {
			remap[n] = display
		}
	}
	return remap
}

// remapMarkers rewrites bracketed citation markers through remap, leaving
// unmapped markers untouched.
func remapMarkers(content string, remap map[int]int) string {
	return markerPattern.ReplaceAllStringFunc(content, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil {
			return m
		}
		display, ok := remap[n]
		if !ok {
			return m
		}
		return "[" + strconv.Itoa(display) + "]"
	})
}
