package research

import (
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// Metrics aggregates the measurable outcomes of one research run.
// TotalQueries counts provider calls including retries; TotalSearches counts
// settled sub-questions, success and failure alike.
type Metrics struct {
	TotalQueries              int           `json:"total_queries"`
	TotalSearches             int           `json:"total_searches"`
	TotalDuration             time.Duration `json:"total_duration"`
	SearchWallTime            time.Duration `json:"search_wall_time"`
	SearchSerialTime          time.Duration `json:"search_serial_time"`
	ParallelizationEfficiency float64       `json:"parallelization_efficiency"`
	Rounds                    int           `json:"rounds"`
	NotesCount                int           `json:"notes_count"`
	FailedCount               int           `json:"failed_count"`
	GapCount                  int           `json:"gap_count"`
	CitationCount             int           `json:"citation_count"`
	EstimatedTokens           int           `json:"estimated_tokens"`
	EstimatedCost             float64       `json:"estimated_cost"`
}

// TokenCounter estimates how many tokens a text costs.
type TokenCounter func(text string) int

// NewTokenCounter builds a tiktoken-backed counter for the given model,
// falling back to the cl100k_base encoding and finally to a bytes/4 estimate
// when no tokenizer data is available.
func NewTokenCounter(model string) TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil || enc == nil {
		return func(text string) int {
			return (len(text) + 3) / 4
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// defaultQueryCost is charged per search query when the model is missing
// from the cost table.
const defaultQueryCost = 0.01

func queryCost(table map[string]float64, model string) float64 {
	if cost, ok := table[model]; ok {
		return cost
	}
	return defaultQueryCost
}
