package research

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/sweetpotato0/deepresearch/config"
	errs "github.com/sweetpotato0/deepresearch/errors"
)

// Config controls every stage of a research run. It intentionally flattens
// the classifier, planner, search and synthesis knobs into a single struct
// so callers can construct reproducible pipelines from one place.
type Config struct {
	Concurrency    int           // Parallel searches in flight (pool bound)
	MaxRetries     int           // Search retries after the first attempt
	RetryBaseDelay time.Duration // First retry backoff, doubled per retry
	MaxRounds      int           // Searching/synthesis rounds, gap loop bound
	MaxFollowUps   int           // Follow-up sub-questions per gap round

	FastPath           bool    // Allow single-search shortcut for simple queries
	FastPathConfidence float64 // Minimum classifier confidence for the shortcut
	LLMAssist          bool    // Let an LLM refine uncertain classifications
	LLMAssistThreshold float64 // Heuristic confidence below which the LLM runs

	SimpleSubQuestions   int // Plan size for simple queries
	ModerateSubQuestions int // Plan size for moderate queries
	ComplexSubQuestions  int // Plan size for complex queries

	LowConfidence float64 // Notes below this raise medium-priority gaps
	MinCitations  int     // Notes below this raise low-priority gaps

	SearchModel       string  // Search provider model
	SearchMaxTokens   int     // Token budget per search response
	SearchTemperature float64 // Sampling temperature for searches
	ClassifierModel   string  // Completion model for classification assist
	TokenModel        string  // Tokenizer model for metric estimates

	CostPerQuery map[string]float64 // Estimated cost per search query by model

	SearchSystemPrompt string // Override for the search system prompt
	ClassifyPrompt     string // Override for the classification prompt

	store  SessionStore // Optional snapshot store, set via WithStore
	sink   EventSink    // Optional event sink, set via WithEventSink
	logger *slog.Logger // Optional logger override
	tokens TokenCounter // Optional token counter override (tests)
}

func defaultConfig() *Config {
	return &Config{
		Concurrency:          3,
		MaxRetries:           2,
		RetryBaseDelay:       time.Second,
		MaxRounds:            2,
		MaxFollowUps:         3,
		FastPath:             true,
		FastPathConfidence:   0.7,
		LLMAssist:            false,
		LLMAssistThreshold:   0.8,
		SimpleSubQuestions:   2,
		ModerateSubQuestions: 4,
		ComplexSubQuestions:  6,
		LowConfidence:        0.6,
		MinCitations:         2,
		SearchModel:          "sonar-pro",
		SearchMaxTokens:      2048,
		SearchTemperature:    0.2,
		ClassifierModel:      "gpt-4o-mini",
		TokenModel:           "gpt-4o",
		CostPerQuery: map[string]float64{
			"sonar":               0.005,
			"sonar-pro":           0.01,
			"sonar-reasoning-pro": 0.02,
		},
	}
}

// Option customises the orchestrator configuration.
type Option func(*Config)

// WithConcurrency bounds how many searches run in parallel.
func WithConcurrency(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Concurrency = n
		}
	}
}

// WithMaxRetries sets how many times a failed search is retried.
func WithMaxRetries(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.MaxRetries = n
		}
	}
}

// WithRetryBaseDelay sets the first retry backoff delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.RetryBaseDelay = d
		}
	}
}

// WithMaxRounds bounds the gap-driven search loop, counting the initial
// round.
func WithMaxRounds(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxRounds = n
		}
	}
}

// WithMaxFollowUps caps the follow-up sub-questions added per gap round.
func WithMaxFollowUps(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxFollowUps = n
		}
	}
}

// WithFastPath enables or disables the single-search shortcut for
// confidently-simple queries.
func WithFastPath(enabled bool) Option {
	return func(cfg *Config) {
		cfg.FastPath = enabled
	}
}

// WithLLMAssist enables or disables LLM refinement of uncertain
// classifications. It only takes effect when a completion provider is
// configured.
func WithLLMAssist(enabled bool) Option {
	return func(cfg *Config) {
		cfg.LLMAssist = enabled
	}
}

// WithSearchModel selects the search provider model.
func WithSearchModel(model string) Option {
	return func(cfg *Config) {
		if model != "" {
			cfg.SearchModel = model
		}
	}
}

// WithClassifierModel selects the completion model used for classification
// assist.
func WithClassifierModel(model string) Option {
	return func(cfg *Config) {
		if model != "" {
			cfg.ClassifierModel = model
		}
	}
}

// WithPlanSizes sets how many sub-questions each complexity bucket plans.
func WithPlanSizes(simple, moderate, complex int) Option {
	return func(cfg *Config) {
		if simple > 0 {
			cfg.SimpleSubQuestions = simple
		}
		if moderate > 0 {
			cfg.ModerateSubQuestions = moderate
		}
		if complex > 0 {
			cfg.ComplexSubQuestions = complex
		}
	}
}

// WithGapThresholds sets the note confidence and citation minimums below
// which gaps are raised.
func WithGapThresholds(lowConfidence float64, minCitations int) Option {
	return func(cfg *Config) {
		if lowConfidence > 0 && lowConfidence <= 1 {
			cfg.LowConfidence = lowConfidence
		}
		if minCitations >= 0 {
			cfg.MinCitations = minCitations
		}
	}
}

// WithCostPerQuery merges per-model query cost estimates into the default
// table.
func WithCostPerQuery(costs map[string]float64) Option {
	return func(cfg *Config) {
		for model, cost := range costs {
			cfg.CostPerQuery[model] = cost
		}
	}
}

// WithSearchSystemPrompt overrides the search system prompt.
func WithSearchSystemPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.SearchSystemPrompt = prompt
		}
	}
}

// WithClassifyPrompt overrides the classification prompt.
func WithClassifyPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.ClassifyPrompt = prompt
		}
	}
}

// WithStore persists session snapshots to the given store. Without a store
// sessions live only in memory for the duration of the run.
func WithStore(store SessionStore) Option {
	return func(cfg *Config) {
		cfg.store = store
	}
}

// WithEventSink streams pipeline events to the given sink.
func WithEventSink(sink EventSink) Option {
	return func(cfg *Config) {
		cfg.sink = sink
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.logger = logger
	}
}

// WithTokenCounter overrides the token estimator used for metrics.
func WithTokenCounter(counter TokenCounter) Option {
	return func(cfg *Config) {
		cfg.tokens = counter
	}
}

// FromEnv overlays configuration from DEEPRESEARCH_* environment variables.
// Unset or malformed variables keep their current values.
func FromEnv() Option {
	return func(cfg *Config) {
		cfg.Concurrency = envInt("DEEPRESEARCH_CONCURRENCY", cfg.Concurrency)
		cfg.MaxRetries = envInt("DEEPRESEARCH_MAX_RETRIES", cfg.MaxRetries)
		cfg.MaxRounds = envInt("DEEPRESEARCH_MAX_ROUNDS", cfg.MaxRounds)
		cfg.MaxFollowUps = envInt("DEEPRESEARCH_MAX_FOLLOW_UPS", cfg.MaxFollowUps)
		cfg.FastPath = envBool("DEEPRESEARCH_FAST_PATH", cfg.FastPath)
		cfg.LLMAssist = envBool("DEEPRESEARCH_LLM_ASSIST", cfg.LLMAssist)
		cfg.SearchModel = envString("DEEPRESEARCH_SEARCH_MODEL", cfg.SearchModel)
		cfg.ClassifierModel = envString("DEEPRESEARCH_CLASSIFIER_MODEL", cfg.ClassifierModel)
		cfg.TokenModel = envString("DEEPRESEARCH_TOKEN_MODEL", cfg.TokenModel)
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func applyOptions(cfg *Config, opts []Option) *Config {
	if cfg == nil {
		cfg = defaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate reports configuration values the pipeline cannot run with.
func (c *Config) Validate() error {
	v := config.NewValidator()
	v.RequirePositive("concurrency", c.Concurrency).
		RequirePositive("max_rounds", c.MaxRounds).
		RequirePositive("max_follow_ups", c.MaxFollowUps).
		RequirePositive("search_max_tokens", c.SearchMaxTokens).
		ValidateRange("max_retries", c.MaxRetries, 0, 10).
		ValidateRange("min_citations", c.MinCitations, 0, 100).
		ValidateFloatRange("fast_path_confidence", c.FastPathConfidence, 0, 1).
		ValidateFloatRange("llm_assist_threshold", c.LLMAssistThreshold, 0, 1).
		ValidateFloatRange("low_confidence", c.LowConfidence, 0, 1).
		ValidateFloatRange("search_temperature", c.SearchTemperature, 0, 2).
		RequirePositive("simple_sub_questions", c.SimpleSubQuestions).
		RequirePositive("moderate_sub_questions", c.ModerateSubQuestions).
		RequirePositive("complex_sub_questions", c.ComplexSubQuestions).
		RequireNonEmpty("search_model", c.SearchModel)
	if v.HasErrors() {
		return fmt.Errorf("%w: %v", errs.ErrInvalidConfig, v.Error())
	}
	return nil
}
