// Package web upgrades citation titles by fetching the cited page and
// reading its <title> element. Optional post-synthesis step: citations whose
// title fell back to the bare domain get the real page title when the page
// is reachable.
package web

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/sweetpotato0/deepresearch/citation"
	"github.com/sweetpotato0/deepresearch/pkg/logging"
)

const (
	maxBodyBytes = 512 * 1024
	maxTitleLen  = 200
)

// Config holds enricher configuration
type Config struct {
	Concurrency int
	Timeout     time.Duration
	UserAgent   string
	HTTPClient  *http.Client
}

// DefaultConfig returns default enricher configuration
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 4,
		Timeout:     5 * time.Second,
		UserAgent:   "deepresearch-enrich/1.0",
	}
}

// Enricher fetches cited pages and replaces fallback titles with the page
// title.
type Enricher struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new title enricher
func New(config *Config) *Enricher {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Enricher{
		config: config,
		client: client,
		logger: logging.WithComponent("enrich"),
	}
}

// Enrich returns a copy of citations with domain-fallback titles replaced by
// the fetched page title. Pages are fetched concurrently, bounded by
// Config.Concurrency. Fetch failures leave the citation unchanged and never
// fail the batch.
func (e *Enricher) Enrich(ctx context.Context, citations []citation.Citation) []citation.Citation {
	out := make([]citation.Citation, len(citations))
	copy(out, citations)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for i := range out {
		if !needsTitle(out[i]) {
			continue
		}
		g.Go(func() error {
			title, err := e.fetchTitle(ctx, out[i].URL)
			if err != nil {
				e.logger.Debug("title fetch failed", "url", out[i].URL, "error", err)
				return nil
			}
			if title != "" {
				out[i].Title = title
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// needsTitle reports whether the citation still carries the domain fallback
// produced by citation.Transform.
func needsTitle(c citation.Citation) bool {
	return c.URL != "" && (c.Title == "" || c.Title == c.Domain)
}

func (e *Enricher) fetchTitle(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}
	return title, nil
}
