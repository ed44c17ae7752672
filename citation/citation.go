// Package citation turns raw source URLs returned by search providers into
// deduplicated, numbered citations with human-readable titles.
package citation

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const faviconService = "https://www.google.com/s2/favicons"

// Citation is a single web source attached to a research note or answer.
type Citation struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	Domain        string `json:"domain"`
	Favicon       string `json:"favicon"`
	DisplayNumber int    `json:"display_number"`
}

// docExtensions are stripped from the last path segment when deriving a title.
var docExtensions = []string{
	".html", ".htm", ".php", ".asp", ".aspx", ".shtml", ".jsp", ".pdf", ".md", ".txt",
}

// Transform converts raw URLs into citations. URLs that cannot be parsed or
// carry no host are skipped. Display numbers follow input order starting at 1.
func Transform(rawURLs []string) []Citation {
	citations := make([]Citation, 0, len(rawURLs))
	for _, raw := range rawURLs {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Hostname() == "" {
			continue
		}

		domain := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		title := titleFromPath(parsed.Path)
		if title == "" {
			title = domain
		}

		citations = append(citations, Citation{
			ID:            uuid.NewString(),
			URL:           raw,
			Title:         title,
			Domain:        domain,
			Favicon:       faviconService + "?domain=" + domain + "&sz=64",
			DisplayNumber: len(citations) + 1,
		})
	}
	return citations
}

// titleFromPath derives a readable title from the last non-empty path
// segment: URL-decoded, document extension stripped, separators replaced
// with spaces, each word upper-cased on its first rune. Returns "" when no
// usable segment exists.
func titleFromPath(path string) string {
	segments := strings.Split(path, "/")
	var last string
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			last = segments[i]
			break
		}
	}
	if last == "" {
		return ""
	}

	if decoded, err := url.PathUnescape(last); err == nil {
		last = decoded
	}

	lower := strings.ToLower(last)
	for _, ext := range docExtensions {
		if strings.HasSuffix(lower, ext) {
			last = last[:len(last)-len(ext)]
			break
		}
	}

	last = strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(last)
	last = strings.Join(strings.Fields(last), " ")
	if last == "" {
		return ""
	}
	return titleCase(last)
}

// titleCase upper-cases the first rune of every word and leaves the rest of
// the word untouched, so acronyms like "API" survive.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// NormalizeURL produces the deduplication key for a URL: lower-cased host
// without "www.", path without trailing slash, and the query string when
// present. Scheme and fragment are ignored.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Hostname() == "" {
		return strings.TrimSpace(raw)
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	path := strings.TrimRight(parsed.Path, "/")

	normalized := host + path
	if parsed.RawQuery != "" {
		normalized += "?" + parsed.RawQuery
	}
	return normalized
}
