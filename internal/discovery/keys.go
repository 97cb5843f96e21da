// Package discovery extracts document keys from a rendered results page.
//
// Result pages expose the key list in several shapes depending on which
// template variant served the search: an inline script array under one of
// two variable names, a JSON property, or nothing at all, in which case
// the keys are recovered from the per-result links. The extraction cascade
// tries each strategy in priority order and returns the first non-empty
// result.
package discovery

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// keyListPatterns match the inline key array in decreasing specificity.
// A pattern that matches but fails JSON decoding is skipped, not fatal.
var keyListPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)_docKeyList\s*=\s*(\[.+?\]);`),
	regexp.MustCompile(`(?s)var\s+_docKeyList\s*=\s*(\[.+?\]);`),
	regexp.MustCompile(`(?s)_docKeyList\s*=\s*(\[.*?\])`),
	regexp.MustCompile(`(?s)docKeyList\s*=\s*(\[.+?\]);`),
	regexp.MustCompile(`(?s)"docKeys":\s*(\[.+?\])`),
}

var docNameParam = regexp.MustCompile(`docName=([^&"']+)`)

// These two characters percent-decode ambiguously when keys round-trip
// through result links, so they are restored explicitly.
var punctuationRestorer = strings.NewReplacer("%C2%B7", "·", "%C3%97", "×")

// Extract returns the deduplicated, first-seen-ordered document keys found
// in the page content. An empty slice means no strategy succeeded; callers
// are expected to fall back to a previously saved key list.
func Extract(pageContent string) []string {
	if keys := extractFromScript(pageContent); len(keys) > 0 {
		return keys
	}
	return extractFromLinks(pageContent)
}

func extractFromScript(pageContent string) []string {
	for _, pattern := range keyListPatterns {
		match := pattern.FindStringSubmatch(pageContent)
		if match == nil {
			continue
		}
		payload := strings.ReplaceAll(match[1], `\"`, `"`)
		payload = strings.ReplaceAll(payload, `\n`, "")

		var keys []string
		if err := json.Unmarshal([]byte(payload), &keys); err != nil {
			continue
		}
		if len(keys) > 0 {
			return dedupe(keys)
		}
	}
	return nil
}

func extractFromLinks(pageContent string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageContent))
	if err != nil {
		return nil
	}

	set := newOrderedSet()
	doc.Find(`a[href*="docName="]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		match := docNameParam.FindStringSubmatch(href)
		if match == nil {
			return
		}
		set.Add(decodeKey(match[1]))
	})
	return set.Values()
}

func decodeKey(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		// Leave the raw value but still restore the two ambiguous
		// punctuation encodings.
		return punctuationRestorer.Replace(raw)
	}
	return punctuationRestorer.Replace(decoded)
}

func dedupe(keys []string) []string {
	set := newOrderedSet()
	for _, k := range keys {
		set.Add(k)
	}
	return set.Values()
}

// orderedSet is an insertion-ordered string set: a sequence plus a
// membership index, so discovery order is never an accident of hashing.
type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) Add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}

func (s *orderedSet) Values() []string {
	return s.values
}

// SaveKeys writes the key list as a JSON backup so a later run can reuse
// it when discovery against a fresh page fails.
func SaveKeys(path string, keys []string) error {
	payload, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keys: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write key list %s: %w", path, err)
	}
	return nil
}

// LoadKeys reads a previously saved key list. A missing file yields an
// empty slice, not an error.
func LoadKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read key list %s: %w", path, err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse key list %s: %w", path, err)
	}
	return keys, nil
}
