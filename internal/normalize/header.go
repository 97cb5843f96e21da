package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// wordCountRe matches the article length in either language ("450 mots",
// "450 words").
var wordCountRe = regexp.MustCompile(`(?i)(\d+)\s*(mots?|words?)\b`)

// headerDatePatterns locate the publication date inside the header block,
// in decreasing specificity: weekday-prefixed English dates, plain English
// month-first dates, then day-first dates with a possibly accented month
// name.
var headerDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday),\s+[A-Za-z]+\s+\d{1,2},\s+\d{4}\b`),
	regexp.MustCompile(`(?i)\b[A-Za-z]+\s+\d{1,2},\s+\d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:(?:lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)\s+)?\d{1,2}\s+[A-Za-zÀ-ÿ]+\s+\d{4}\b`),
}

// HeaderParts are the fields derived from a document's header block.
// WordCount is nil when the header carries no length token; zero would be
// indistinguishable from a real count.
type HeaderParts struct {
	PublicationDateRaw string
	PublicationDate    string
	Section            string
	WordCount          *int
}

// ParseHeader derives publication date, section, and word count from the
// header text. Every field tolerates absence: a header without a date or
// count simply leaves those parts empty.
func ParseHeader(header string) HeaderParts {
	parts := HeaderParts{}
	cleaned := cleanText(header)
	if cleaned == "" {
		return parts
	}

	if m := wordCountRe.FindStringSubmatch(cleaned); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			parts.WordCount = &n
		}
	}

	for _, pattern := range headerDatePatterns {
		if m := pattern.FindString(cleaned); m != "" {
			parts.PublicationDateRaw = cleanText(m)
			break
		}
	}
	parts.PublicationDate = NormalizeDate(parts.PublicationDateRaw)

	if parts.PublicationDateRaw != "" {
		if idx := strings.Index(cleaned, parts.PublicationDateRaw); idx >= 0 {
			prefix := strings.Trim(cleanText(cleaned[:idx]), " ,;-|")
			parts.Section = prefix
		}
	}

	return parts
}
