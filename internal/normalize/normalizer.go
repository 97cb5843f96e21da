// Package normalize converts one raw fetched document into a flat record
// of semantic fields. Documents arrive in inconsistent shapes: some embed
// the real article as an escaped sub-document inside a script variable,
// some expose fields only through metadata tags, some only through DOM
// nodes. Every probe in the cascade tolerates absence; a malformed
// document yields a sparse record, never an error.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Record is one row of the normalized dataset. Missing fields are empty
// strings or zero counts; a record is produced for every readable
// artifact.
type Record struct {
	ArticleIndex       int    `json:"article_index" parquet:"article_index"`
	ArticleNumber      int    `json:"article_number" parquet:"article_number"`
	DocKey             string `json:"doc_key" parquet:"doc_key"`
	URL                string `json:"url" parquet:"url"`
	ExternalURL        string `json:"external_url" parquet:"external_url"`
	SourceCode         string `json:"source_code" parquet:"source_code"`
	CertificateID      string `json:"certificate_id" parquet:"certificate_id"`
	SourceType         string `json:"source_type" parquet:"source_type"`
	Title              string `json:"title" parquet:"title"`
	Source             string `json:"source" parquet:"source"`
	Section            string `json:"section" parquet:"section"`
	Author             string `json:"author" parquet:"author"`
	DocHeader          string `json:"doc_header" parquet:"doc_header"`
	PublicationDateRaw string `json:"publication_date_raw" parquet:"publication_date_raw"`
	PublicationDate    string `json:"publication_date" parquet:"publication_date"`
	WordCount          *int   `json:"word_count" parquet:"word_count,optional"`
	Description        string `json:"description" parquet:"description"`
	RelatedTerms       string `json:"related_terms" parquet:"related_terms"`
	Language           string `json:"language" parquet:"language"`
	Text               string `json:"text" parquet:"text"`
	TextCharacters     int    `json:"text_characters" parquet:"text_characters"`
	HTMLPath           string `json:"html_path" parquet:"html_path"`
	DownloadedAt       string `json:"downloaded_at" parquet:"downloaded_at"`
}

// Input carries artifact provenance and optional manifest enrichment.
type Input struct {
	Ordinal  int
	HTMLPath string
	ModTime  time.Time
	DocKey   string
	URL      string
}

// Metadata tag name sets, checked against both name= and property=.
var (
	titleMetaNames  = metaSet("og:title", "twitter:title")
	sourceMetaNames = metaSet(
		"og:site_name", "citation_journal_title", "citation_publisher", "dc.publisher",
	)
	authorMetaNames      = metaSet("author", "article:author", "citation_author", "dc.creator")
	descriptionMetaNames = metaSet("description", "og:description", "twitter:description")
)

// embeddedDocRe locates the escaped article sub-document some templates
// assign to a script variable as a template literal.
var embeddedDocRe = regexp.MustCompile("(?s)var\\s+documentText\\s*=\\s*`(.*?)`;")

// Normalize extracts a Record from one artifact's raw content.
func Normalize(raw string, in Input) Record {
	rec := Record{
		ArticleIndex:  in.Ordinal,
		ArticleNumber: in.Ordinal + 1,
		DocKey:        in.DocKey,
		URL:           in.URL,
		HTMLPath:      in.HTMLPath,
	}
	if !in.ModTime.IsZero() {
		rec.DownloadedAt = in.ModTime.Format("2006-01-02 15:04:05")
	}

	outer, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		rec.Text = cleanText(raw)
		rec.TextCharacters = utf8.RuneCountInString(rec.Text)
		return rec
	}

	// When an escaped sub-document is embedded it is the real article;
	// the outer page is just the viewer shell.
	scope := outer
	if embedded := extractEmbeddedDocument(raw); embedded != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(embedded)); err == nil {
			scope = doc
		}
	}

	rec.Title = extractTitle(scope, outer)
	rec.Source = extractSource(scope)
	rec.DocHeader = nodeText(scope.Find(".DocHeader").First())

	header := ParseHeader(rec.DocHeader)
	rec.PublicationDateRaw = header.PublicationDateRaw
	rec.PublicationDate = header.PublicationDate
	rec.Section = header.Section
	rec.WordCount = header.WordCount

	rec.Author = extractAuthor(scope)
	rec.Description = firstMeta(scope, descriptionMetaNames)
	rec.ExternalURL = extractExternalURL(scope)
	rec.SourceCode = cleanText(scope.Find(".icon-Information[sourcecode]").First().AttrOr("sourcecode", ""))
	rec.CertificateID = nodeText(scope.Find(".publiC-lblNodoc").First())
	rec.SourceType = nodeText(outer.Find("#sourceType .titreSection").First())
	rec.RelatedTerms = extractRelatedTerms(outer)
	rec.Language = cleanText(scope.Find("html").First().AttrOr("lang", ""))

	rec.Text = extractBodyText(scope)
	rec.TextCharacters = utf8.RuneCountInString(rec.Text)

	return rec
}

// extractEmbeddedDocument returns the unescaped sub-document, or "" when
// the page has none. Unescaping runs up to 3 passes because the payload
// is sometimes double or triple entity-encoded.
func extractEmbeddedDocument(raw string) string {
	match := embeddedDocRe.FindStringSubmatch(raw)
	if match == nil {
		return ""
	}
	payload := match[1]
	for i := 0; i < 3; i++ {
		decoded := html.UnescapeString(payload)
		if decoded == payload {
			break
		}
		payload = decoded
	}
	return payload
}

func extractTitle(scope, outer *goquery.Document) string {
	if title := firstMeta(scope, titleMetaNames); title != "" {
		return title
	}
	if title := firstMeta(outer, titleMetaNames); title != "" {
		return title
	}
	if title := nodeText(scope.Find(".titreArticleVisu").First()); title != "" {
		return title
	}
	return nodeText(scope.Find("title").First())
}

func extractSource(scope *goquery.Document) string {
	if source := nodeText(scope.Find(".DocPublicationName").First()); source != "" {
		return source
	}
	return firstMeta(scope, sourceMetaNames)
}

func extractAuthor(scope *goquery.Document) string {
	if author := nodeText(scope.Find(".docAuthors").First()); author != "" {
		return author
	}
	if author := nodeText(scope.Find("p.sm-margin-bottomNews").First()); author != "" {
		return author
	}
	return firstMeta(scope, authorMetaNames)
}

func extractExternalURL(scope *goquery.Document) string {
	external := ""
	scope.Find(".DocText a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if strings.HasPrefix(href, "http") {
			external = href
			return false
		}
		return true
	})
	return external
}

func extractRelatedTerms(outer *goquery.Document) string {
	var terms []string
	outer.Find("a#Concept").Each(func(_ int, sel *goquery.Selection) {
		if term := cleanText(sel.Text()); term != "" {
			terms = append(terms, term)
		}
	})
	return strings.Join(terms, "; ")
}

// extractBodyText concatenates paragraph-like containers; documents with
// no recognizable paragraphs fall back to the whole scope text so a row
// is never left without content.
func extractBodyText(scope *goquery.Document) string {
	var parts []string
	scope.Find(".docOcurrContainer p, .DocText > p").Each(func(_ int, sel *goquery.Selection) {
		if part := cleanText(sel.Text()); part != "" {
			parts = append(parts, part)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	return cleanText(scope.Text())
}

// firstMeta returns the first non-empty content among metadata tags whose
// name or property is in the wanted set, in document order.
func firstMeta(doc *goquery.Document, wanted map[string]struct{}) string {
	found := ""
	doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name := sel.AttrOr("name", "")
		if name == "" {
			name = sel.AttrOr("property", "")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := wanted[name]; !ok {
			return true
		}
		content := cleanText(sel.AttrOr("content", ""))
		if content == "" {
			return true
		}
		found = content
		return false
	})
	return found
}

func metaSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func nodeText(sel *goquery.Selection) string {
	return cleanText(sel.Text())
}

// cleanText collapses all Unicode whitespace runs to single spaces and
// trims the ends.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
