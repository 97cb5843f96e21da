package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"pressharvest/internal/normalize"
)

// Supported export formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
)

// csvColumns fixes the CSV column order; it must stay aligned with csvRow.
var csvColumns = []string{
	"article_index", "article_number", "doc_key", "url", "external_url",
	"source_code", "certificate_id", "source_type", "title", "source",
	"section", "author", "doc_header", "publication_date_raw",
	"publication_date", "word_count", "description", "related_terms",
	"language", "text", "text_characters", "html_path", "downloaded_at",
}

func csvRow(r normalize.Record) []string {
	wordCount := ""
	if r.WordCount != nil {
		wordCount = strconv.Itoa(*r.WordCount)
	}
	return []string{
		strconv.Itoa(r.ArticleIndex), strconv.Itoa(r.ArticleNumber),
		r.DocKey, r.URL, r.ExternalURL,
		r.SourceCode, r.CertificateID, r.SourceType, r.Title, r.Source,
		r.Section, r.Author, r.DocHeader, r.PublicationDateRaw,
		r.PublicationDate, wordCount, r.Description,
		r.RelatedTerms, r.Language, r.Text,
		strconv.Itoa(r.TextCharacters), r.HTMLPath, r.DownloadedAt,
	}
}

// Export writes records as one dataset file named after the batch and
// returns its path. The format is validated before anything is written, so
// an unsupported format never leaves a partial file behind.
func Export(records []normalize.Record, dir, batchName, format string) (string, error) {
	switch format {
	case FormatParquet, FormatCSV, FormatJSONL:
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create export directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("articles_dataset_%s.%s", batchName, format))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create dataset file %s: %w", path, err)
	}

	switch format {
	case FormatParquet:
		err = writeParquet(f, records)
	case FormatCSV:
		err = writeCSV(f, records)
	case FormatJSONL:
		err = writeJSONL(f, records)
	}
	if err != nil {
		f.Close()
		return "", fmt.Errorf("write %s dataset: %w", format, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close dataset file %s: %w", path, err)
	}
	return path, nil
}

func writeParquet(f *os.File, records []normalize.Record) error {
	w := parquet.NewGenericWriter[normalize.Record](f)
	if len(records) > 0 {
		if _, err := w.Write(records); err != nil {
			return err
		}
	}
	return w.Close()
}

func writeCSV(f *os.File, records []normalize.Record) error {
	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSONL(f *os.File, records []normalize.Record) error {
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
