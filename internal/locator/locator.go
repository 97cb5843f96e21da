// Package locator maps document keys to fetchable URLs and persists the
// ordinal/key/URL manifest used to join fetched artifacts back to their
// origin.
package locator

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Record binds a document key to its stable ordinal and fetch URL.
// Records are immutable once built; the ordinal is the join key between
// a fetched artifact and its key, and is never renumbered.
type Record struct {
	Key     string
	Ordinal int
	URL     string
}

// Build derives one Record per key. The mapping is deterministic: the same
// key list always yields byte-identical URLs and the same ordinals.
func Build(baseURL string, keys []string) []Record {
	base := strings.TrimRight(baseURL, "/")
	records := make([]Record, 0, len(keys))
	for i, key := range keys {
		records = append(records, Record{
			Key:     key,
			Ordinal: i,
			URL: fmt.Sprintf(
				"%s/Document/View?viewEvent=1&docRefId=0&docName=%s&docIndex=%d",
				base, encodeKey(key), i,
			),
		})
	}
	return records
}

// encodeKey percent-encodes every byte outside the unreserved set. Keys
// carry separators like "·" and "×" that must survive the round trip, so
// nothing is left bare.
func encodeKey(key string) string {
	var b strings.Builder
	for _, c := range []byte(key) {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '_' || c == '.' || c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

var manifestHeader = []string{"doc_key", "index", "url"}

// SaveManifest writes the ordinal/key/URL side-file.
func SaveManifest(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(manifestHeader); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Key, strconv.Itoa(rec.Ordinal), rec.URL}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write manifest row %d: %w", rec.Ordinal, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the side-file back as an ordinal-keyed map. A missing
// file yields an empty map; enrichment is optional.
func LoadManifest(path string) (map[int]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]Record{}, nil
		}
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	records := make(map[int]Record)
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		ordinal, err := strconv.Atoi(row[1])
		if err != nil || ordinal < 0 {
			continue
		}
		records[ordinal] = Record{Key: row[0], Ordinal: ordinal, URL: row[2]}
	}
	return records, nil
}
