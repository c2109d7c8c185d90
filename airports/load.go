package airports

import (
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
)

//go:embed airports.json
var embeddedJSON []byte

// Row is one city/code pair, the shape used by CSV files and the airports table.
type Row struct {
	City     string `csv:"city"`
	IATACode string `csv:"iata_code"`
}

// Embedded returns the directory bundled with the binary.
func Embedded() (*Directory, error) {
	return parseJSON(embeddedJSON)
}

// LoadFile builds a directory from a .json or .csv file.
func LoadFile(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open airports file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read airports file: %w", err)
		}
		return parseJSON(data)
	case ".csv":
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported airports file %q", path)
	}
}

// LoadCSV decodes rows with a "city,iata_code" header. Rows for the same city
// keep their file order.
func LoadCSV(r io.Reader) (*Directory, error) {
	decoder, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder for airports: %w", err)
	}

	var rows []Row
	if err := decoder.Decode(&rows); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode airports CSV: %w", err)
	}
	return FromRows(rows)
}

// FromRows groups rows by city. Spellings that differ only by case or
// whitespace are merged under the first spelling seen.
func FromRows(rows []Row) (*Directory, error) {
	entries := make(map[string][]string)
	display := make(map[string]string)

	for i, r := range rows {
		key := normalize(r.City)
		if key == "" {
			return nil, fmt.Errorf("row %d: empty city name", i+1)
		}
		name, ok := display[key]
		if !ok {
			name = strings.TrimSpace(r.City)
			display[key] = name
		}
		entries[name] = append(entries[name], r.IATACode)
	}
	return New(entries)
}

func parseJSON(data []byte) (*Directory, error) {
	var entries map[string][]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse airports JSON: %w", err)
	}
	return New(entries)
}
