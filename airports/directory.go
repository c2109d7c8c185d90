// Package airports maps city names to the IATA codes of the airports that
// serve them. A Directory is built once at startup and never changes, so it
// is safe to share between concurrent requests without locking.
package airports

import (
	"fmt"
	"sort"
	"strings"
)

// Directory is an immutable city name to airport codes lookup table.
type Directory struct {
	codes map[string][]string
	names map[string]string // normalized key -> display name
	order []string          // display names, sorted
}

// New validates entries and builds a Directory. City names must be unique
// once trimmed and lower-cased, and each city needs at least one 3-letter code.
func New(entries map[string][]string) (*Directory, error) {
	d := &Directory{
		codes: make(map[string][]string, len(entries)),
		names: make(map[string]string, len(entries)),
		order: make([]string, 0, len(entries)),
	}

	for city, codes := range entries {
		key := normalize(city)
		if key == "" {
			return nil, fmt.Errorf("empty city name")
		}
		if prev, dup := d.names[key]; dup {
			return nil, fmt.Errorf("duplicate city %q (also %q)", city, prev)
		}
		if len(codes) == 0 {
			return nil, fmt.Errorf("city %q has no airport codes", city)
		}

		clean := make([]string, 0, len(codes))
		for _, c := range codes {
			code, err := normalizeCode(c)
			if err != nil {
				return nil, fmt.Errorf("city %q: %w", city, err)
			}
			clean = append(clean, code)
		}

		display := strings.TrimSpace(city)
		d.codes[key] = clean
		d.names[key] = display
		d.order = append(d.order, display)
	}

	sort.Strings(d.order)
	return d, nil
}

// Resolve returns the ordered airport codes for city. Matching ignores case
// and surrounding whitespace. The returned slice is a copy.
func (d *Directory) Resolve(city string) ([]string, bool) {
	codes, ok := d.codes[normalize(city)]
	if !ok {
		return nil, false
	}
	out := make([]string, len(codes))
	copy(out, codes)
	return out, true
}

// Suggest returns up to limit city names containing input, case-insensitively.
func (d *Directory) Suggest(input string, limit int) []string {
	needle := normalize(input)
	if needle == "" || limit <= 0 {
		return []string{}
	}

	out := make([]string, 0, limit)
	for _, name := range d.order {
		if strings.Contains(strings.ToLower(name), needle) {
			out = append(out, name)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (d *Directory) Len() int {
	return len(d.codes)
}

func normalize(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

func normalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("invalid airport code %q", code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid airport code %q", code)
		}
	}
	return c, nil
}
