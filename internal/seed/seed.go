// Package seed loads the seed list and builds the reverse index that maps
// corpus URLs back to their positional ids.
package seed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrEmpty is returned when the seed list contains no URLs.
var ErrEmpty = errors.New("seed list is empty")

// Entry is one seed URL and its permanent id (its 0-based line position).
type Entry struct {
	URL string
	ID  int
}

// LoadFile reads the seed list at path.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration.
	if err != nil {
		return nil, fmt.Errorf("open seed list: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	entries, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("seed list %s: %w", path, err)
	}
	return entries, nil
}

// Load parses one URL per line. Ids are assigned by line position, so a blank
// line in the middle of the list is rejected rather than skipped; blank lines
// at the end are ignored.
func Load(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		blanks  []int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		raw := scanner.Text()
		if !utf8.ValidString(raw) {
			return nil, fmt.Errorf("line %d: invalid UTF-8", line+1)
		}
		text := strings.TrimSpace(raw)
		if text == "" {
			blanks = append(blanks, line)
			line++
			continue
		}
		if len(blanks) > 0 {
			return nil, fmt.Errorf("line %d: empty URL", blanks[0]+1)
		}
		if err := validate(text); err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		entries = append(entries, Entry{URL: text, ID: line})
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed list: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	return entries, nil
}

func validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
