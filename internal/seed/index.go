package seed

import "strings"

// Normalize strips every trailing slash. It is the only normalization applied
// to corpus URLs.
func Normalize(raw string) string {
	return strings.TrimRight(raw, "/")
}

// ReverseIndex maps normalized corpus URLs back to their ids. It is read-only
// once built and safe for concurrent use.
type ReverseIndex struct {
	ids map[string]int
}

// NewReverseIndex builds the index from the seed list. When a URL appears more
// than once the later id wins.
func NewReverseIndex(entries []Entry) *ReverseIndex {
	ids := make(map[string]int, len(entries))
	for _, e := range entries {
		ids[Normalize(e.URL)] = e.ID
	}
	return &ReverseIndex{ids: ids}
}

// Resolve looks up a link target. Targets outside the corpus report false.
func (r *ReverseIndex) Resolve(link string) (int, bool) {
	if r == nil {
		return 0, false
	}
	id, ok := r.ids[Normalize(link)]
	return id, ok
}

// Len reports the number of distinct normalized URLs.
func (r *ReverseIndex) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
