package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseIndexResolve(t *testing.T) {
	t.Parallel()

	idx := NewReverseIndex([]Entry{
		{URL: "https://a.example/", ID: 0},
		{URL: "https://b.example/page", ID: 1},
	})
	require.Equal(t, 2, idx.Len())

	testCases := []struct {
		link   string
		wantID int
		wantOK bool
	}{
		{"https://a.example", 0, true},
		{"https://a.example/", 0, true},
		{"https://a.example//", 0, true},
		{"https://b.example/page/", 1, true},
		{"https://b.example/page", 1, true},
		{"https://b.example/other", 0, false},
		{"http://a.example", 0, false},
	}
	for _, tc := range testCases {
		id, ok := idx.Resolve(tc.link)
		assert.Equal(t, tc.wantOK, ok, tc.link)
		if tc.wantOK {
			assert.Equal(t, tc.wantID, id, tc.link)
		}
	}
}

func TestReverseIndexLaterDuplicateWins(t *testing.T) {
	t.Parallel()

	idx := NewReverseIndex([]Entry{
		{URL: "https://a.example", ID: 0},
		{URL: "https://a.example/", ID: 1},
	})
	id, ok := idx.Resolve("https://a.example")
	require.True(t, ok)
	require.Equal(t, 1, id)
}

func TestNilReverseIndex(t *testing.T) {
	t.Parallel()

	var idx *ReverseIndex
	_, ok := idx.Resolve("https://a.example")
	assert.False(t, ok)
	assert.Zero(t, idx.Len())
}
