package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrank/internal/seed"
)

func TestOrderSortsByScoreThenID(t *testing.T) {
	t.Parallel()

	entries := []seed.Entry{
		{ID: 0, URL: "https://a"},
		{ID: 1, URL: "https://b"},
		{ID: 2, URL: "https://c"},
		{ID: 3, URL: "https://d"},
	}
	lines := Order([]float64{0.1, 0.5, 0.2, 0.1}, entries)

	assert.Equal(t, []Line{
		{ID: 1, Score: 0.5, URL: "https://b"},
		{ID: 2, Score: 0.2, URL: "https://c"},
		{ID: 0, Score: 0.1, URL: "https://a"},
		{ID: 3, Score: 0.1, URL: "https://d"},
	}, lines)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Format(&buf, []Line{
		{ID: 1, Score: 0.5, URL: "https://b"},
		{ID: 0, Score: 0.125, URL: "https://a/"},
	}))
	assert.Equal(t, "[1] 0.5: https://b\n[0] 0.125: https://a/\n", buf.String())
}

func TestFileWriterReplacesReport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output", "pagerank.txt")
	w := NewFileWriter(path, nil)
	assert.Equal(t, path, w.Path())

	require.NoError(t, w.Write(context.Background(), []Line{{ID: 0, Score: 1, URL: "https://a"}}))
	require.NoError(t, w.Write(context.Background(), []Line{{ID: 2, Score: 0.75, URL: "https://c"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2] 0.75: https://c\n", string(data))
}

func TestFileWriterFailureIsReported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := NewFileWriter(filepath.Join(blocker, "pagerank.txt"), nil).Write(context.Background(), nil)
	require.Error(t, err)
}
