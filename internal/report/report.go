// Package report orders ranking results and writes the ranking report.
package report

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/seed"
	"github.com/JakeFAU/linkrank/internal/storage/local"
)

// Line is one row of the ranking report.
type Line struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
	URL   string  `json:"url"`
}

// Order pairs every score with its seed URL and sorts by descending score,
// breaking ties by ascending id.
func Order(scores []float64, entries []seed.Entry) []Line {
	urls := make(map[int]string, len(entries))
	for _, e := range entries {
		urls[e.ID] = e.URL
	}
	lines := make([]Line, len(scores))
	for id, score := range scores {
		lines[id] = Line{ID: id, Score: score, URL: urls[id]}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Score != lines[j].Score {
			return lines[i].Score > lines[j].Score
		}
		return lines[i].ID < lines[j].ID
	})
	return lines
}

// Format writes one "[id] score: url" line per entry.
func Format(w io.Writer, lines []Line) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := fmt.Fprintf(bw, "[%d] %s: %s\n", l.ID, strconv.FormatFloat(l.Score, 'f', -1, 64), l.URL); err != nil {
			return fmt.Errorf("write line %d: %w", l.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// FileWriter writes the report to a file, replacing it atomically.
type FileWriter struct {
	path   string
	logger *zap.Logger
}

// NewFileWriter creates a writer targeting path.
func NewFileWriter(path string, logger *zap.Logger) *FileWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWriter{path: path, logger: logger.Named("report")}
}

// Path returns the destination path.
func (f *FileWriter) Path() string {
	return f.path
}

// Write renders lines and swaps them into place. A previous report stays
// intact if rendering or writing fails.
func (f *FileWriter) Write(ctx context.Context, lines []Line) error {
	var buf bytes.Buffer
	if err := Format(&buf, lines); err != nil {
		return err
	}
	if err := local.WriteFileAtomic(ctx, f.path, &buf); err != nil {
		return fmt.Errorf("write report %s: %w", f.path, err)
	}
	f.logger.Info("ranking report written", zap.String("path", f.path), zap.Int("lines", len(lines)))
	return nil
}
