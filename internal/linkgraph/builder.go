package linkgraph

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/crawler"
	"github.com/JakeFAU/linkrank/internal/metrics"
	"github.com/JakeFAU/linkrank/internal/seed"
)

// DocumentReader is the read side of the document store.
type DocumentReader interface {
	Get(ctx context.Context, id int) ([]byte, error)
}

// BuildStats summarizes one graph build.
type BuildStats struct {
	Nodes int `json:"nodes"`
	// Present counts documents found on the store.
	Present int `json:"present"`
	// Missing counts ids with no stored document.
	Missing int `json:"missing"`
	// Unreadable counts documents whose read failed for another reason. They
	// are treated like missing ones.
	Unreadable    int `json:"unreadable"`
	LinksMatched  int `json:"links_matched"`
	LinksResolved int `json:"links_resolved"`
	// LinksDropped counts links whose target is not in the seed list.
	LinksDropped int `json:"links_dropped"`
}

// Builder assembles the link graph from stored documents.
type Builder struct {
	docs   DocumentReader
	index  *seed.ReverseIndex
	n      int
	logger *zap.Logger
}

// NewBuilder creates a Builder for the given seed list.
func NewBuilder(docs DocumentReader, entries []seed.Entry, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		docs:   docs,
		index:  seed.NewReverseIndex(entries),
		n:      len(entries),
		logger: logger.Named("linkgraph"),
	}
}

// Build reads every id in [0, N). Absent documents become nodes without
// out-links; links that do not resolve to a seed id are dropped and counted.
func (b *Builder) Build(ctx context.Context) (*Graph, BuildStats, error) {
	stats := BuildStats{Nodes: b.n}
	var edges []Edge
	for id := range b.n {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("build canceled: %w", err)
		}
		body, err := b.docs.Get(ctx, id)
		switch {
		case errors.Is(err, crawler.ErrNotFound):
			stats.Missing++
			continue
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, fmt.Errorf("build canceled: %w", ctxErr)
			}
			stats.Unreadable++
			b.logger.Warn("document unreadable, treating as absent", zap.Int("doc_id", id), zap.Error(err))
			continue
		}
		stats.Present++

		for _, link := range Extract(body) {
			stats.LinksMatched++
			to, ok := b.index.Resolve(link)
			if !ok {
				stats.LinksDropped++
				continue
			}
			stats.LinksResolved++
			edges = append(edges, Edge{From: id, To: to})
		}
	}

	g, err := NewGraph(b.n, edges)
	if err != nil {
		return nil, stats, err
	}
	metrics.ObserveGraph(g.Len(), g.EdgeCount(), stats.LinksDropped)
	b.logger.Info("link graph built",
		zap.Int("nodes", stats.Nodes),
		zap.Int("present", stats.Present),
		zap.Int("missing", stats.Missing),
		zap.Int("unreadable", stats.Unreadable),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("links_dropped", stats.LinksDropped),
	)
	return g, stats, nil
}
