// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect gathers candidate documents for topic queries from the
// external document source. Each query runs two independent searches, one
// relevance-ranked and one recency-ranked, whose results are concatenated
// without deduplication: duplicates across the orderings are tolerated and
// wash out in relevance filtering downstream.
package collect

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Order selects the ranking of a document-source search.
type Order string

const (
	// OrderRelevance ranks results by query relevance.
	OrderRelevance Order = "relevance"

	// OrderRecency ranks results by submission date, newest first.
	OrderRecency Order = "recency"
)

// Source searches an external document index. Implementations return title,
// authors, abstract, and URL only; full content is fetched separately.
type Source interface {
	// Name identifies the source (e.g. "arxiv").
	Name() string

	// Search returns up to maxResults documents for query in the given order.
	Search(ctx context.Context, query string, maxResults int, order Order) ([]types.Document, error)
}

// Collector runs the two-ordering candidate collection for one query.
type Collector struct {
	source   Source
	perOrder int
	logger   *zap.Logger
}

// NewCollector returns a Collector fetching up to perOrder documents per
// ordering (default 10). A nil logger disables logging.
func NewCollector(source Source, perOrder int, logger *zap.Logger) *Collector {
	if perOrder <= 0 {
		perOrder = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{source: source, perOrder: perOrder, logger: logger}
}

// Collect returns the concatenation of a relevance-ranked and a
// recency-ranked search for query, relevance results first. Either search
// failing fails the whole collect.
func (c *Collector) Collect(ctx context.Context, query string) ([]types.Document, error) {
	var byRelevance, byRecency []types.Document

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byRelevance, err = c.source.Search(ctx, query, c.perOrder, OrderRelevance)
		if err != nil {
			return fmt.Errorf("%s relevance search: %w", c.source.Name(), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		byRecency, err = c.source.Search(ctx, query, c.perOrder, OrderRecency)
		if err != nil {
			return fmt.Errorf("%s recency search: %w", c.source.Name(), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("collected candidates",
		zap.String("query", query),
		zap.Int("by_relevance", len(byRelevance)),
		zap.Int("by_recency", len(byRecency)))

	return append(byRelevance, byRecency...), nil
}
