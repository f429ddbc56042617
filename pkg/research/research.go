// Package research gathers, extracts and ranks web sources for a topic.
package research

import (
	"context"
	"fmt"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
	"github.com/yesahmedyes/lecture-assistant/pkg/search"
)

const (
	DefaultPerQuery   = 6
	DefaultMaxResults = 20
)

// Topic produces a merged, URL-deduplicated list of sources by running the
// default query expansions plus any planner-provided queries. Collection
// stops once maxTotal sources have been gathered. A failing query is
// logged and skipped; Topic only fails when every query failed.
func Topic(ctx context.Context, searcher search.Searcher, topic string, extraQueries []string, perQuery, maxTotal int, log logger.ILogger) ([]pipeline.Source, error) {
	if perQuery <= 0 {
		perQuery = DefaultPerQuery
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxResults
	}

	queries := []string{
		fmt.Sprintf("%s overview", topic),
		fmt.Sprintf("%s key concepts", topic),
		fmt.Sprintf("%s latest research", topic),
	}
	queries = append(queries, extraQueries...)

	collected := make([]pipeline.Source, 0, maxTotal)
	seen := make(map[string]bool)
	var lastErr error

	for _, q := range queries {
		if len(collected) >= maxTotal {
			break
		}
		results, err := searcher.Search(ctx, q, perQuery)
		if err != nil {
			lastErr = err
			log.Warn("Research", "Search query failed", map[string]interface{}{
				"query": q,
				"error": err.Error(),
			})
			continue
		}
		for _, s := range results {
			if len(collected) >= maxTotal {
				break
			}
			if seen[s.URL] {
				continue
			}
			seen[s.URL] = true
			s.Query = q
			collected = append(collected, s)
		}
	}

	if len(collected) == 0 && lastErr != nil {
		return nil, fmt.Errorf("all search queries failed: %w", lastErr)
	}
	return collected, nil
}
