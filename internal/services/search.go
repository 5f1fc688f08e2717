package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"marketbot/bot-go/internal/models"
)

type quoteSearcher interface {
	SearchQuotes(ctx context.Context, query string) ([]models.SearchResult, error)
}

// SearchService turns a free-text query into categorized instruments.
type SearchService struct {
	client quoteSearcher
}

func NewSearchService(client quoteSearcher) *SearchService {
	return &SearchService{client: client}
}

// Search never fails: any provider problem is logged and reported as no results.
func (s *SearchService) Search(ctx context.Context, query string) (models.Buckets, int) {
	results, err := s.client.SearchQuotes(ctx, query)
	if err != nil {
		slog.Warn("instrument search failed", "query", query, "error", err)
		return models.Buckets{}, 0
	}
	buckets := BucketResults(results)
	return buckets, buckets.FlatCount()
}

// Classify places a result in exactly one bucket. Exchange suffix wins over
// quote type.
func Classify(r models.SearchResult) models.Bucket {
	switch {
	case strings.HasSuffix(r.Symbol, ".NS"), strings.HasSuffix(r.Symbol, ".BO"):
		return models.BucketIndia
	case r.Type == models.QuoteCrypto:
		return models.BucketCrypto
	case r.Type == models.QuoteETF, r.Type == models.QuoteMutualFund:
		return models.BucketFunds
	case r.Type == models.QuoteEquity:
		return models.BucketUSGlobal
	default:
		return models.BucketOther
	}
}

// BucketResults classifies results and orders each bucket by symbol length,
// keeping provider order for equal lengths.
func BucketResults(results []models.SearchResult) models.Buckets {
	out := models.Buckets{}
	for _, r := range results {
		if r.Symbol == "" {
			continue
		}
		b := Classify(r)
		out[b] = append(out[b], r)
	}
	for b := range out {
		items := out[b]
		sort.SliceStable(items, func(i, j int) bool {
			return len(items[i].Symbol) < len(items[j].Symbol)
		})
	}
	return out
}
