package search

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/filesearch/pkg/models"
)

// ResultStore is the part of the store a search needs.
type ResultStore interface {
	MatchFiles(ctx context.Context, q string) ([]models.FileRecord, error)
	ReplaceResults(ctx context.Context, results []models.SearchResult) (int, error)
}

type Service struct {
	Store ResultStore
}

// NewService creates a new search service backed by the provided store
func NewService(store ResultStore) *Service {
	return &Service{
		Store: store,
	}
}

// Query finds every indexed file containing q, replaces the stored results
// with one row per match and returns how many rows were written. The query is
// used verbatim: matching is case-sensitive and whitespace is significant.
func (s *Service) Query(ctx context.Context, q string) (int, error) {
	files, err := s.Store.MatchFiles(ctx, q)
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("search failed")
		return 0, err
	}

	results := make([]models.SearchResult, 0, len(files))
	for _, f := range files {
		results = append(results, models.NewSearchResult(f, CountOccurrences(f.Content, q)))
	}

	n, err := s.Store.ReplaceResults(ctx, results)
	if err != nil {
		log.Error().Err(err).Str("query", q).Int("matches", len(results)).Msg("saving search results failed")
		return 0, err
	}

	if n == 0 {
		log.Info().Str("query", q).Msg("no files found")
	} else {
		log.Info().Str("query", q).Int("results", n).Msg("search results saved")
	}
	return n, nil
}

// CountOccurrences returns the number of non-overlapping occurrences of q in
// content, or 0 when content is nil or q is empty.
func CountOccurrences(content *string, q string) int {
	if content == nil || q == "" {
		return 0
	}
	return strings.Count(*content, q)
}
