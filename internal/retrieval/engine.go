// Package retrieval implements staged document search over per-user vector
// collections. Semantic search with keyword re-scoring runs first; two
// progressively cruder fallbacks keep the context window from coming back
// empty when embeddings miss.
package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/synai-app/synai/internal/thai"
	"github.com/synai-app/synai/internal/vector"
)

// Config carries the tuned cascade constants.
type Config struct {
	// Accept is the re-scored distance ceiling for semantic matches.
	Accept float64
	// KeywordBand is the fixed distance assigned to keyword fallback hits.
	KeywordBand float64
	// BestEffortBand is the fixed distance assigned to introductory chunks.
	BestEffortBand float64
	// PoolSize bounds the unranked pool scanned by the keyword fallback.
	PoolSize int
	// IntroCount is how many chunks the last-resort stage serves.
	IntroCount int
	// FanoutTotal caps merged results across a multi-file search.
	FanoutTotal int
	// FanoutMin is the per-file floor when the budget is split.
	FanoutMin int
}

// DefaultConfig returns the empirically tuned cascade constants.
func DefaultConfig() Config {
	return Config{
		Accept:         1.8,
		KeywordBand:    0.4,
		BestEffortBand: 0.6,
		PoolSize:       50,
		IntroCount:     5,
		FanoutTotal:    20,
		FanoutMin:      5,
	}
}

// Preparer makes sure files are indexed before a search runs. It returns
// the file IDs that are actually searchable; files that failed to index are
// dropped from the search scope.
type Preparer interface {
	EnsureIndexed(ctx context.Context, userID string, fileIDs []string) ([]string, error)
}

// Engine runs the staged search cascade.
type Engine struct {
	store    vector.Store
	preparer Preparer
	cfg      Config
	logger   *slog.Logger
}

// NewEngine creates an engine. preparer may be nil when callers guarantee
// files are already indexed.
func NewEngine(store vector.Store, preparer Preparer, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, preparer: preparer, cfg: cfg, logger: logger}
}

// Search runs the three-stage cascade in one user's collection and returns
// at most n matches sorted ascending by distance. An unreachable index
// degrades to empty results.
func (e *Engine) Search(ctx context.Context, userID, query string, n int, fileIDs []string) ([]vector.Match, error) {
	if n <= 0 {
		return nil, nil
	}

	fileIDs, err := e.prepare(ctx, userID, fileIDs)
	if err != nil {
		return nil, err
	}

	collection := vector.CollectionID(userID)
	filter := vector.Filter{FileIDs: fileIDs}

	matches, err := e.semanticStage(ctx, collection, query, n, filter)
	if err != nil {
		if errors.Is(err, vector.ErrUnavailable) {
			e.logger.Warn("vector index unavailable, returning no context", "user", userID)
			return nil, nil
		}
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}

	matches, err = e.keywordStage(ctx, collection, query, n, filter)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		e.logger.Debug("keyword fallback served results", "user", userID, "count", len(matches))
		return matches, nil
	}

	matches, err = e.bestEffortStage(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		e.logger.Debug("best-effort fallback served results", "user", userID, "count", len(matches))
	}
	return matches, nil
}

// SearchFiles searches each file concurrently with a split budget and
// merges the results, ascending by distance, truncated to the fan-out cap.
// Ties keep per-file encounter order.
func (e *Engine) SearchFiles(ctx context.Context, userID, query string, fileIDs []string) ([]vector.Match, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	fileIDs, err := e.prepare(ctx, userID, fileIDs)
	if err != nil {
		return nil, err
	}
	if len(fileIDs) == 0 {
		return nil, nil
	}

	budget := e.cfg.FanoutTotal / len(fileIDs)
	if budget < e.cfg.FanoutMin {
		budget = e.cfg.FanoutMin
	}

	results := make([][]vector.Match, len(fileIDs))
	var wg sync.WaitGroup
	for i, fileID := range fileIDs {
		wg.Add(1)
		go func(i int, fileID string) {
			defer wg.Done()
			matches, err := e.Search(ctx, userID, query, budget, []string{fileID})
			if err != nil {
				e.logger.Warn("per-file search failed", "file", fileID, "error", err)
				return
			}
			results[i] = matches
		}(i, fileID)
	}
	wg.Wait()

	var merged []vector.Match
	for _, r := range results {
		merged = append(merged, r...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	if len(merged) > e.cfg.FanoutTotal {
		merged = merged[:e.cfg.FanoutTotal]
	}
	return merged, nil
}

func (e *Engine) prepare(ctx context.Context, userID string, fileIDs []string) ([]string, error) {
	if e.preparer == nil || len(fileIDs) == 0 {
		return fileIDs, nil
	}
	ready, err := e.preparer.EnsureIndexed(ctx, userID, fileIDs)
	if err != nil {
		return nil, err
	}
	return ready, nil
}

// semanticStage runs the vector query and re-scores each hit by keyword
// coverage. A hit containing many of the query's words gets its distance
// pulled down, so exact-term matches beat vaguely related text.
func (e *Engine) semanticStage(ctx context.Context, collection, query string, n int, filter vector.Filter) ([]vector.Match, error) {
	raw, err := e.store.Query(ctx, collection, query, n, filter)
	if err != nil {
		return nil, err
	}

	tokens := queryTokens(query, 1)
	var accepted []vector.Match
	for _, m := range raw {
		d := m.Distance
		if len(tokens) > 0 {
			text := strings.ToLower(m.Text)
			hits := 0
			for _, tok := range tokens {
				if strings.Contains(text, tok) {
					hits++
				}
			}
			ratio := float64(hits) / float64(len(tokens))
			boost := ratio * 0.9
			if boost > d {
				boost = d
			}
			d = d - boost
			if d < 0.01 {
				d = 0.01
			}
		}
		if d < e.cfg.Accept {
			m.Distance = d
			accepted = append(accepted, m)
		}
	}

	// Accepted matches keep the store's raw-distance order; rescoring only
	// decides acceptance and the reported distance.
	if len(accepted) > n {
		accepted = accepted[:n]
	}
	return accepted, nil
}

// keywordStage scans an unranked pool for plain substring hits and serves
// them at a fixed confident distance.
func (e *Engine) keywordStage(ctx context.Context, collection, query string, n int, filter vector.Filter) ([]vector.Match, error) {
	tokens := queryTokens(query, 2)
	if len(tokens) == 0 {
		return nil, nil
	}

	pool, err := e.store.Fetch(ctx, collection, filter, e.cfg.PoolSize)
	if err != nil {
		if errors.Is(err, vector.ErrUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	var matches []vector.Match
	for _, c := range pool {
		text := strings.ToLower(c.Text)
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				matches = append(matches, vector.Match{Chunk: c, Distance: e.cfg.KeywordBand})
				break
			}
		}
		if len(matches) >= n {
			break
		}
	}
	return matches, nil
}

// bestEffortStage serves the first few chunks so summary-style questions
// about documents with no lexical overlap still get grounding.
func (e *Engine) bestEffortStage(ctx context.Context, collection string, filter vector.Filter) ([]vector.Match, error) {
	chunks, err := e.store.Fetch(ctx, collection, filter, e.cfg.IntroCount)
	if err != nil {
		if errors.Is(err, vector.ErrUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	matches := make([]vector.Match, len(chunks))
	for i, c := range chunks {
		matches[i] = vector.Match{Chunk: c, Distance: e.cfg.BestEffortBand}
	}
	return matches, nil
}

// queryTokens tokenizes a query, lowercased, dropping tokens of minLen
// runes or fewer. Thai queries go through dictionary segmentation.
func queryTokens(query string, minLen int) []string {
	var raw []string
	if thai.Contains(query) {
		raw = thai.Tokenize(query)
	} else {
		raw = strings.Fields(query)
	}

	var out []string
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if len([]rune(t)) > minLen {
			out = append(out, t)
		}
	}
	return out
}
