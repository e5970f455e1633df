// Package query merges fuzzy search-console matches into per-URL rollups.
package query

import (
	"sort"
	"strings"
	"sync"

	"github.com/amosWeiskopf/seosession/internal/metrics"
	"github.com/amosWeiskopf/seosession/internal/models"
)

// DefaultTopQueries is the number of query strings kept in TopQueries
const DefaultTopQueries = 5

// MergeMatches groups raw matches by identical query text and rolls them up.
// Duplicate queries sum clicks and impressions; their position is impression weighted,
// falling back to the plain mean when the group has no impressions.
func MergeMatches(url string, raw []models.QueryMatch) models.AggregatedQueryResult {
	return merge(url, raw, DefaultTopQueries)
}

type group struct {
	match    models.QueryMatch
	weighted float64
	posSum   float64
	members  int
}

func merge(url string, raw []models.QueryMatch, topN int) models.AggregatedQueryResult {
	result := models.AggregatedQueryResult{
		URL:        url,
		Matches:    []models.QueryMatch{},
		TopQueries: []string{},
	}
	if len(raw) == 0 {
		result.NoData = true
		return result
	}

	groups := make(map[string]*group)
	var order []string
	similarity := 0.0
	for _, m := range raw {
		similarity += m.Similarity
		g, ok := groups[m.Query]
		if !ok {
			g = &group{match: models.QueryMatch{Query: m.Query, SourceURL: m.SourceURL}}
			groups[m.Query] = g
			order = append(order, m.Query)
		}
		g.match.Clicks += m.Clicks
		g.match.Impressions += m.Impressions
		g.weighted += m.Position * float64(m.Impressions)
		g.posSum += m.Position
		g.members++
		if m.Similarity > g.match.Similarity {
			g.match.Similarity = m.Similarity
		}
	}

	var weighted, posSum float64
	for _, q := range order {
		g := groups[q]
		g.match.Position = weightedPosition(g.weighted, g.posSum, g.match.Impressions, g.members)

		result.Matches = append(result.Matches, g.match)
		result.TotalClicks += g.match.Clicks
		result.TotalImpressions += g.match.Impressions
		weighted += g.match.Position * float64(g.match.Impressions)
		posSum += g.match.Position
	}

	result.TotalMatches = len(result.Matches)
	if result.TotalImpressions > 0 {
		result.AverageCTR = float64(result.TotalClicks) / float64(result.TotalImpressions)
	}
	result.AveragePosition = weightedPosition(weighted, posSum, result.TotalImpressions, len(result.Matches))
	result.Confidence = clamp(similarity/float64(len(raw)), 0, 1)
	result.TopQueries = topQueries(result.Matches, topN)
	return result
}

func weightedPosition(weighted, sum float64, impressions, n int) float64 {
	if impressions > 0 {
		return weighted / float64(impressions)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func topQueries(matches []models.QueryMatch, n int) []string {
	sorted := append([]models.QueryMatch(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Clicks != b.Clicks {
			return a.Clicks > b.Clicks
		}
		if a.Impressions != b.Impressions {
			return a.Impressions > b.Impressions
		}
		return a.Query < b.Query
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, 0, n)
	for _, m := range sorted[:n] {
		out = append(out, m.Query)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Aggregator keeps the latest rollup per URL. Each merge replaces the previous one.
type Aggregator struct {
	mu      sync.RWMutex
	results map[string]models.AggregatedQueryResult
	topN    int
}

// NewAggregator creates an empty aggregator; topN <= 0 uses DefaultTopQueries
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopQueries
	}
	return &Aggregator{
		results: make(map[string]models.AggregatedQueryResult),
		topN:    topN,
	}
}

// Merge rolls up raw matches for url and stores the result
func (a *Aggregator) Merge(url string, raw []models.QueryMatch) models.AggregatedQueryResult {
	key := strings.TrimSpace(url)
	result := merge(key, raw, a.topN)

	label := "data"
	if result.NoData {
		label = "no_data"
	}
	metrics.QueryAggregations.WithLabelValues(label).Inc()

	a.mu.Lock()
	a.results[key] = result
	a.mu.Unlock()
	return result
}

// Apply merges a matcher response
func (a *Aggregator) Apply(resp models.QueryMatchResponse) models.AggregatedQueryResult {
	return a.Merge(resp.URL, resp.Matches)
}

// Get returns the latest rollup for url
func (a *Aggregator) Get(url string) (models.AggregatedQueryResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.results[strings.TrimSpace(url)]
	return r, ok
}

// URLs returns the tracked URLs in sorted order
func (a *Aggregator) URLs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.results))
	for u := range a.results {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Reset drops every stored rollup
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.results = make(map[string]models.AggregatedQueryResult)
	a.mu.Unlock()
}
