package query

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/seosession/internal/models"
)

func TestMergeWeightedPosition(t *testing.T) {
	res := MergeMatches("https://x.com/a", []models.QueryMatch{
		{Query: "a", Clicks: 10, Impressions: 100, Position: 5, Similarity: 0.9},
		{Query: "a", Clicks: 5, Impressions: 0, Position: 20, Similarity: 0.7},
	})

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "a", m.Query)
	assert.Equal(t, 15, m.Clicks)
	assert.Equal(t, 100, m.Impressions)
	assert.InDelta(t, 5.0, m.Position, 1e-9)
	assert.InDelta(t, 0.9, m.Similarity, 1e-9)
	assert.False(t, res.NoData)
}

func TestMergeZeroImpressionFallback(t *testing.T) {
	res := MergeMatches("https://x.com/a", []models.QueryMatch{
		{Query: "b", Clicks: 0, Impressions: 0, Position: 5},
		{Query: "b", Clicks: 0, Impressions: 0, Position: 20},
	})

	require.Len(t, res.Matches, 1)
	assert.InDelta(t, 12.5, res.Matches[0].Position, 1e-9)
	assert.InDelta(t, 12.5, res.AveragePosition, 1e-9)
	assert.Zero(t, res.AverageCTR)
}

func TestMergeTotals(t *testing.T) {
	res := MergeMatches("https://x.com/a", []models.QueryMatch{
		{Query: "go crawler", Clicks: 10, Impressions: 100, Position: 4, Similarity: 0.8, SourceURL: "https://x.com/a"},
		{Query: "seo audit", Clicks: 30, Impressions: 300, Position: 8, Similarity: 0.6},
		{Query: "go crawler", Clicks: 10, Impressions: 100, Position: 6, Similarity: 0.4},
		{Query: "rare", Clicks: 0, Impressions: 0, Position: 50, Similarity: 0.2},
	})

	assert.Equal(t, 3, res.TotalMatches)
	assert.Equal(t, 50, res.TotalClicks)
	assert.Equal(t, 500, res.TotalImpressions)
	assert.InDelta(t, 0.1, res.AverageCTR, 1e-9)
	// (5*200 + 8*300 + 50*0) / 500
	assert.InDelta(t, 6.8, res.AveragePosition, 1e-9)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
	assert.Equal(t, []string{"seo audit", "go crawler", "rare"}, res.TopQueries)

	assert.Equal(t, "go crawler", res.Matches[0].Query, "first appearance order is kept")
	assert.Equal(t, "https://x.com/a", res.Matches[0].SourceURL)
	assert.InDelta(t, 5.0, res.Matches[0].Position, 1e-9)
}

func TestMergeTopQueriesLimit(t *testing.T) {
	var raw []models.QueryMatch
	for i, q := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		raw = append(raw, models.QueryMatch{Query: q, Clicks: i, Impressions: 10})
	}
	res := MergeMatches("/", raw)
	assert.Equal(t, []string{"g", "f", "e", "d", "c"}, res.TopQueries)
}

func TestMergeTopQueriesTieBreak(t *testing.T) {
	res := MergeMatches("/", []models.QueryMatch{
		{Query: "zeta", Clicks: 1, Impressions: 10},
		{Query: "alpha", Clicks: 1, Impressions: 10},
		{Query: "beta", Clicks: 1, Impressions: 20},
	})
	assert.Equal(t, []string{"beta", "alpha", "zeta"}, res.TopQueries)
}

func TestMergeEmptyInput(t *testing.T) {
	tests := []struct {
		name string
		raw  []models.QueryMatch
	}{
		{"nil", nil},
		{"empty", []models.QueryMatch{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := MergeMatches("https://x.com/a", tt.raw)
			assert.True(t, res.NoData)
			assert.Equal(t, "https://x.com/a", res.URL)
			assert.Zero(t, res.TotalMatches)
			assert.Zero(t, res.TotalClicks)
			assert.Zero(t, res.TotalImpressions)
			assert.Zero(t, res.AverageCTR)
			assert.Zero(t, res.AveragePosition)
			assert.Zero(t, res.Confidence)
			assert.NotNil(t, res.Matches)
			assert.NotNil(t, res.TopQueries)
		})
	}
}

func TestMergeConfidenceClamped(t *testing.T) {
	res := MergeMatches("/", []models.QueryMatch{{Query: "a", Similarity: 3}})
	assert.Equal(t, 1.0, res.Confidence)
}

func TestAggregatorLastWriteWins(t *testing.T) {
	agg := NewAggregator(0)

	_, ok := agg.Get("https://x.com/a")
	assert.False(t, ok)

	agg.Merge("https://x.com/a", []models.QueryMatch{{Query: "old", Clicks: 100, Impressions: 1000}})
	agg.Apply(models.QueryMatchResponse{
		URL:     "https://x.com/a",
		Matches: []models.QueryMatch{{Query: "new", Clicks: 1, Impressions: 10}},
	})

	got, ok := agg.Get("https://x.com/a")
	require.True(t, ok)
	assert.Equal(t, 1, got.TotalClicks)
	assert.Equal(t, []string{"new"}, got.TopQueries)

	agg.Merge("https://x.com/a", nil)
	got, _ = agg.Get("https://x.com/a")
	assert.True(t, got.NoData)
}

func TestAggregatorTopNAndReset(t *testing.T) {
	agg := NewAggregator(1)
	res := agg.Merge(" /b ", []models.QueryMatch{{Query: "x", Clicks: 1}, {Query: "y", Clicks: 2}})
	assert.Equal(t, []string{"y"}, res.TopQueries)
	assert.Equal(t, []string{"/b"}, agg.URLs())

	agg.Reset()
	assert.Empty(t, agg.URLs())
}

func TestAggregatorConcurrentMerges(t *testing.T) {
	agg := NewAggregator(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Merge("/shared", []models.QueryMatch{{Query: "q", Clicks: i, Impressions: 10}})
			agg.Get("/shared")
		}(i)
	}
	wg.Wait()

	got, ok := agg.Get("/shared")
	require.True(t, ok)
	assert.Equal(t, 1, got.TotalMatches)
}
