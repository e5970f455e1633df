package models

// QueryMatch is one fuzzy match between a tracked URL and a search-console query
type QueryMatch struct {
	Query       string  `json:"query"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	Position    float64 `json:"position"`
	Similarity  float64 `json:"similarity"`
	SourceURL   string  `json:"source_url,omitempty"`
}

// QueryMatchResponse is the matcher's answer for one URL
type QueryMatchResponse struct {
	URL     string       `json:"url"`
	Matches []QueryMatch `json:"matches"`
}

// AggregatedQueryResult is the per-URL rollup of a match batch
type AggregatedQueryResult struct {
	URL              string       `json:"url"`
	Matches          []QueryMatch `json:"matches"`
	TotalMatches     int          `json:"total_matches"`
	TotalClicks      int          `json:"total_clicks"`
	TotalImpressions int          `json:"total_impressions"`
	AverageCTR       float64      `json:"average_ctr"`
	AveragePosition  float64      `json:"average_position"`
	TopQueries       []string     `json:"top_queries"`
	Confidence       float64      `json:"confidence"`
	NoData           bool         `json:"no_data"`
}
