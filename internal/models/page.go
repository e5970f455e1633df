package models

import (
	"strings"
	"time"
)

// SessionType is the crawl mode a session was started in
type SessionType string

const (
	SessionSpider     SessionType = "spider"
	SessionList       SessionType = "list"
	SessionSinglePage SessionType = "single-page"
)

// ParseSessionType maps a user supplied mode onto a SessionType
func ParseSessionType(s string) (SessionType, bool) {
	switch SessionType(strings.ToLower(strings.TrimSpace(s))) {
	case SessionSpider:
		return SessionSpider, true
	case SessionList:
		return SessionList, true
	case SessionSinglePage, "single", "page":
		return SessionSinglePage, true
	}
	return "", false
}

// PageRecord is one page's analysis result as delivered by the crawler.
// Pointer and slice fields are optional; nil means the crawler did not report them.
type PageRecord struct {
	URL             string              `json:"url"`
	StatusCode      int                 `json:"status_code,omitempty"`
	Title           string              `json:"title,omitempty"`
	TitleLength     int                 `json:"title_length,omitempty"`
	MetaDescription string              `json:"description,omitempty"`
	Headings        map[string][]string `json:"headings,omitempty"`
	Images          []Image             `json:"images,omitempty"`
	Canonicals      []string            `json:"canonicals,omitempty"`
	MetaRobots      []string            `json:"meta_robots,omitempty"`
	WordCount       *int                `json:"word_count,omitempty"`
	ResponseTime    *float64            `json:"response_time,omitempty"`
	ContentLength   *int64              `json:"content_length,omitempty"`
	RedirectChain   []string            `json:"redirect_chain,omitempty"`
	Language        string              `json:"language,omitempty"`
	FleschScore     *float64            `json:"flesch_score,omitempty"`
}

// Image is an <img> entry found on a page
type Image struct {
	Src        string `json:"src,omitempty"`
	Alt        string `json:"alt"`
	Size       *int64 `json:"size,omitempty"`
	StatusCode *int   `json:"status,omitempty"`
}

// HeadingTexts returns the texts recorded for a heading level ("h1".."h6")
func (p PageRecord) HeadingTexts(level string) []string {
	if p.Headings == nil {
		return nil
	}
	return p.Headings[strings.ToLower(level)]
}

// Clone returns a deep copy so the stored record cannot be mutated through the caller's slices
func (p PageRecord) Clone() PageRecord {
	out := p
	if p.Headings != nil {
		out.Headings = make(map[string][]string, len(p.Headings))
		for k, v := range p.Headings {
			out.Headings[k] = append([]string(nil), v...)
		}
	}
	if p.Images != nil {
		out.Images = make([]Image, len(p.Images))
		for i, img := range p.Images {
			out.Images[i] = img
			if img.Size != nil {
				size := *img.Size
				out.Images[i].Size = &size
			}
			if img.StatusCode != nil {
				status := *img.StatusCode
				out.Images[i].StatusCode = &status
			}
		}
	}
	out.Canonicals = cloneStrings(p.Canonicals)
	out.MetaRobots = cloneStrings(p.MetaRobots)
	out.RedirectChain = cloneStrings(p.RedirectChain)
	if p.WordCount != nil {
		v := *p.WordCount
		out.WordCount = &v
	}
	if p.ResponseTime != nil {
		v := *p.ResponseTime
		out.ResponseTime = &v
	}
	if p.ContentLength != nil {
		v := *p.ContentLength
		out.ContentLength = &v
	}
	if p.FleschScore != nil {
		v := *p.FleschScore
		out.FleschScore = &v
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// CrawlEvent is the progress event pushed by the crawler for every analyzed page
type CrawlEvent struct {
	Page         PageRecord `json:"page_record"`
	CrawledCount int        `json:"crawled_count"`
	TotalCount   int        `json:"total_count"`
}

// Progress holds the crawler supplied counters
type Progress struct {
	Crawled int `json:"crawled"`
	Total   int `json:"total"`
}

// Finding represents an SEO issue summarised across the corpus
type Finding struct {
	Category    string   `json:"category"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Pages       int      `json:"pages"`
	Examples    []string `json:"examples,omitempty"`
}

// Recommendation represents an actionable SEO improvement
type Recommendation struct {
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Action      string `json:"action"`
	Impact      string `json:"impact"`
	Effort      string `json:"effort"`
	Description string `json:"description"`
}

// IssueSummary is the exported form of a classification pass
type IssueSummary struct {
	GeneratedAt     time.Time                      `json:"generated_at"`
	PagesAnalyzed   int                            `json:"pages_analyzed"`
	Counts          map[string]map[string]int      `json:"counts"`
	Issues          map[string]map[string][]string `json:"issues"`
	Findings        []Finding                      `json:"findings"`
	Recommendations []Recommendation               `json:"recommendations"`
	Warnings        []string                       `json:"warnings,omitempty"`
}
