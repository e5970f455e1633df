package analyzer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/amosWeiskopf/seosession/internal/metrics"
	"github.com/amosWeiskopf/seosession/internal/models"
)

// Analyzer classifies a page corpus against a fixed rule set
type Analyzer struct {
	rules  []Rule
	logger *slog.Logger
}

// Config holds analyzer configuration
type Config struct {
	Rules  []Rule
	Logger *slog.Logger
}

// New creates an Analyzer with the default rules
func New() *Analyzer {
	return NewWithConfig(&Config{})
}

// NewWithConfig creates an Analyzer with custom configuration
func NewWithConfig(config *Config) *Analyzer {
	rules := config.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{rules: rules, logger: logger}
}

// Rules returns the analyzer's rule set
func (a *Analyzer) Rules() []Rule {
	return append([]Rule(nil), a.rules...)
}

// Classify runs every rule over the corpus
func (a *Analyzer) Classify(corpus []models.PageRecord) *Report {
	report := Classify(corpus, a.rules)
	for _, w := range report.Warnings {
		a.logger.Warn("Issue rule failed", "rule", w.Rule, "category", w.Category, "error", w.Err)
	}
	return report
}

// RuleWarning records a rule that failed during classification
type RuleWarning struct {
	Rule     string
	Category Category
	Err      error
}

func (w RuleWarning) String() string {
	return fmt.Sprintf("%s/%s: %v", w.Category, w.Rule, w.Err)
}

// Report is the result of a classification pass
type Report struct {
	GeneratedAt   time.Time
	PagesAnalyzed int
	Issues        map[Category]map[string][]models.PageRecord
	Warnings      []RuleWarning

	rules []Rule
}

// Classify evaluates each rule independently. A rule that errors or panics contributes an
// empty set and a warning; the remaining rules still run.
func Classify(corpus []models.PageRecord, rules []Rule) *Report {
	report := &Report{
		GeneratedAt:   time.Now(),
		PagesAnalyzed: len(corpus),
		Issues:        make(map[Category]map[string][]models.PageRecord),
		rules:         rules,
	}

	for _, rule := range rules {
		pages, err := runRule(rule, corpus)
		if err != nil {
			report.Warnings = append(report.Warnings, RuleWarning{Rule: rule.Name, Category: rule.Category, Err: err})
			metrics.RuleFailures.WithLabelValues(rule.Name).Inc()
			pages = []models.PageRecord{}
		}
		byName, ok := report.Issues[rule.Category]
		if !ok {
			byName = make(map[string][]models.PageRecord)
			report.Issues[rule.Category] = byName
		}
		byName[rule.Name] = pages
	}

	return report
}

func runRule(rule Rule, corpus []models.PageRecord) (pages []models.PageRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()
	if rule.Filter == nil {
		return nil, fmt.Errorf("rule has no filter")
	}
	pages, err = rule.Filter(corpus)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []models.PageRecord{}
	}
	return pages, nil
}

// Pages returns the pages a rule matched
func (r *Report) Pages(category Category, rule string) []models.PageRecord {
	return r.Issues[category][rule]
}

// Total returns the number of (page, rule) hits in the report
func (r *Report) Total() int {
	n := 0
	for _, byName := range r.Issues {
		for _, pages := range byName {
			n += len(pages)
		}
	}
	return n
}

var severityOrder = map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}

// Findings summarises every non-empty rule, most severe first and then by category.
// Within a category findings keep rule order.
func (r *Report) Findings() []models.Finding {
	findings := []models.Finding{}
	for _, rule := range r.rules {
		pages := r.Issues[rule.Category][rule.Name]
		if len(pages) == 0 {
			continue
		}
		f := models.Finding{
			Category:    string(rule.Category),
			Type:        rule.Name,
			Description: fmt.Sprintf("%d %s", len(pages), rule.Description),
			Severity:    rule.Severity,
			Pages:       len(pages),
		}
		for i, p := range pages {
			if i >= 5 {
				break
			}
			f.Examples = append(f.Examples, p.URL)
		}
		findings = append(findings, f)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		si, sj := severityOrder[findings[i].Severity], severityOrder[findings[j].Severity]
		if si != sj {
			return si < sj
		}
		return findings[i].Category < findings[j].Category
	})
	return findings
}

// Recommendations creates actionable recommendations based on findings
func Recommendations(findings []models.Finding) []models.Recommendation {
	recommendations := []models.Recommendation{}

	for _, finding := range findings {
		var rec models.Recommendation

		switch finding.Type {
		case RuleNoindex:
			rec = models.Recommendation{
				Priority:    "critical",
				Action:      "Review noindex directives",
				Impact:      "high",
				Effort:      "low",
				Description: "Remove noindex from pages that should appear in search results",
			}
		case RuleRobotsBlocked:
			rec = models.Recommendation{
				Priority:    "high",
				Action:      "Review robots.txt rules",
				Impact:      "high",
				Effort:      "low",
				Description: "Allow crawling of pages that are meant to be indexed",
			}
		case RuleMissingTitle, RuleTitleTooLong:
			rec = models.Recommendation{
				Priority:    "high",
				Action:      "Fix page titles",
				Impact:      "high",
				Effort:      "low",
				Description: "Ensure each page has a unique, descriptive title tag under 60 characters",
			}
		case RuleMissingDesc, RuleDescTooLong:
			rec = models.Recommendation{
				Priority:    "high",
				Action:      "Add unique meta descriptions",
				Impact:      "high",
				Effort:      "low",
				Description: "Write unique, compelling meta descriptions (120-160 characters) for all pages",
			}
		case RuleThinContent, RuleLowReadability:
			rec = models.Recommendation{
				Priority:    "medium",
				Action:      "Expand content",
				Impact:      "medium",
				Effort:      "medium",
				Description: "Add more valuable, readable content to pages with less than 300 words",
			}
		case RuleMissingCanonical, RuleCanonicalMismatch:
			rec = models.Recommendation{
				Priority:    "medium",
				Action:      "Fix canonical links",
				Impact:      "medium",
				Effort:      "low",
				Description: "Add a self-referencing canonical or point it at the preferred URL",
			}
		case RuleMultipleH1, RuleMissingH1, RuleMissingH2:
			rec = models.Recommendation{
				Priority:    "medium",
				Action:      "Fix heading structure",
				Impact:      "medium",
				Effort:      "low",
				Description: "Use exactly one H1 per page and structure sections with H2 headings",
			}
		case RuleMissingAlt, RuleBrokenImage, RuleLargeImage:
			rec = models.Recommendation{
				Priority:    "medium",
				Action:      "Fix images",
				Impact:      "medium",
				Effort:      "medium",
				Description: "Add alt text, repair broken image URLs and compress images over 100 KiB",
			}
		case RuleSlowPage, RuleLargeHTML:
			rec = models.Recommendation{
				Priority:    "medium",
				Action:      "Improve page performance",
				Impact:      "medium",
				Effort:      "high",
				Description: "Reduce server response time and HTML size",
			}
		case RuleLongRedirectChain:
			rec = models.Recommendation{
				Priority:    "low",
				Action:      "Shorten redirect chains",
				Impact:      "low",
				Effort:      "low",
				Description: "Link directly to the final destination URL",
			}
		default:
			continue
		}

		rec.Category = finding.Category
		recommendations = append(recommendations, rec)
	}

	return dedupeRecommendations(recommendations)
}

func dedupeRecommendations(recs []models.Recommendation) []models.Recommendation {
	seen := make(map[string]bool)
	out := recs[:0]
	for _, r := range recs {
		if seen[r.Action] {
			continue
		}
		seen[r.Action] = true
		out = append(out, r)
	}
	return out
}

// Summary flattens the report into its exported form
func (r *Report) Summary() models.IssueSummary {
	summary := models.IssueSummary{
		GeneratedAt:   r.GeneratedAt,
		PagesAnalyzed: r.PagesAnalyzed,
		Counts:        make(map[string]map[string]int),
		Issues:        make(map[string]map[string][]string),
	}
	for category, byName := range r.Issues {
		counts := make(map[string]int, len(byName))
		issues := make(map[string][]string, len(byName))
		for name, pages := range byName {
			counts[name] = len(pages)
			list := make([]string, 0, len(pages))
			for _, p := range pages {
				list = append(list, p.URL)
			}
			issues[name] = list
		}
		summary.Counts[string(category)] = counts
		summary.Issues[string(category)] = issues
	}
	summary.Findings = r.Findings()
	summary.Recommendations = Recommendations(summary.Findings)
	for _, w := range r.Warnings {
		summary.Warnings = append(summary.Warnings, w.String())
	}
	return summary
}
