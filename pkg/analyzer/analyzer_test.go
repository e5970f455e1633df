package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/seosession/internal/models"
)

func TestClassifyIsolatesFailingRules(t *testing.T) {
	rules := []Rule{
		{
			Name:     "panics",
			Category: Content,
			Severity: "low",
			Filter: func([]models.PageRecord) ([]models.PageRecord, error) {
				var m map[string]int
				m["boom"]++
				return nil, nil
			},
		},
		{
			Name:     "errors",
			Category: Content,
			Severity: "low",
			Filter: func([]models.PageRecord) ([]models.PageRecord, error) {
				return nil, errors.New("bad data")
			},
		},
		{Name: "no filter", Category: Images, Severity: "low"},
		PageRule("everything", Headings, "low", "all pages", func(models.PageRecord) bool { return true }),
	}
	corpus := []models.PageRecord{{URL: "/a"}, {URL: "/b"}}

	report := Classify(corpus, rules)

	require.Len(t, report.Warnings, 3)
	assert.Equal(t, "panics", report.Warnings[0].Rule)
	assert.Equal(t, "errors", report.Warnings[1].Rule)
	assert.EqualError(t, report.Warnings[1].Err, "bad data")
	assert.Equal(t, "no filter", report.Warnings[2].Rule)

	assert.NotNil(t, report.Pages(Content, "panics"))
	assert.Empty(t, report.Pages(Content, "panics"))
	assert.Empty(t, report.Pages(Content, "errors"))
	assert.Len(t, report.Pages(Headings, "everything"), 2)
}

func TestClassifyListsEveryRule(t *testing.T) {
	report := New().Classify(nil)

	assert.Equal(t, 0, report.PagesAnalyzed)
	assert.Zero(t, report.Total())
	for _, r := range DefaultRules() {
		pages, ok := report.Issues[r.Category][r.Name]
		assert.True(t, ok, r.Name)
		assert.NotNil(t, pages, r.Name)
	}
}

func TestClassifyDoesNotMutateCorpus(t *testing.T) {
	corpus := []models.PageRecord{{URL: "/a", WordCount: intp(10)}}
	_ = Classify(corpus, DefaultRules())
	assert.Equal(t, 10, *corpus[0].WordCount)
	assert.Nil(t, corpus[0].Canonicals)
}

func TestFindingsAndRecommendations(t *testing.T) {
	corpus := []models.PageRecord{
		{URL: "/a", Title: "A", MetaDescription: "desc", WordCount: intp(1000), Canonicals: []string{"/a"},
			Headings: map[string][]string{"h1": {"A"}, "h2": {"x"}}, MetaRobots: []string{"noindex"}},
		{URL: "/b", Title: "B", MetaDescription: "desc", WordCount: intp(10), Canonicals: []string{"/b"},
			Headings: map[string][]string{"h1": {"B"}, "h2": {"x"}}},
	}

	report := Classify(corpus, DefaultRules())
	findings := report.Findings()
	require.Len(t, findings, 2)
	assert.Equal(t, RuleNoindex, findings[0].Type)
	assert.Equal(t, "critical", findings[0].Severity)
	assert.Equal(t, []string{"/a"}, findings[0].Examples)
	assert.Equal(t, RuleThinContent, findings[1].Type)

	recs := Recommendations(findings)
	require.Len(t, recs, 2)
	assert.Equal(t, "Review noindex directives", recs[0].Action)
	assert.Equal(t, string(Indexability), recs[0].Category)
}

func TestFindingsOrderedBySeverityThenCategory(t *testing.T) {
	all := func(models.PageRecord) bool { return true }
	rules := []Rule{
		PageRule("slow everywhere", Performance, "low", "pages", all),
		PageRule("thin everywhere", Content, "low", "pages", all),
		PageRule("noindex everywhere", Indexability, "critical", "pages", all),
		PageRule("second content", Content, "low", "pages", func(p models.PageRecord) bool { return p.URL == "/a" }),
	}
	corpus := []models.PageRecord{{URL: "/a"}, {URL: "/b"}}

	findings := Classify(corpus, rules).Findings()
	var order []string
	for _, f := range findings {
		order = append(order, f.Type)
	}
	assert.Equal(t, []string{"noindex everywhere", "thin everywhere", "second content", "slow everywhere"}, order)
}

func TestRecommendationsDeduplicateActions(t *testing.T) {
	recs := Recommendations([]models.Finding{
		{Type: RuleMissingH1, Category: "Headings"},
		{Type: RuleMissingH2, Category: "Headings"},
		{Type: "Unknown", Category: "Content"},
	})
	require.Len(t, recs, 1)
	assert.Equal(t, "Fix heading structure", recs[0].Action)
}

func TestSummary(t *testing.T) {
	corpus := []models.PageRecord{{URL: "/a"}, {URL: "/b", WordCount: intp(400)}}
	summary := Classify(corpus, DefaultRules()).Summary()

	assert.Equal(t, 2, summary.PagesAnalyzed)
	assert.Equal(t, 1, summary.Counts["Content"][RuleThinContent])
	assert.Equal(t, []string{"/a"}, summary.Issues["Content"][RuleThinContent])
	assert.Equal(t, 2, summary.Counts["Canonicals"][RuleMissingCanonical])
	assert.NotEmpty(t, summary.Findings)
	assert.NotEmpty(t, summary.Recommendations)
	assert.Empty(t, summary.Warnings)
}
