package reporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/amosWeiskopf/seosession/internal/models"
)

// ErrUnsupportedFormat is returned for output formats the reporter cannot render
var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats lists the supported output formats
var Formats = []string{"json", "markdown", "html"}

// Reporter renders issue summaries and query aggregations
type Reporter struct {
	title string
	html  *template.Template
}

// New creates a new Reporter instance
func New() *Reporter {
	return &Reporter{
		title: "SEO Issue Report",
		html:  template.Must(template.New("report").Parse(htmlTemplate)),
	}
}

// GenerateReport renders summary in the given format
func (r *Reporter) GenerateReport(summary *models.IssueSummary, format string) (string, error) {
	if summary == nil {
		return "", errors.New("nil summary")
	}

	switch strings.ToLower(format) {
	case "json":
		return toJSON(summary)
	case "html":
		return r.generateHTML(summary)
	case "markdown", "md":
		return r.generateMarkdown(summary), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// GenerateQueryReport renders aggregated query results as json or markdown
func (r *Reporter) GenerateQueryReport(results []models.AggregatedQueryResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return toJSON(results)
	case "markdown", "md":
		return queryMarkdown(results), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}

func (r *Reporter) generateHTML(summary *models.IssueSummary) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Title string
		Rows  []countRow
		*models.IssueSummary
	}{r.title, countRows(summary), summary}
	if err := r.html.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func (r *Reporter) generateMarkdown(summary *models.IssueSummary) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", r.title)
	fmt.Fprintf(&buf, "*Generated on %s*\n\n", summary.GeneratedAt.Format("January 2, 2006 15:04 MST"))
	fmt.Fprintf(&buf, "**Pages analyzed:** %d\n\n", summary.PagesAnalyzed)

	fmt.Fprintf(&buf, "## Issue Counts\n\n")
	fmt.Fprintf(&buf, "| Category | Issue | Pages |\n")
	fmt.Fprintf(&buf, "|----------|-------|-------|\n")
	for _, row := range countRows(summary) {
		fmt.Fprintf(&buf, "| %s | %s | %d |\n", row.Category, row.Rule, row.Pages)
	}
	fmt.Fprintf(&buf, "\n")

	if len(summary.Findings) > 0 {
		fmt.Fprintf(&buf, "## Key Findings\n\n")
		for _, finding := range summary.Findings {
			fmt.Fprintf(&buf, "### %s\n", finding.Type)
			fmt.Fprintf(&buf, "- **Category:** %s\n", finding.Category)
			fmt.Fprintf(&buf, "- **Severity:** %s\n", finding.Severity)
			fmt.Fprintf(&buf, "- **Pages:** %d\n", finding.Pages)
			fmt.Fprintf(&buf, "- **Description:** %s\n", finding.Description)
			for _, example := range finding.Examples {
				fmt.Fprintf(&buf, "  - %s\n", example)
			}
			fmt.Fprintf(&buf, "\n")
		}
	}

	if len(summary.Recommendations) > 0 {
		fmt.Fprintf(&buf, "## Recommendations\n\n")
		for i, rec := range summary.Recommendations {
			fmt.Fprintf(&buf, "### %d. %s\n", i+1, rec.Action)
			fmt.Fprintf(&buf, "- **Priority:** %s\n", rec.Priority)
			fmt.Fprintf(&buf, "- **Category:** %s\n", rec.Category)
			fmt.Fprintf(&buf, "- **Impact:** %s\n", rec.Impact)
			fmt.Fprintf(&buf, "- **Effort:** %s\n", rec.Effort)
			fmt.Fprintf(&buf, "- **Description:** %s\n", rec.Description)
			fmt.Fprintf(&buf, "\n")
		}
	}

	if len(summary.Warnings) > 0 {
		fmt.Fprintf(&buf, "## Rule Warnings\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&buf, "- %s\n", w)
		}
		fmt.Fprintf(&buf, "\n")
	}

	return buf.String()
}

func queryMarkdown(results []models.AggregatedQueryResult) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Search Query Performance\n\n")
	fmt.Fprintf(&buf, "| URL | Queries | Clicks | Impressions | CTR | Avg Position | Top Queries |\n")
	fmt.Fprintf(&buf, "|-----|---------|--------|-------------|-----|--------------|-------------|\n")
	for _, r := range results {
		if r.NoData {
			fmt.Fprintf(&buf, "| %s | no data | | | | | |\n", r.URL)
			continue
		}
		fmt.Fprintf(&buf, "| %s | %d | %d | %d | %.2f%% | %.1f | %s |\n",
			r.URL, r.TotalMatches, r.TotalClicks, r.TotalImpressions,
			r.AverageCTR*100, r.AveragePosition, strings.Join(r.TopQueries, ", "))
	}
	return buf.String()
}

type countRow struct {
	Category string
	Rule     string
	Pages    int
}

// countRows flattens the per-category counts in category then rule order
func countRows(summary *models.IssueSummary) []countRow {
	var rows []countRow
	for _, category := range sortedKeys(summary.Counts) {
		for _, rule := range sortedKeys(summary.Counts[category]) {
			rows = append(rows, countRow{Category: category, Rule: rule, Pages: summary.Counts[category][rule]})
		}
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #333; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 2rem; border-radius: 10px; margin-bottom: 2rem; }
        .card { background: white; border-radius: 10px; padding: 1.5rem; margin-bottom: 1.5rem; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 0.4rem; border-bottom: 1px solid #eee; }
        .finding { border-left: 4px solid #ffc107; padding: 0.5rem 1rem; margin: 1rem 0; }
        .finding.high { border-left-color: #dc3545; }
        .finding.low { border-left-color: #28a745; }
        .priority-badge { display: inline-block; padding: 0.25rem 0.75rem; border-radius: 4px; font-size: 0.85rem; font-weight: bold; background: #ffc107; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
        <p>Generated on {{.GeneratedAt.Format "January 2, 2006"}} &middot; {{.PagesAnalyzed}} pages analyzed</p>
    </div>

    <div class="card">
        <h2>Issue Counts</h2>
        <table>
            <tr><th>Category</th><th>Issue</th><th>Pages</th></tr>
            {{range .Rows}}
            <tr><td>{{.Category}}</td><td>{{.Rule}}</td><td>{{.Pages}}</td></tr>
            {{end}}
        </table>
    </div>

    {{if .Findings}}
    <div class="card">
        <h2>Key Findings</h2>
        {{range .Findings}}
        <div class="finding {{.Severity}}">
            <h4>{{.Type}} ({{.Pages}})</h4>
            <p>{{.Description}}</p>
            {{if .Examples}}<ul>{{range .Examples}}<li>{{.}}</li>{{end}}</ul>{{end}}
        </div>
        {{end}}
    </div>
    {{end}}

    {{if .Recommendations}}
    <div class="card">
        <h2>Recommendations</h2>
        {{range .Recommendations}}
        <div>
            <span class="priority-badge">{{.Priority}} Priority</span>
            <h4>{{.Action}}</h4>
            <p>{{.Description}}</p>
            <p><small>Impact: {{.Impact}} | Effort: {{.Effort}}</small></p>
        </div>
        {{end}}
    </div>
    {{end}}

    {{if .Warnings}}
    <div class="card">
        <h2>Rule Warnings</h2>
        <ul>{{range .Warnings}}<li>{{.}}</li>{{end}}</ul>
    </div>
    {{end}}
</body>
</html>
`
