package analyzer

import (
	"strings"
	"unicode/utf8"

	"github.com/temoto/robotstxt"

	"github.com/amosWeiskopf/seosession/internal/models"
	"github.com/amosWeiskopf/seosession/pkg/utils"
)

// Category groups related issue rules
type Category string

const (
	Indexability Category = "Indexability"
	Content      Category = "Content"
	Headings     Category = "Headings"
	Images       Category = "Images"
	Performance  Category = "Performance"
	Redirects    Category = "Redirects"
	Canonicals   Category = "Canonicals"
)

// Categories lists every category in display order
var Categories = []Category{Indexability, Content, Headings, Images, Performance, Redirects, Canonicals}

// Thresholds used by the default rule set
const (
	ThinContentWords  = 300
	MaxTitleLength    = 60
	MaxDescLength     = 160
	MinFleschScore    = 30.0
	SlowPageSeconds   = 2.0
	LargeHTMLBytes    = 100 * 1024
	LargeImageBytes   = 100 * 1024
	MaxRedirectHops   = 2
	BrokenImageStatus = 400
)

// Rule names
const (
	RuleMissingCanonical  = "Missing canonical"
	RuleCanonicalMismatch = "Canonical mismatch"
	RuleThinContent       = "Thin content"
	RuleMissingTitle      = "Missing title"
	RuleTitleTooLong      = "Title too long"
	RuleMissingDesc       = "Missing meta description"
	RuleDescTooLong       = "Meta description too long"
	RuleLowReadability    = "Low readability"
	RuleMultipleH1        = "Multiple H1"
	RuleMissingH1         = "Missing H1"
	RuleMissingH2         = "Missing H2"
	RuleMissingAlt        = "Missing alt text"
	RuleBrokenImage       = "Broken image"
	RuleLargeImage        = "Large image"
	RuleNoindex           = "Noindex"
	RuleNofollow          = "Nofollow"
	RuleSlowPage          = "Slow page"
	RuleLargeHTML         = "Large HTML"
	RuleLongRedirectChain = "Long redirect chain"
	RuleRobotsBlocked     = "Blocked by robots.txt"
)

// Rule maps the corpus to the pages violating one SEO condition
type Rule struct {
	Name        string
	Category    Category
	Severity    string
	Description string
	Filter      func(corpus []models.PageRecord) ([]models.PageRecord, error)
}

// PageRule builds a Rule from a per-page predicate
func PageRule(name string, category Category, severity, description string, match func(models.PageRecord) bool) Rule {
	return Rule{
		Name:        name,
		Category:    category,
		Severity:    severity,
		Description: description,
		Filter: func(corpus []models.PageRecord) ([]models.PageRecord, error) {
			out := []models.PageRecord{}
			for _, p := range corpus {
				if match(p) {
					out = append(out, p)
				}
			}
			return out, nil
		},
	}
}

// DefaultRules returns the built-in rule catalogue
func DefaultRules() []Rule {
	return []Rule{
		PageRule(RuleMissingCanonical, Canonicals, "medium", "pages without a canonical link", missingCanonical),
		PageRule(RuleCanonicalMismatch, Canonicals, "medium", "pages whose canonical points elsewhere", canonicalMismatch),

		PageRule(RuleThinContent, Content, "medium", "pages with less than 300 words", thinContent),
		PageRule(RuleMissingTitle, Content, "high", "pages without a title", missingTitle),
		PageRule(RuleTitleTooLong, Content, "low", "titles longer than 60 characters", titleTooLong),
		PageRule(RuleMissingDesc, Content, "medium", "pages without a meta description", missingDescription),
		PageRule(RuleDescTooLong, Content, "low", "meta descriptions longer than 160 characters", descriptionTooLong),
		PageRule(RuleLowReadability, Content, "low", "pages with a Flesch reading ease below 30", lowReadability),

		PageRule(RuleMultipleH1, Headings, "medium", "pages with more than one H1", multipleH1),
		PageRule(RuleMissingH1, Headings, "high", "pages without an H1", missingHeading("h1")),
		PageRule(RuleMissingH2, Headings, "low", "pages without an H2", missingHeading("h2")),

		PageRule(RuleMissingAlt, Images, "medium", "pages with images lacking alt text", missingAlt),
		PageRule(RuleBrokenImage, Images, "high", "pages referencing images that return 4xx/5xx", brokenImage),
		PageRule(RuleLargeImage, Images, "low", "pages with images over 100 KiB", largeImage),

		PageRule(RuleNoindex, Indexability, "critical", "pages with a noindex directive", robotsDirective("noindex")),
		PageRule(RuleNofollow, Indexability, "medium", "pages with a nofollow directive", robotsDirective("nofollow")),

		PageRule(RuleSlowPage, Performance, "medium", "pages responding slower than 2s", slowPage),
		PageRule(RuleLargeHTML, Performance, "low", "pages with HTML over 100 KiB", largeHTML),

		PageRule(RuleLongRedirectChain, Redirects, "medium", "pages reached through more than 2 redirects", longRedirectChain),
	}
}

// RobotsRule flags pages whose path is disallowed for agent by the supplied robots.txt
func RobotsRule(robots *robotstxt.RobotsData, agent string) Rule {
	return PageRule(RuleRobotsBlocked, Indexability, "high", "pages disallowed by robots.txt", func(p models.PageRecord) bool {
		return !robots.TestAgent(utils.URLPath(p.URL), agent)
	})
}

func missingCanonical(p models.PageRecord) bool {
	return len(p.Canonicals) == 0
}

func canonicalMismatch(p models.PageRecord) bool {
	if len(p.Canonicals) == 0 {
		return false
	}
	return utils.NormalizeURL(p.URL) != utils.NormalizeURL(p.Canonicals[0])
}

// nil word count counts as zero words and is flagged
func thinContent(p models.PageRecord) bool {
	words := 0
	if p.WordCount != nil {
		words = *p.WordCount
	}
	return words < ThinContentWords
}

func missingTitle(p models.PageRecord) bool {
	return strings.TrimSpace(p.Title) == ""
}

func titleTooLong(p models.PageRecord) bool {
	n := p.TitleLength
	if n == 0 {
		n = utf8.RuneCountInString(p.Title)
	}
	return n > MaxTitleLength
}

func missingDescription(p models.PageRecord) bool {
	return strings.TrimSpace(p.MetaDescription) == ""
}

func descriptionTooLong(p models.PageRecord) bool {
	return utf8.RuneCountInString(p.MetaDescription) > MaxDescLength
}

func lowReadability(p models.PageRecord) bool {
	return p.FleschScore != nil && *p.FleschScore < MinFleschScore
}

func multipleH1(p models.PageRecord) bool {
	return len(p.HeadingTexts("h1")) > 1
}

func missingHeading(level string) func(models.PageRecord) bool {
	return func(p models.PageRecord) bool {
		return len(p.HeadingTexts(level)) == 0
	}
}

func missingAlt(p models.PageRecord) bool {
	for _, img := range p.Images {
		if strings.TrimSpace(img.Alt) == "" {
			return true
		}
	}
	return false
}

func brokenImage(p models.PageRecord) bool {
	for _, img := range p.Images {
		if img.StatusCode != nil && *img.StatusCode >= BrokenImageStatus {
			return true
		}
	}
	return false
}

func largeImage(p models.PageRecord) bool {
	for _, img := range p.Images {
		if img.Size != nil && *img.Size > LargeImageBytes {
			return true
		}
	}
	return false
}

func robotsDirective(directive string) func(models.PageRecord) bool {
	return func(p models.PageRecord) bool {
		for _, d := range p.MetaRobots {
			if strings.Contains(strings.ToLower(d), directive) {
				return true
			}
		}
		return false
	}
}

// nil response time counts as zero and is not flagged
func slowPage(p models.PageRecord) bool {
	return p.ResponseTime != nil && *p.ResponseTime > SlowPageSeconds
}

func largeHTML(p models.PageRecord) bool {
	return p.ContentLength != nil && *p.ContentLength > LargeHTMLBytes
}

func longRedirectChain(p models.PageRecord) bool {
	return len(p.RedirectChain) > MaxRedirectHops
}
