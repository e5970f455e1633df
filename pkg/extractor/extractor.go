package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/amosWeiskopf/seosession/internal/models"
	"github.com/amosWeiskopf/seosession/pkg/utils"
)

// minLanguageSample is the shortest text handed to language detection
const minLanguageSample = 40

// FetchInfo carries what the fetcher knows about a response besides its body
type FetchInfo struct {
	StatusCode    int
	ContentType   string
	ResponseTime  time.Duration
	RedirectChain []string
}

// Extractor derives page records from HTML documents
type Extractor struct{}

// New creates a new Extractor instance
func New() *Extractor {
	return &Extractor{}
}

// Extract builds a PageRecord for pageURL from its HTML body
func (e *Extractor) Extract(pageURL string, body []byte, info FetchInfo) (models.PageRecord, error) {
	if strings.TrimSpace(pageURL) == "" {
		return models.PageRecord{}, fmt.Errorf("extract: empty url")
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return models.PageRecord{}, fmt.Errorf("extract: invalid url: %w", err)
	}

	utf8Body := decode(body, info.ContentType)
	root, err := html.Parse(bytes.NewReader(utf8Body))
	if err != nil {
		return models.PageRecord{}, fmt.Errorf("extract: parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	contentLength := int64(len(body))
	record := models.PageRecord{
		URL:           pageURL,
		StatusCode:    info.StatusCode,
		Headings:      ExtractHeadings(doc),
		Images:        ExtractImages(doc, base),
		Canonicals:    ExtractCanonicals(doc, base),
		MetaRobots:    ExtractMetaRobots(doc),
		ContentLength: &contentLength,
		RedirectChain: info.RedirectChain,
	}
	record.Title, record.MetaDescription = ExtractMetadata(doc)
	record.TitleLength = utf8.RuneCountInString(record.Title)

	if info.ResponseTime > 0 {
		seconds := info.ResponseTime.Seconds()
		record.ResponseTime = &seconds
	}

	text := mainText(utf8Body, doc)
	words := utils.CountWords(text)
	record.WordCount = &words
	if score, ok := utils.FleschReadingEase(text); ok {
		record.FleschScore = &score
	}

	record.Language = strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))
	if record.Language == "" && len(text) >= minLanguageSample {
		record.Language = whatlanggo.Detect(text).Lang.Iso6393()
	}

	return record, nil
}

// decode converts the body to UTF-8 using the declared or sniffed charset
func decode(body []byte, contentType string) []byte {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

// mainText prefers trafilatura's main content and falls back to the whole body text
func mainText(body []byte, doc *goquery.Document) string {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{})
	if err == nil && result != nil && strings.TrimSpace(result.ContentText) != "" {
		return utils.CleanText(result.ContentText)
	}

	clone := goquery.CloneDocument(doc)
	clone.Find("script, style, noscript").Remove()
	return utils.CleanText(clone.Find("body").Text())
}

// ExtractMetadata reads the title and meta description
func ExtractMetadata(doc *goquery.Document) (title, description string) {
	title = utils.CleanText(doc.Find("title").First().Text())
	description = utils.CleanText(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if description == "" {
		description = utils.CleanText(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}
	return title, description
}

// ExtractHeadings maps h1..h6 to their texts; levels without headings are left out
func ExtractHeadings(doc *goquery.Document) map[string][]string {
	out := make(map[string][]string)
	for level := 1; level <= 6; level++ {
		tag := fmt.Sprintf("h%d", level)
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			out[tag] = append(out[tag], utils.CleanText(s.Text()))
		})
	}
	return out
}

// ExtractImages lists <img> elements with resolved sources. Size and status are
// left unset; only the crawler knows them.
func ExtractImages(doc *goquery.Document, base *url.URL) []models.Image {
	var images []models.Image
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		if src == "" {
			src = s.AttrOr("data-src", "")
		}
		images = append(images, models.Image{
			Src: resolveURL(base, src),
			Alt: strings.TrimSpace(s.AttrOr("alt", "")),
		})
	})
	return images
}

// ExtractCanonicals returns every rel=canonical href in document order
func ExtractCanonicals(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find("link").Each(func(_ int, s *goquery.Selection) {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "canonical" {
				if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
					out = append(out, resolveURL(base, href))
				}
				return
			}
		}
	})
	return out
}

// ExtractMetaRobots returns robots and googlebot meta directives
func ExtractMetaRobots(doc *goquery.Document) []string {
	var out []string
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		switch strings.ToLower(s.AttrOr("name", "")) {
		case "robots", "googlebot":
			if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
				out = append(out, content)
			}
		}
	})
	return out
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
