package extractor

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>  Widgets for   sale </title>
  <meta name="description" content="Buy widgets online.">
  <meta name="robots" content="noindex, follow">
  <meta name="googlebot" content="nosnippet">
  <link rel="canonical" href="/widgets">
  <link rel="alternate canonical" href="https://other.example.com/widgets">
  <link rel="stylesheet" href="/style.css">
</head>
<body>
  <h1>Widgets</h1>
  <h2>Blue widgets</h2>
  <h2>Red widgets</h2>
  <p>The cat sat on the mat. The dog ran in the sun.</p>
  <img src="/img/blue.png" alt="Blue widget">
  <img data-src="red.png">
  <script>var ignored = "not words";</script>
</body>
</html>`

func docFrom(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestExtract(t *testing.T) {
	e := New()
	rec, err := e.Extract("https://example.com/shop/", []byte(samplePage), FetchInfo{
		StatusCode:    200,
		ContentType:   "text/html; charset=utf-8",
		ResponseTime:  1500 * time.Millisecond,
		RedirectChain: []string{"http://example.com/shop"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/shop/", rec.URL)
	assert.Equal(t, 200, rec.StatusCode)
	assert.Equal(t, "Widgets for sale", rec.Title)
	assert.Equal(t, 16, rec.TitleLength)
	assert.Equal(t, "Buy widgets online.", rec.MetaDescription)
	assert.Equal(t, []string{"Widgets"}, rec.Headings["h1"])
	assert.Equal(t, []string{"Blue widgets", "Red widgets"}, rec.Headings["h2"])
	assert.NotContains(t, rec.Headings, "h3")
	assert.Equal(t, []string{"https://example.com/widgets", "https://other.example.com/widgets"}, rec.Canonicals)
	assert.Equal(t, []string{"noindex, follow", "nosnippet"}, rec.MetaRobots)
	assert.Equal(t, "en", rec.Language)
	assert.Equal(t, []string{"http://example.com/shop"}, rec.RedirectChain)

	require.NotNil(t, rec.ResponseTime)
	assert.InDelta(t, 1.5, *rec.ResponseTime, 1e-9)
	require.NotNil(t, rec.ContentLength)
	assert.Equal(t, int64(len(samplePage)), *rec.ContentLength)
	require.NotNil(t, rec.WordCount)
	assert.Positive(t, *rec.WordCount)

	require.Len(t, rec.Images, 2)
	assert.Equal(t, "https://example.com/img/blue.png", rec.Images[0].Src)
	assert.Equal(t, "Blue widget", rec.Images[0].Alt)
	assert.Equal(t, "https://example.com/shop/red.png", rec.Images[1].Src)
	assert.Empty(t, rec.Images[1].Alt)
	assert.Nil(t, rec.Images[0].Size)
	assert.Nil(t, rec.Images[0].StatusCode)
}

func TestExtractErrors(t *testing.T) {
	e := New()
	_, err := e.Extract("  ", []byte(samplePage), FetchInfo{})
	assert.Error(t, err)

	_, err = e.Extract("http://[::1", []byte(samplePage), FetchInfo{})
	assert.Error(t, err)
}

func TestExtractEmptyDocument(t *testing.T) {
	rec, err := New().Extract("https://example.com/", nil, FetchInfo{StatusCode: 204})
	require.NoError(t, err)

	assert.Empty(t, rec.Title)
	assert.Zero(t, rec.TitleLength)
	assert.Empty(t, rec.Headings)
	assert.Empty(t, rec.Images)
	assert.Nil(t, rec.ResponseTime)
	assert.Nil(t, rec.FleschScore)
	require.NotNil(t, rec.WordCount)
	assert.Zero(t, *rec.WordCount)
}

func TestExtractLatin1Body(t *testing.T) {
	body := []byte("<html><head><title>Caf\xe9</title></head><body></body></html>")
	rec, err := New().Extract("https://example.com/", body, FetchInfo{ContentType: "text/html; charset=iso-8859-1"})
	require.NoError(t, err)
	assert.Equal(t, "Café", rec.Title)
	assert.Equal(t, 4, rec.TitleLength)
}

func TestExtractMetadataFallsBackToOpenGraph(t *testing.T) {
	doc := docFrom(t, `<html><head><meta property="og:description" content="From OG"></head></html>`)
	title, desc := ExtractMetadata(doc)
	assert.Empty(t, title)
	assert.Equal(t, "From OG", desc)
}

func TestExtractCanonicalsSkipsEmptyHref(t *testing.T) {
	base, _ := url.Parse("https://example.com/a")
	doc := docFrom(t, `<html><head><link rel="canonical" href=""><link rel="CANONICAL" href="https://example.com/b"></head></html>`)
	assert.Equal(t, []string{"https://example.com/b"}, ExtractCanonicals(doc, base))
}

func TestExtractMetaRobotsIgnoresOtherMeta(t *testing.T) {
	doc := docFrom(t, `<html><head><meta name="viewport" content="width=device-width"><meta name="ROBOTS" content="noindex"></head></html>`)
	assert.Equal(t, []string{"noindex"}, ExtractMetaRobots(doc))
}
