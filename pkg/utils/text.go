package utils

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	sentenceRe = regexp.MustCompile(`[.!?]+`)
)

// CleanText removes extra whitespace and normalizes text
func CleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// CountWords counts whitespace separated tokens that contain at least one letter or digit
func CountWords(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		if strings.IndexFunc(w, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}

// TruncateText truncates text to a maximum length, preserving word boundaries
func TruncateText(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}

	truncated := text[:maxLength]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}

// NormalizeURL strips trailing slashes so "https://x.com/a/" and "https://x.com/a" compare equal.
// Nothing else about the URL is touched.
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// URLPath returns the path plus query of a URL, "/" when it cannot be parsed
func URLPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// CountSyllables estimates english syllables by counting vowel groups
func CountSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }))
	if word == "" {
		return 0
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	// silent trailing e ("make"), but not "le" endings ("table")
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// FleschReadingEase scores text readability; ok is false when the text has no words
func FleschReadingEase(text string) (score float64, ok bool) {
	words := strings.Fields(text)
	wordCount := 0
	syllables := 0
	for _, w := range words {
		s := CountSyllables(w)
		if s == 0 {
			continue
		}
		wordCount++
		syllables += s
	}
	if wordCount == 0 {
		return 0, false
	}

	sentences := len(sentenceRe.FindAllString(text, -1))
	if sentences == 0 {
		sentences = 1
	}

	score = 206.835 - 1.015*(float64(wordCount)/float64(sentences)) - 84.6*(float64(syllables)/float64(wordCount))
	return score, true
}
