package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.com/a/", "https://x.com/a"},
		{"https://x.com/a", "https://x.com/a"},
		{"https://x.com/", "https://x.com"},
		{"https://X.com/A#frag", "https://X.com/A#frag"},
		{" https://x.com/a// ", "https://x.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 3, CountWords("one  two\nthree"))
	assert.Equal(t, 2, CountWords("hello - world"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a \n\t b   c "))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "hello...", TruncateText("hello world", 8))
}

func TestURLPath(t *testing.T) {
	assert.Equal(t, "/private/page", URLPath("https://example.com/private/page"))
	assert.Equal(t, "/", URLPath("https://example.com"))
	assert.Equal(t, "/search?q=go", URLPath("https://example.com/search?q=go"))
}

func TestCountSyllables(t *testing.T) {
	tests := map[string]int{
		"cat":     1,
		"make":    1,
		"table":   2,
		"reading": 2,
		"":        0,
		"rhythm":  1,
	}
	for word, want := range tests {
		assert.Equal(t, want, CountSyllables(word), word)
	}
}

func TestFleschReadingEase(t *testing.T) {
	_, ok := FleschReadingEase("   ")
	assert.False(t, ok)

	easy, ok := FleschReadingEase("The cat sat. The dog ran.")
	assert.True(t, ok)
	hard, ok := FleschReadingEase("Institutional considerations necessitate comprehensive organizational reconfiguration.")
	assert.True(t, ok)
	assert.Greater(t, easy, hard)
}
