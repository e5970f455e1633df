package ioformats

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/seosession/internal/models"
)

const eventLines = `{"page_record":{"url":"https://x.com/a","word_count":120},"crawled_count":1,"total_count":2}

{"page_record":{"url":"https://x.com/b","images":[{"src":"/i.png","alt":""}]},"crawled_count":2,"total_count":2}
`

func TestReadEvents(t *testing.T) {
	events, err := ReadEvents(strings.NewReader(eventLines))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "https://x.com/a", events[0].Page.URL)
	require.NotNil(t, events[0].Page.WordCount)
	assert.Equal(t, 120, *events[0].Page.WordCount)
	assert.Equal(t, 2, events[1].CrawledCount)
	assert.Equal(t, 2, events[1].TotalCount)
	require.Len(t, events[1].Page.Images, 1)
	assert.Nil(t, events[1].Page.WordCount)
}

func TestReadEventsSkipsMalformedLines(t *testing.T) {
	input := "{not json}\n" + eventLines + "[1,2]\n" +
		`{"page_record":{"url":"https://x.com/c"},"crawled_count":3,"total_count":3}` + "\n"
	events, err := ReadEvents(strings.NewReader(input))

	require.Len(t, events, 3)
	assert.Equal(t, "https://x.com/c", events[2].Page.URL)

	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Line)
	assert.Contains(t, err.Error(), "line 5")
}

func TestStreamEventsReportsSkippedLines(t *testing.T) {
	var skipped []int
	count := 0
	err := StreamEvents(context.Background(), strings.NewReader("{oops\n"+eventLines), func(models.CrawlEvent) error {
		count++
		return nil
	}, func(le *LineError) {
		skipped = append(skipped, le.Line)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []int{1}, skipped)

	count = 0
	require.NoError(t, StreamEvents(context.Background(), strings.NewReader("{oops\n"+eventLines), func(models.CrawlEvent) error {
		count++
		return nil
	}, nil))
	assert.Equal(t, 2, count)
}

func TestStreamEventsStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := StreamEvents(context.Background(), strings.NewReader(eventLines), func(models.CrawlEvent) error {
		calls++
		return stop
	}, nil)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStreamEventsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := StreamEvents(ctx, strings.NewReader(eventLines), func(models.CrawlEvent) error { return nil }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadEventsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(eventLines), 0o600))

	events, err := ReadEventsFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = ReadEventsFile(filepath.Join(t.TempDir(), "missing.ndjson"))
	assert.Error(t, err)
}

func TestReadQueryResponses(t *testing.T) {
	tests := []struct {
		name  string
		input string
		urls  []string
	}{
		{
			name:  "single object",
			input: `{"url":"https://x.com/a","matches":[{"query":"q","clicks":1,"impressions":10,"position":3}]}`,
			urls:  []string{"https://x.com/a"},
		},
		{
			name:  "array",
			input: "  \n[{\"url\":\"https://x.com/a\",\"matches\":[]},{\"url\":\"https://x.com/b\",\"matches\":[]}]",
			urls:  []string{"https://x.com/a", "https://x.com/b"},
		},
		{
			name:  "ndjson",
			input: "{\"url\":\"https://x.com/a\",\"matches\":[]}\n{\"url\":\"https://x.com/b\",\"matches\":[]}\n",
			urls:  []string{"https://x.com/a", "https://x.com/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadQueryResponses(strings.NewReader(tt.input))
			require.NoError(t, err)
			var urls []string
			for _, r := range got {
				urls = append(urls, r.URL)
			}
			assert.Equal(t, tt.urls, urls)
		})
	}
}

func TestReadQueryResponsesErrors(t *testing.T) {
	_, err := ReadQueryResponses(strings.NewReader("   "))
	assert.Error(t, err)

	_, err = ReadQueryResponses(strings.NewReader(`{"url":"a"} {oops`))
	assert.Error(t, err)

	_, err = ReadQueryResponses(strings.NewReader(`[{"url":"a"}`))
	assert.Error(t, err)
}

func TestWriteNDJSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteNDJSON(&buf, []models.Progress{{Crawled: 1, Total: 2}, {Crawled: 2, Total: 2}})
	require.NoError(t, err)
	assert.Equal(t, "{\"crawled\":1,\"total\":2}\n{\"crawled\":2,\"total\":2}\n", buf.String())
}
