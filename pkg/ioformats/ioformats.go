// Package ioformats reads crawler events and query matcher responses from files and
// streams, and writes results back as NDJSON.
package ioformats

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amosWeiskopf/seosession/internal/models"
)

// maxLineBytes bounds a single NDJSON line; page records with many images get long
const maxLineBytes = 16 << 20

// LineError reports a malformed NDJSON line
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Open opens path for reading; "-" means stdin
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// StreamEvents decodes one CrawlEvent per line and hands it to fn. Blank lines are
// skipped. A malformed line is passed to skip, when set, and reading continues.
// Decoding stops on a read error, an fn error or ctx cancellation.
func StreamEvents(ctx context.Context, r io.Reader, fn func(models.CrawlEvent) error, skip func(*LineError)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev models.CrawlEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			if skip != nil {
				skip(&LineError{Line: line, Err: err})
			}
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadEvents collects every well-formed event of an NDJSON stream. Malformed lines are
// returned joined in the error alongside the events that did decode.
func ReadEvents(r io.Reader) ([]models.CrawlEvent, error) {
	var out []models.CrawlEvent
	var bad []error
	err := StreamEvents(context.Background(), r, func(ev models.CrawlEvent) error {
		out = append(out, ev)
		return nil
	}, func(le *LineError) {
		bad = append(bad, le)
	})
	if err != nil {
		return out, err
	}
	return out, errors.Join(bad...)
}

// ReadEventsFile reads an NDJSON event file
func ReadEventsFile(path string) ([]models.CrawlEvent, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEvents(f)
}

// ReadQueryResponses accepts a JSON array of responses, a single response object
// or a stream of concatenated objects (NDJSON included).
func ReadQueryResponses(r io.Reader) ([]models.QueryMatchResponse, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no query responses found")
		}
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var out []models.QueryMatchResponse
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode query responses: %w", err)
		}
		return out, nil
	}

	var out []models.QueryMatchResponse
	for {
		var resp models.QueryMatchResponse
		err := dec.Decode(&resp)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode query response %d: %w", len(out)+1, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// ReadQueryResponsesFile reads query matcher responses from path
func ReadQueryResponsesFile(path string) ([]models.QueryMatchResponse, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadQueryResponses(f)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if strings.IndexByte(" \t\r\n", b) < 0 {
			return b, br.UnreadByte()
		}
	}
}

// WriteNDJSON writes any JSON-marshalable items as NDJSON to w.
func WriteNDJSON[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}
