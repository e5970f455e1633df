package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amosWeiskopf/seosession/internal/metrics"
	"github.com/amosWeiskopf/seosession/internal/models"
	"github.com/amosWeiskopf/seosession/pkg/extractor"
	"github.com/amosWeiskopf/seosession/pkg/ioformats"
	"github.com/amosWeiskopf/seosession/pkg/reporter"
	"github.com/amosWeiskopf/seosession/pkg/session"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [EVENTS]",
	Short: "Ingest an NDJSON crawl event file and report SEO issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.newSession()
		if err != nil {
			return err
		}
		if err := ingestPath(cmd.Context(), s, args[0], a.logger); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		return renderIssues(cmd, s, format, output)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [EVENTS]",
	Short: "Ingest crawl events and write the deduplicated corpus as NDJSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.newSession()
		if err != nil {
			return err
		}
		if err := ingestPath(cmd.Context(), s, args[0], a.logger); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		view := s.View()
		var buf bytes.Buffer
		if err := ioformats.WriteNDJSON(&buf, view.Pages); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		a.logger.Info("Snapshot complete", "pages", len(view.Pages), "crawled", view.Progress.Crawled, "total", view.Progress.Total)
		return writeOutput(cmd, output, string(bytes.TrimRight(buf.Bytes(), "\n")))
	},
}

var queriesCmd = &cobra.Command{
	Use:   "queries [RESPONSES]",
	Short: "Aggregate query matcher responses per URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		urls, _ := cmd.Flags().GetStringSlice("url")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.newSession()
		if err != nil {
			return err
		}
		responses, err := ioformats.ReadQueryResponsesFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read query responses: %w", err)
		}
		for _, resp := range responses {
			s.ApplyQueryMatches(resp)
		}

		if len(urls) == 0 {
			urls = s.QueryURLs()
		}
		results := make([]models.AggregatedQueryResult, 0, len(urls))
		for _, u := range urls {
			results = append(results, s.GetAggregatedQuery(u))
		}

		out, err := reporter.New().GenerateQueryReport(results, format)
		if err != nil {
			return err
		}
		return writeOutput(cmd, output, out)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [HTML_FILE]",
	Short: "Derive a page record from a saved HTML document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pageURL, _ := cmd.Flags().GetString("url")
		status, _ := cmd.Flags().GetInt("status")
		contentType, _ := cmd.Flags().GetString("content-type")
		responseTime, _ := cmd.Flags().GetDuration("response-time")
		output, _ := cmd.Flags().GetString("output")

		body, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read html: %w", err)
		}
		record, err := extractor.New().Extract(pageURL, body, extractor.FetchInfo{
			StatusCode:   status,
			ContentType:  contentType,
			ResponseTime: responseTime,
		})
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return writeOutput(cmd, output, string(data))
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Ingest a crawl event stream from stdin until EOF or signal, then report issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			a.cfg.Metrics.Enabled = true
			a.cfg.Metrics.Address = addr
		}
		if a.cfg.Metrics.Enabled {
			go func() {
				a.logger.Info("Serving metrics", "address", a.cfg.Metrics.Address)
				if err := metrics.ExposeMetrics(cmd.Context(), a.cfg.Metrics.Address); err != nil {
					a.logger.Error("Metrics server failed", "error", err)
				}
			}()
		}

		s, err := a.newSession()
		if err != nil {
			return err
		}
		start := time.Now()
		err = ingest(cmd.Context(), s, cmd.InOrStdin(), a.logger)
		switch {
		case err == nil:
		case errors.Is(err, cmd.Context().Err()):
			a.logger.Info("Interrupted, reporting on events queued before the signal")
		default:
			return fmt.Errorf("ingest failed: %w", err)
		}

		progress := s.GetProgress()
		a.logger.Info("Stream finished", "crawled", progress.Crawled, "total", progress.Total, "duration", time.Since(start))
		return renderIssues(cmd, s, format, output)
	},
}

func renderIssues(cmd *cobra.Command, s *session.Session, format, output string) error {
	summary := s.Classify().Summary()
	report, err := reporter.New().GenerateReport(&summary, format)
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}
	return writeOutput(cmd, output, report)
}

func init() {
	classifyCmd.Flags().String("format", "json", "Report format (json, html, markdown)")
	classifyCmd.Flags().String("output", "", "Output file for the report")

	snapshotCmd.Flags().String("output", "", "Output file for the NDJSON corpus")

	queriesCmd.Flags().String("format", "json", "Output format (json, markdown)")
	queriesCmd.Flags().String("output", "", "Output file for the aggregations")
	queriesCmd.Flags().StringSlice("url", nil, "Only report these URLs (unknown URLs report no data)")

	extractCmd.Flags().String("url", "", "URL the document was fetched from")
	extractCmd.Flags().Int("status", 200, "HTTP status code of the response")
	extractCmd.Flags().String("content-type", "text/html", "Content-Type header of the response")
	extractCmd.Flags().Duration("response-time", 0, "Measured response time")
	extractCmd.Flags().String("output", "", "Output file for the page record")
	_ = extractCmd.MarkFlagRequired("url")

	serveCmd.Flags().String("format", "json", "Report format (json, html, markdown)")
	serveCmd.Flags().String("output", "", "Output file for the final report")
	serveCmd.Flags().String("metrics-addr", "", "Expose prometheus metrics on this address")
}
