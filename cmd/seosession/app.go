package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/errgroup"

	"github.com/amosWeiskopf/seosession/internal/config"
	"github.com/amosWeiskopf/seosession/internal/logging"
	"github.com/amosWeiskopf/seosession/internal/metrics"
	"github.com/amosWeiskopf/seosession/internal/models"
	"github.com/amosWeiskopf/seosession/pkg/analyzer"
	"github.com/amosWeiskopf/seosession/pkg/ioformats"
	"github.com/amosWeiskopf/seosession/pkg/session"
)

// app carries what every command needs once flags are parsed
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func setup(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return &app{cfg: cfg, logger: logger, closer: closer}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

// buildAnalyzer returns the default rule set, extended with the robots.txt rule when one is configured
func buildAnalyzer(cfg config.AnalyzerConfig, logger *slog.Logger) (*analyzer.Analyzer, error) {
	rules := analyzer.DefaultRules()
	if cfg.RobotsTxt != "" {
		data, err := os.ReadFile(cfg.RobotsTxt)
		if err != nil {
			return nil, fmt.Errorf("failed to read robots.txt: %w", err)
		}
		robots, err := robotstxt.FromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
		}
		rules = append(rules, analyzer.RobotsRule(robots, cfg.RobotsAgent))
	}
	return analyzer.NewWithConfig(&analyzer.Config{Rules: rules, Logger: logger}), nil
}

// newSession builds and starts a session from configuration
func (a *app) newSession() (*session.Session, error) {
	az, err := buildAnalyzer(a.cfg.Analyzer, a.logger)
	if err != nil {
		return nil, err
	}
	sessionType, ok := models.ParseSessionType(a.cfg.Session.Type)
	if !ok {
		return nil, fmt.Errorf("unknown session type %q", a.cfg.Session.Type)
	}

	s := session.New(
		session.WithQueueSize(a.cfg.Session.QueueSize),
		session.WithProgressInterval(a.cfg.Session.ProgressLogInterval),
		session.WithTopQueries(a.cfg.Query.TopQueries),
		session.WithAnalyzer(az),
		session.WithLogger(a.logger),
	)
	s.Start(sessionType)
	return s, nil
}

// ingest streams NDJSON events from r into s and returns once every event is applied.
// Malformed lines are logged, counted as rejected records and skipped.
// The reader is left behind on cancellation since a blocked stdin read cannot be interrupted.
func ingest(ctx context.Context, s *session.Session, r io.Reader, logger *slog.Logger) error {
	gen := s.Generation()
	readErr := make(chan error, 1)
	go func() {
		readErr <- ioformats.StreamEvents(ctx, r, func(ev models.CrawlEvent) error {
			return s.PushGen(ctx, gen, ev)
		}, func(le *ioformats.LineError) {
			metrics.RecordsRejected.Inc()
			logger.Warn("Skipped malformed crawl event", "line", le.Line, "error", le.Err)
		})
		s.Close()
	}()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gCtx)
	})
	g.Go(func() error {
		select {
		case err := <-readErr:
			return err
		case <-gCtx.Done():
			return gCtx.Err()
		}
	})
	return g.Wait()
}

// ingestPath opens path ("-" for stdin) and ingests it
func ingestPath(ctx context.Context, s *session.Session, path string, logger *slog.Logger) error {
	f, err := ioformats.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open events: %w", err)
	}
	defer f.Close()
	return ingest(ctx, s, f, logger)
}

// writeOutput writes content to output, or stdout when output is empty
func writeOutput(cmd *cobra.Command, output, content string) error {
	if output == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Output saved to %s\n", output)
	return nil
}
