// Package metrics holds the prometheus collectors shared by the session, analyzer and query packages.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seosession_records_ingested_total",
			Help: "Total number of page records accepted into the corpus.",
		},
	)
	RecordsDuplicate = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seosession_records_duplicate_total",
			Help: "Total number of page records ignored because their URL was already stored.",
		},
	)
	RecordsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seosession_records_rejected_total",
			Help: "Total number of malformed page records rejected by validation.",
		},
	)
	StaleBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seosession_stale_batches_total",
			Help: "Total number of batches discarded because their session was cleared.",
		},
	)
	RuleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seosession_rule_failures_total",
			Help: "Total number of issue rule evaluations that failed, labeled by rule.",
		},
		[]string{"rule"},
	)
	CorpusPages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "seosession_corpus_pages",
			Help: "Number of pages in the current session corpus.",
		},
	)
	QueryAggregations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seosession_query_aggregations_total",
			Help: "Total number of query match batches merged, labeled by whether they had data.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(RecordsIngested)
	prometheus.MustRegister(RecordsDuplicate)
	prometheus.MustRegister(RecordsRejected)
	prometheus.MustRegister(StaleBatches)
	prometheus.MustRegister(RuleFailures)
	prometheus.MustRegister(CorpusPages)
	prometheus.MustRegister(QueryAggregations)
}

// ExposeMetrics serves /metrics on addr until ctx is done
func ExposeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Exposing Prometheus metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
