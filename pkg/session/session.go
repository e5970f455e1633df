// Package session ties the page store, issue analyzer and query aggregator into one
// owned crawl session fed by a bounded event queue.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/seosession/internal/metrics"
	"github.com/amosWeiskopf/seosession/internal/models"
	"github.com/amosWeiskopf/seosession/pkg/analyzer"
	"github.com/amosWeiskopf/seosession/pkg/query"
	"github.com/amosWeiskopf/seosession/pkg/store"
)

// ErrSessionClosed is returned by pushes after Close
var ErrSessionClosed = errors.New("session closed")

const defaultQueueSize = 1024

// batch is a queued write stamped with the generation it was pushed under
type batch struct {
	gen     uint64
	pages   []models.PageRecord
	crawled int
	total   int
}

// Session is the single owner of crawl state. Writes are serialized through Run;
// reads go straight to the store and observe immutable snapshots.
type Session struct {
	store      *store.Store
	aggregator *query.Aggregator
	analyzer   *analyzer.Analyzer
	logger     *slog.Logger

	queue     chan batch
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.RWMutex
	sessionType models.SessionType

	progressLog rate.Sometimes
}

type options struct {
	queueSize        int
	topQueries       int
	progressInterval time.Duration
	analyzer         *analyzer.Analyzer
	logger           *slog.Logger
}

// Option configures a Session
type Option func(*options)

// WithQueueSize bounds the number of pending events
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithAnalyzer replaces the default issue analyzer
func WithAnalyzer(a *analyzer.Analyzer) Option {
	return func(o *options) { o.analyzer = a }
}

// WithLogger sets the session logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTopQueries sets how many top queries each aggregation keeps
func WithTopQueries(n int) Option {
	return func(o *options) { o.topQueries = n }
}

// WithProgressInterval throttles progress log lines to one per interval
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) { o.progressInterval = d }
}

// New creates a session of type spider. Call Start to begin a typed session.
func New(opts ...Option) *Session {
	o := options{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueSize <= 0 {
		o.queueSize = defaultQueueSize
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.analyzer == nil {
		o.analyzer = analyzer.NewWithConfig(&analyzer.Config{Logger: o.logger})
	}

	s := &Session{
		store:       store.New(),
		aggregator:  query.NewAggregator(o.topQueries),
		analyzer:    o.analyzer,
		logger:      o.logger,
		queue:       make(chan batch, o.queueSize),
		done:        make(chan struct{}),
		sessionType: models.SessionSpider,
	}
	if o.progressInterval > 0 {
		s.progressLog = rate.Sometimes{First: 1, Interval: o.progressInterval}
	} else {
		s.progressLog = rate.Sometimes{First: 1, Every: 100}
	}
	return s
}

// Start abandons the current session and begins a new one of the given type.
// The returned generation identifies the new session for PushGen.
func (s *Session) Start(t models.SessionType) uint64 {
	s.mu.Lock()
	s.sessionType = t
	s.mu.Unlock()

	gen := s.Clear()
	s.logger.Info("Crawl session started", "type", t, "generation", gen)
	return gen
}

// Clear abandons the current session. Events pushed before the call, or later with an
// earlier generation, are discarded.
func (s *Session) Clear() uint64 {
	gen := s.store.Clear()
	s.aggregator.Reset()
	s.logger.Debug("Crawl session cleared", "generation", gen)
	return gen
}

// SessionType returns the mode of the current session
func (s *Session) SessionType() models.SessionType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionType
}

// Generation returns the current session marker
func (s *Session) Generation() uint64 {
	return s.store.Generation()
}

// Push enqueues a crawler event for the current session. It blocks while the queue is full.
func (s *Session) Push(ev models.CrawlEvent) error {
	return s.PushContext(context.Background(), ev)
}

// PushContext enqueues a crawler event for the current session, giving up when ctx is done
func (s *Session) PushContext(ctx context.Context, ev models.CrawlEvent) error {
	return s.PushGen(ctx, s.store.Generation(), ev)
}

// PushGen enqueues an event for the session identified by gen, as returned by Start,
// Clear or Generation. Events for an abandoned session are dropped when applied.
func (s *Session) PushGen(ctx context.Context, gen uint64, ev models.CrawlEvent) error {
	return s.enqueue(ctx, batch{
		gen:     gen,
		pages:   []models.PageRecord{ev.Page},
		crawled: ev.CrawledCount,
		total:   ev.TotalCount,
	})
}

// PushBatch enqueues several records followed by one progress update for the current session
func (s *Session) PushBatch(ctx context.Context, pages []models.PageRecord, crawled, total int) error {
	return s.PushBatchGen(ctx, s.store.Generation(), pages, crawled, total)
}

// PushBatchGen is PushBatch for the session identified by gen
func (s *Session) PushBatchGen(ctx context.Context, gen uint64, pages []models.PageRecord, crawled, total int) error {
	return s.enqueue(ctx, batch{
		gen:     gen,
		pages:   pages,
		crawled: crawled,
		total:   total,
	})
}

func (s *Session) enqueue(ctx context.Context, b batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.queue <- b:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events. Run drains what is already queued and returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Run is the single ingestion loop. It returns nil after Close once the queue is
// drained. When ctx is cancelled first, events already queued are applied and
// ctx.Err() is returned.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case b := <-s.queue:
			s.applyBatch(b)
		case <-s.done:
			s.drain(-1)
			return nil
		case <-ctx.Done():
			s.drain(len(s.queue))
			return ctx.Err()
		}
	}
}

// drain applies up to n queued batches without blocking; n < 0 means until empty
func (s *Session) drain(n int) {
	for ; n != 0; n-- {
		select {
		case b := <-s.queue:
			s.applyBatch(b)
		default:
			return
		}
	}
}

// IngestBatch applies records synchronously to the current generation, bypassing the queue
func (s *Session) IngestBatch(pages []models.PageRecord, crawled, total int) store.BatchResult {
	return s.applyBatch(batch{gen: s.store.Generation(), pages: pages, crawled: crawled, total: total})
}

func (s *Session) applyBatch(b batch) store.BatchResult {
	res := s.store.IngestBatch(b.gen, b.pages, b.crawled, b.total)
	if res.Stale {
		metrics.StaleBatches.Inc()
		s.logger.Debug("Discarded stale batch", "generation", b.gen, "records", len(b.pages))
		return res
	}

	metrics.RecordsIngested.Add(float64(res.Accepted))
	metrics.RecordsDuplicate.Add(float64(res.Duplicates))
	metrics.RecordsRejected.Add(float64(len(res.Rejected)))
	for _, err := range res.Rejected {
		s.logger.Warn("Rejected page record", "error", err)
	}

	s.progressLog.Do(func() {
		s.logger.Info("Crawl progress", "crawled", res.Progress.Crawled, "total", res.Progress.Total, "pages", res.Pages)
	})
	return res
}

// GetSnapshot returns the ordered corpus
func (s *Session) GetSnapshot() []models.PageRecord {
	return s.store.Snapshot()
}

// View returns the corpus and progress read together
func (s *Session) View() store.View {
	return s.store.View()
}

// GetProgress returns the crawler supplied counters
func (s *Session) GetProgress() models.Progress {
	return s.store.Progress()
}

// Classify runs the issue rules over a snapshot of the corpus
func (s *Session) Classify() *analyzer.Report {
	return s.analyzer.Classify(s.store.Snapshot())
}

// ApplyQueryMatches merges a matcher response, replacing the previous result for its URL
func (s *Session) ApplyQueryMatches(resp models.QueryMatchResponse) models.AggregatedQueryResult {
	return s.aggregator.Apply(resp)
}

// GetAggregatedQuery returns the latest aggregation for url. A URL that was never
// fetched yields a no-data result.
func (s *Session) GetAggregatedQuery(url string) models.AggregatedQueryResult {
	if r, ok := s.aggregator.Get(url); ok {
		return r
	}
	return query.MergeMatches(url, nil)
}

// QueryURLs lists the URLs with a stored aggregation
func (s *Session) QueryURLs() []string {
	return s.aggregator.URLs()
}
