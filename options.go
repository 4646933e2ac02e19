package barq

import "log/slog"

// IndexType selects the vector index implementation, fixed for the
// lifetime of an open database.
type IndexType int

const (
	// IndexBruteForce is an exact linear-scan index.
	IndexBruteForce IndexType = iota
	// IndexProximityGraph is the HNSW-family approximate index.
	IndexProximityGraph
)

type config struct {
	indexType          IndexType
	syncWrites         bool
	asyncIndexing      bool
	hnswM              int
	hnswEfConstruction int
	hnswEfSearch       int
	asyncQueueCapacity int
	logger             *Logger
	metrics            MetricsCollector
}

func defaultConfig() config {
	return config{
		indexType:          IndexBruteForce,
		syncWrites:         true,
		asyncIndexing:      false,
		hnswM:              16,
		hnswEfConstruction: 200,
		hnswEfSearch:       0,
		asyncQueueCapacity: 1024,
		logger:             NoopLogger(),
		metrics:            NoopMetricsCollector{},
	}
}

// Option configures Open.
type Option func(*config)

// WithIndexType selects brute-force or proximity-graph vector indexing.
func WithIndexType(t IndexType) Option {
	return func(c *config) { c.indexType = t }
}

// WithSyncWrites controls whether every WAL append fsyncs before the
// mutation is acknowledged.
func WithSyncWrites(sync bool) Option {
	return func(c *config) { c.syncWrites = sync }
}

// WithAsyncIndexing enables the background vector-indexing worker.
// set_embedding still appends to the WAL synchronously; only the vector
// index installation is deferred.
func WithAsyncIndexing(async bool) Option {
	return func(c *config) { c.asyncIndexing = async }
}

// WithHNSWParams sets M and ef_construction for the proximity-graph
// index. Ignored when IndexBruteForce is selected.
func WithHNSWParams(m, efConstruction int) Option {
	return func(c *config) {
		if m > 0 {
			c.hnswM = m
		}
		if efConstruction > 0 {
			c.hnswEfConstruction = efConstruction
		}
	}
}

// WithHNSWEfSearch fixes ef_search. Zero (the default) derives it per
// query as max(k, 50).
func WithHNSWEfSearch(ef int) Option {
	return func(c *config) { c.hnswEfSearch = ef }
}

// WithAsyncQueueCapacity sets the bounded channel capacity between
// set_embedding and the background indexing worker.
func WithAsyncQueueCapacity(capacity int) Option {
	return func(c *config) {
		if capacity > 0 {
			c.asyncQueueCapacity = capacity
		}
	}
}

// WithLogger configures structured logging. Pass nil to disable it.
func WithLogger(logger *Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = NoopLogger()
		}
		c.logger = logger
	}
}

// WithLogLevel is a convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(c *config) { c.logger = NewTextLogger(level) }
}

// WithMetricsCollector configures metrics collection. Pass nil to disable it.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(c *config) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		c.metrics = mc
	}
}

func applyOptions(opts []Option) config {
	c := defaultConfig()
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return c
}
