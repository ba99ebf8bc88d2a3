package frame

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/xitongsys/parquet-go/parquet"
	"go.uber.org/zap"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

// Session is the engine handle. It owns the storage routing, the worker
// limit for parallel I/O, the scratch directory for Parquet files, the time
// zone used for local timestamps and the run's I/O counters. It is created
// once and passed explicitly to everything that reads or writes.
type Session struct {
	stores      *storage.Mux
	log         *zap.Logger
	workers     int
	tempRoot    string
	tempDir     string
	location    *time.Location
	compression parquet.CompressionCodec
	writerProcs int64
	mem         memory.Allocator

	udfMu sync.RWMutex
	udfs  map[string]udfEntry

	metricsMu sync.Mutex
	metrics   Metrics
}

type udfEntry struct {
	ret Type
	fn  UDFFunc
}

// Metrics are the I/O counters of a session.
type Metrics struct {
	ObjectsRead  int64 `json:"objects_read"`
	BytesRead    int64 `json:"bytes_read"`
	RecordsRead  int64 `json:"records_read"`
	CorruptValue int64 `json:"corrupt_values"`
	FilesWritten int64 `json:"files_written"`
	BytesWritten int64 `json:"bytes_written"`
	RowsWritten  int64 `json:"rows_written"`
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithStore routes paths of the given kind to st.
func WithStore(kind string, st storage.Store) Option {
	return func(s *Session) { s.stores.Register(kind, st) }
}

// WithWorkers bounds concurrent object reads and uploads.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTempDir sets where the session creates its scratch directory.
func WithTempDir(dir string) Option {
	return func(s *Session) { s.tempRoot = dir }
}

// WithLocation sets the zone local timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Session) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithAllocator sets the allocator for the Arrow buffers built while
// decoding input.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Session) {
		if mem != nil {
			s.mem = mem
		}
	}
}

func WithCompression(c parquet.CompressionCodec) Option {
	return func(s *Session) { s.compression = c }
}

// NewSession builds a session. A LocalStore is always registered for
// local paths; S3 needs an explicit WithStore.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		stores:      storage.NewMux(),
		log:         zap.NewNop(),
		workers:     runtime.NumCPU() * 2,
		location:    time.Local,
		compression: parquet.CompressionCodec_SNAPPY,
		writerProcs: 4,
		mem:         memory.NewGoAllocator(),
		udfs:        make(map[string]udfEntry),
	}
	s.stores.Register(storage.KindLocal, storage.NewLocalStore())
	for _, opt := range opts {
		opt(s)
	}

	if s.tempRoot != "" {
		if err := os.MkdirAll(s.tempRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.tempRoot, "parquet_temp_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	s.tempDir = dir

	s.log.Debug("session started",
		zap.Int("workers", s.workers),
		zap.String("temp_dir", s.tempDir),
		zap.String("timezone", s.location.String()),
		zap.String("compression", s.compression.String()))
	return s, nil
}

// Close removes the scratch directory.
func (s *Session) Close() error {
	s.log.Debug("cleaning up temp directory", zap.String("dir", s.tempDir))
	if err := os.RemoveAll(s.tempDir); err != nil {
		return fmt.Errorf("failed to clean up temp directory %s: %w", s.tempDir, err)
	}
	return nil
}

func (s *Session) Logger() *zap.Logger {
	return s.log
}

func (s *Session) Location() *time.Location {
	return s.location
}

// Store returns the store serving p.
func (s *Session) Store(p storage.Path) (storage.Store, error) {
	return s.stores.Resolve(p)
}

// RegisterUDF makes fn callable by name through CallUDF. Registering a
// name twice replaces the earlier function.
func (s *Session) RegisterUDF(name string, ret Type, fn UDFFunc) {
	s.udfMu.Lock()
	s.udfs[name] = udfEntry{ret: ret, fn: fn}
	s.udfMu.Unlock()
}

// CallUDF applies the function registered as name to arg.
func (s *Session) CallUDF(name string, arg Column) (Column, error) {
	s.udfMu.RLock()
	e, ok := s.udfs[name]
	s.udfMu.RUnlock()
	if !ok {
		return Column{}, fmt.Errorf("%w: %q", ErrUDFNotRegistered, name)
	}
	return UDF(name, e.ret, e.fn)(arg), nil
}

// Metrics returns a snapshot of the I/O counters.
func (s *Session) Metrics() Metrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

func (s *Session) record(fn func(m *Metrics)) {
	s.metricsMu.Lock()
	fn(&s.metrics)
	s.metricsMu.Unlock()
}
