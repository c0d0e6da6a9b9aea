package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
)

const (
	batchSize     = 50
	flushInterval = 5 * time.Second
)

// LogWriter persists a batch of log entries.
type LogWriter interface {
	WriteLogs(ctx context.Context, entries []models.SystemLog) error
}

type GormLogWriter struct {
	db *gorm.DB
}

func NewGormLogWriter(db *gorm.DB) *GormLogWriter {
	return &GormLogWriter{db: db}
}

func (w *GormLogWriter) WriteLogs(ctx context.Context, entries []models.SystemLog) error {
	return w.db.WithContext(ctx).CreateInBatches(entries, batchSize).Error
}

// sink is the buffer shared by a DBHandler and every handler derived from it.
type sink struct {
	w      LogWriter
	mu     sync.Mutex
	buffer []models.SystemLog
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// DBHandler buffers ERROR+ records and writes them in batches, on a timer or
// once the buffer fills. Well-known attrs (request_id, user_id, action,
// provider, error) get their own columns; everything else lands in Extra.
type DBHandler struct {
	sink  *sink
	attrs []slog.Attr
}

func NewDBHandler(w LogWriter) *DBHandler {
	return newDBHandler(w, flushInterval)
}

func newDBHandler(w LogWriter, interval time.Duration) *DBHandler {
	s := &sink{
		w:      w,
		buffer: make([]models.SystemLog, 0, batchSize),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return &DBHandler{sink: s}
}

func (s *sink) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *sink) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]models.SystemLog, 0, batchSize)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.w.WriteLogs(ctx, batch); err != nil {
		// WARN stays below this handler's threshold, so it cannot loop back here.
		slog.Warn("failed to flush system logs", "error", err, "count", len(batch))
	}
}

// Stop flushes what is buffered and ends the background loop.
func (h *DBHandler) Stop() {
	h.sink.ticker.Stop()
	close(h.sink.done)
	h.sink.wg.Wait()
}

func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *DBHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "request_id":
			entry.RequestID = a.Value.String()
		case "user_id":
			s := a.Value.String()
			entry.UserID = &s
		case "action":
			entry.Action = a.Value.String()
		case "provider":
			entry.Provider = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	h.sink.mu.Lock()
	h.sink.buffer = append(h.sink.buffer, entry)
	full := len(h.sink.buffer) >= batchSize
	h.sink.mu.Unlock()

	if full {
		go h.sink.flush()
	}
	return nil
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &DBHandler{sink: h.sink, attrs: merged}
}

// WithGroup is flattened: the table has no notion of nested attrs.
func (h *DBHandler) WithGroup(string) slog.Handler {
	return h
}
