package journal

import (
	"context"
	"drivescore/internal/score"
	"encoding/json"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// TimeLayout of the "time" field of every journal line.
const TimeLayout = "2006-01-02 15:04:05"

// Journal durably records event log entries of every session.
type Journal interface {
	// Observer returns the aggregator observer of one session.
	// A nil observer means entries are discarded.
	Observer(session string) score.Observer
	Close() error
}

// lineHandler is a slog handler writing each record as one JSON object with
// a formatted "time" field, no level and every attribute at the top level.
type lineHandler struct {
	out   io.Writer
	attrs []slog.Attr
}

func newLineHandler(out io.Writer) *lineHandler {
	return &lineHandler{out: out}
}

// Handle serializes a record as a single JSONL line.
func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs()+len(h.attrs)+1)
	fields["time"] = r.Time.Format(TimeLayout)

	add := func(a slog.Attr) bool {
		if a.Key != "" && a.Value.Any() != nil {
			fields[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	_, err = h.out.Write(append(data, '\n'))
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &lineHandler{out: h.out, attrs: merged}
}

// WithGroup is not supported; groups are flattened.
func (h *lineHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// FileJournal writes entries to a JSONL file rotated and compressed by lumberjack.
// It is safe for concurrent use.
type FileJournal struct {
	lumberjack *lumberjack.Logger
	handler    slog.Handler
}

// NewFileJournal creates a journal.
// Parameters:
//   - file: path of the active journal file
//   - maxSize: size in MB that triggers rotation
//   - maxBackups: number of rotated files kept
func NewFileJournal(file string, maxSize, maxBackups int) *FileJournal {
	j := FileJournal{
		lumberjack: &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		},
	}
	j.handler = newLineHandler(j.lumberjack)
	return &j
}

// Observer returns an observer writing the session's entries, each tagged
// with the session token.
func (j *FileJournal) Observer(session string) score.Observer {
	handler := j.handler.WithAttrs([]slog.Attr{slog.String("session", session)})
	return func(e score.EventLogEntry) {
		writeEntry(handler, session, e)
	}
}

// writeEntry writes one entry stamped with the entry's own time.
// Write failures are reported through the default logger.
func writeEntry(handler slog.Handler, session string, e score.EventLogEntry) {
	r := slog.NewRecord(e.Time, slog.LevelInfo, "", 0)
	r.AddAttrs(
		slog.String("category", e.Category),
		slog.String("subject", e.Subject),
		slog.String("value", e.Value),
		slog.Int("delta", e.DeltaPoints),
	)

	if err := handler.Handle(context.Background(), r); err != nil {
		slog.Warn("Unable to write journal entry", "session", session, "error", err)
	}
}

// Close closes the active file.
func (j *FileJournal) Close() error {
	return j.lumberjack.Close()
}

// Nop discards every entry; used when no journal file is configured.
type Nop struct{}

func (Nop) Observer(string) score.Observer { return nil }

func (Nop) Close() error { return nil }
