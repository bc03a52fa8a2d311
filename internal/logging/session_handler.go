package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// newJSONHandler writes one object per line with a short "ts" key, lower-case
// levels, and file:line sources.
func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			return slog.String("ts", attr.Value.Time().UTC().Format(jsonTimeLayout))
		}
		attr.Key = "ts"
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

// sessionTagHandler stamps every record with the session id before passing it
// on. It sits only in front of the session file, so the console stays terse.
type sessionTagHandler struct {
	next slog.Handler
	tag  slog.Attr
}

func (h sessionTagHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h sessionTagHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(h.tag)
	return h.next.Handle(ctx, record)
}

func (h sessionTagHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return sessionTagHandler{next: h.next.WithAttrs(attrs), tag: h.tag}
}

func (h sessionTagHandler) WithGroup(name string) slog.Handler {
	return sessionTagHandler{next: h.next.WithGroup(name), tag: h.tag}
}

// NewSessionLogger returns a logger that writes to base and additionally
// records every line as JSON into w, tagged with the session id. The session
// file captures debug output regardless of the console level.
func NewSessionLogger(base *slog.Logger, sessionID string, w io.Writer) *slog.Logger {
	if w == nil {
		if base == nil {
			return NewNop()
		}
		return base
	}
	file := sessionTagHandler{
		next: newJSONHandler(w, slog.LevelDebug, false),
		tag:  slog.String(FieldSessionID, sessionID),
	}
	return TeeLogger(base, file)
}
