package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Span times one operation, such as a request or an export phase. Spans are
// only logged; nothing is exported to a collector.
type Span struct {
	TraceID   string
	SpanID    string
	ParentID  string
	Operation string
	Start     time.Time
	Duration  time.Duration
	Tags      map[string]string
	Err       error
}

type spanContextKey struct{}

// StartSpan begins a span, joining the trace of any span already in ctx.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	span := &Span{
		SpanID:    newID(),
		Operation: operation,
		Start:     time.Now(),
		Tags:      make(map[string]string),
	}
	if parent := GetSpan(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = newID()
	}
	return context.WithValue(ctx, spanContextKey{}, span), span
}

func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

func (s *Span) SetError(err error) {
	s.Err = err
}

func (s *Span) Failed() bool {
	return s.Err != nil
}

// End records the duration and logs the span at debug level, or at error
// level when it failed.
func (s *Span) End(logger *slog.Logger) {
	s.Duration = time.Since(s.Start)

	level := slog.LevelDebug
	if s.Failed() {
		level = slog.LevelError
	}
	if !logger.Enabled(context.Background(), level) {
		return
	}

	tags := make([]any, 0, len(s.Tags))
	for k, v := range s.Tags {
		tags = append(tags, slog.String(k, v))
	}
	attrs := []any{
		"operation", s.Operation,
		"span_id", s.SpanID,
		"duration", s.Duration,
		slog.Group("tags", tags...),
	}
	if s.ParentID != "" {
		attrs = append(attrs, "parent_id", s.ParentID)
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	logger.Log(context.Background(), level, "span finished", attrs...)
}

func GetSpan(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey{}).(*Span); ok {
		return span
	}
	return nil
}

func newID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
