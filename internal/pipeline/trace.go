package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Stage names as they appear in the trace.
const (
	StageStrategy    = "strategy"
	StageSearch      = "search"
	StageTitleFilter = "title_filter"
	StageAbstracts   = "abstracts"
	StageEnrich      = "enrich"
	StageScore       = "score"
	StageAnalyze     = "analyze"
	StageSynthesize  = "synthesize"
	StageDone        = "done"
)

// TraceEntry is one timestamped event in a request's history.
type TraceEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Stage      string    `json:"stage"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// tracer accumulates the per-request trace and mirrors entries to the
// structured log. Entries are append-only and timestamped in call order.
type tracer struct {
	log     logrus.FieldLogger
	started time.Time
	now     func() time.Time
	entries []TraceEntry
}

func newTracer(log logrus.FieldLogger, now func() time.Time) *tracer {
	if now == nil {
		now = time.Now
	}
	return &tracer{log: log, started: now(), now: now}
}

func (t *tracer) add(stage, level, message string) {
	ts := t.now()
	t.entries = append(t.entries, TraceEntry{
		Timestamp:  ts,
		Stage:      stage,
		Level:      level,
		Message:    message,
		DurationMs: ts.Sub(t.started).Milliseconds(),
	})
	if t.log != nil {
		entry := t.log.WithFields(logrus.Fields{"stage": stage})
		if level == "error" {
			entry.Error(message)
		} else {
			entry.Info(message)
		}
	}
}

func (t *tracer) infof(stage, format string, args ...any) {
	t.add(stage, "info", fmt.Sprintf(format, args...))
}

func (t *tracer) errorf(stage, format string, args ...any) {
	t.add(stage, "error", fmt.Sprintf(format, args...))
}

func (t *tracer) elapsedMs() int64 {
	return t.now().Sub(t.started).Milliseconds()
}
