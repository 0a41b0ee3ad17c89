// Package otel records pipeline and session events for later inspection.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Pipeline events
	KindIngestRejected   EventKind = "ingest.rejected"
	KindIngestSummary    EventKind = "ingest.summary"
	KindGroupSummary     EventKind = "group.summary"
	KindClassifyDegraded EventKind = "classify.degraded"
	KindClassifySummary  EventKind = "classify.summary"
	KindBalanceOverflow  EventKind = "balance.overflow"
	KindBalanceUnderflow EventKind = "balance.underflow"
	KindFetchError       EventKind = "fetch.error"

	// Session events
	KindSessionCommand EventKind = "session.command"
	KindSessionApplied EventKind = "session.applied"
	KindSessionClarify EventKind = "session.clarify"
	KindSessionNoMatch EventKind = "session.nomatch"
	KindSessionDone    EventKind = "session.done"
	KindSessionAborted EventKind = "session.aborted"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is the universal journal record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "coord", "classify", "edit", "main"
	RunID     string         `json:"run_id,omitempty"`     // random hex, same for entire process
	SessionID string         `json:"session_id,omitempty"` // edit session, when there is one
	Group     string         `json:"group,omitempty"`
	Section   string         `json:"section,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Dur       time.Duration  `json:"-"`                // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
