package otel

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// decodeLines closes l and decodes every journal line written to buf.
func decodeLines(t *testing.T, l *Logger, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	l.Close()
	var out []map[string]any
	for i, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %d: invalid JSON %q: %v", i, line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmitStampsTimeAndRunID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	before := time.Now()
	l.Emit(Event{Kind: KindIngestSummary, Comp: "coord", Count: 12})
	l.Emit(Event{Kind: KindGroupSummary, Comp: "coord", Count: 7})
	l.Close()
	after := time.Now()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	for _, line := range lines {
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Time.Before(before) || ev.Time.After(after) {
			t.Errorf("time %v outside emit window", ev.Time)
		}
		if ev.RunID != l.RunID() || len(ev.RunID) != 16 {
			t.Errorf("run_id = %q, want %q", ev.RunID, l.RunID())
		}
	}
}

func TestEventEncoding(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{
		Kind:      KindSessionApplied,
		SessionID: "sess-1",
		Group:     "g3",
		Section:   "politics",
		Dur:       1500 * time.Millisecond,
	})
	l.Emit(Event{Kind: KindStartup})

	got := decodeLines(t, l, &buf)
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	applied := got[0]
	if applied["kind"] != "session.applied" || applied["session_id"] != "sess-1" ||
		applied["group"] != "g3" || applied["section"] != "politics" {
		t.Errorf("session fields lost: %v", applied)
	}
	if applied["dur_ms"] != float64(1500) {
		t.Errorf("dur_ms = %v, want 1500", applied["dur_ms"])
	}

	for _, field := range []string{"dur_ms", "count", "group", "section", "reason", "err", "msg", "extra", "session_id"} {
		if _, ok := got[1][field]; ok {
			t.Errorf("startup event carries empty field %q", field)
		}
	}
}

func TestLevelHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Info(KindStartup, "main", "starting")
	l.Warn(KindFetchError, "fetch", "feed timed out")
	l.Error(KindError, "store", errForTest("disk full"))

	got := decodeLines(t, l, &buf)
	want := []struct{ level, kind, comp string }{
		{"info", "sys.startup", "main"},
		{"warn", "fetch.error", "fetch"},
		{"error", "sys.error", "store"},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i]["level"] != w.level || got[i]["kind"] != w.kind || got[i]["comp"] != w.comp {
			t.Errorf("event %d = %v, want %+v", i, got[i], w)
		}
	}
	if got[2]["err"] != "disk full" {
		t.Errorf("err = %v", got[2]["err"])
	}
}

type errForTest string

func (e errForTest) Error() string { return string(e) }

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Kind: KindSessionCommand, Comp: "edit"})
		}()
	}
	wg.Wait()

	if got := decodeLines(t, l, &buf); len(got) != 100 {
		t.Errorf("events = %d, want 100", len(got))
	}
}

func TestCloseIsIdempotentAndDropsLateEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindSessionDone})
	l.Close()
	l.Close()
	l.Emit(Event{Kind: KindShutdown})

	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("lines = %d, want 1", n)
	}
	if l.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", l.Dropped())
	}
}

func TestDropCounter(t *testing.T) {
	bw := &blockingWriter{started: make(chan struct{}), block: make(chan struct{})}
	l := NewLogger(bw)

	l.Emit(Event{Kind: KindIngestRejected})
	<-bw.started

	for i := 0; i < writerChanSize+10; i++ {
		l.Emit(Event{Kind: KindIngestRejected})
	}
	if l.Dropped() == 0 {
		t.Error("expected drops once the channel is full")
	}

	close(bw.block)
	l.Close()
}

// blockingWriter holds the drain goroutine inside its first Write.
type blockingWriter struct {
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.block
	})
	return len(p), nil
}

func TestNoOpLoggers(t *testing.T) {
	var nilLogger *Logger
	nilLogger.Emit(Event{Kind: KindStartup})
	nilLogger.Info(KindStartup, "main", "nil")
	nilLogger.Close()

	null := NewNullLogger()
	null.Emit(Event{Kind: KindStartup})
	null.Close()
}

func TestFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "events")
	l, err := NewFileLogger(dir)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	l.Info(KindStartup, "main", "hello")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "roundup-*.jsonl"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("journal files = %v, %v", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"kind":"sys.startup"`) {
		t.Errorf("journal missing startup event: %s", data)
	}
}
