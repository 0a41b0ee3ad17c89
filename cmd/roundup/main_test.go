package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/edit"
	"github.com/abelbrown/roundup/internal/lookback"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/store"
)

func TestParseNow(t *testing.T) {
	got, err := parseNow("2026-10-19T07:00:00-04:00")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("parseNow = %v", got)
	}
	if _, err := parseNow("monday"); err == nil {
		t.Error("expected error for non-RFC3339 input")
	}
	if got, err := parseNow(""); err != nil || got.IsZero() {
		t.Errorf("empty --now = %v, %v", got, err)
	}
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2026-10-01", time.UTC)
	if err != nil || !got.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseSince = %v, %v", got, err)
	}
	if got, err := parseSince("", time.UTC); err != nil || !got.IsZero() {
		t.Errorf("empty --since = %v, %v", got, err)
	}
	if _, err := parseSince("10/01/2026", time.UTC); err == nil {
		t.Error("expected error for wrong date format")
	}
}

type scriptedEditor struct {
	handled []string
	closed  bool
	aborted bool
}

func (s *scriptedEditor) Handle(_ context.Context, text string) edit.Response {
	s.handled = append(s.handled, text)
	switch text {
	case "done":
		s.closed = true
		return edit.Response{Outcome: edit.OutcomeDone, Message: "Edition finalized with 1 edits.", Edition: &model.Edition{ID: "ed-1"}}
	case "refresh":
		return edit.Response{Outcome: edit.OutcomeRefreshed, Summary: "Top stories (0/6)"}
	}
	return edit.Response{
		Outcome:  edit.OutcomeApplied,
		Message:  "Moved it.",
		Warnings: []string{"Politics now has 9 stories, over its maximum of 8."},
	}
}

func (s *scriptedEditor) Abort() edit.Response {
	s.closed, s.aborted = true, true
	return edit.Response{Outcome: edit.OutcomeAborted, Message: "Session aborted."}
}

func (s *scriptedEditor) Summary() string { return "Top stories (1/6)" }
func (s *scriptedEditor) Closed() bool    { return s.closed }

func TestRunPlain(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		handled []string
		aborted bool
		want    []string
	}{
		{
			name:    "done ends the loop",
			input:   "move it to politics\nrefresh\ndone\nignored after done\n",
			handled: []string{"move it to politics", "refresh", "done"},
			want:    []string{"Moved it.", "! Politics now has 9 stories", "Top stories (0/6)", "Edition ed-1 archived."},
		},
		{
			name:    "end of input aborts",
			input:   "move it to politics\n",
			handled: []string{"move it to politics"},
			aborted: true,
			want:    []string{"Session aborted."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ed := &scriptedEditor{}
			var out bytes.Buffer
			if err := runPlain(context.Background(), ed, strings.NewReader(tt.input), &out); err != nil {
				t.Fatalf("runPlain: %v", err)
			}
			if diff := cmp.Diff(tt.handled, ed.handled); diff != "" {
				t.Errorf("handled (-want +got):\n%s", diff)
			}
			if ed.aborted != tt.aborted {
				t.Errorf("aborted = %v, want %v", ed.aborted, tt.aborted)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestPrintWindow(t *testing.T) {
	p, err := lookback.New(config.DefaultConfig().Lookback)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	printWindow(&out, p, time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC))

	got := out.String()
	for _, want := range []string{"Monday", "normal publish day", "Window:", "from Fri Oct 16", "to   Mon Oct 19"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintEditions(t *testing.T) {
	var out bytes.Buffer
	printEditions(&out, nil, time.UTC)
	if !strings.Contains(out.String(), "No editions archived.") {
		t.Errorf("empty list output = %q", out.String())
	}

	out.Reset()
	printEditions(&out, []store.Edition{{
		ID:          "ed-1",
		FinalizedAt: time.Date(2026, 10, 19, 11, 30, 0, 0, time.UTC),
		Placed:      14,
		Skipped:     5,
		Ops:         3,
	}}, time.UTC)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d:\n%s", len(lines), out.String())
	}
	if fields := strings.Fields(lines[1]); !cmp.Equal(fields, []string{"ed-1", "2026-10-19", "11:30", "14", "5", "3"}) {
		t.Errorf("row = %q", fields)
	}
}
