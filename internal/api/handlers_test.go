package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abelbrown/roundup/internal/classify"
	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/edit"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/store"
)

var clock = time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC)

func group(id, headline string, domains ...string) *model.Group {
	g := &model.Group{ID: id, RepresentativeHeadline: headline}
	for i, d := range domains {
		g.Members = append(g.Members, model.Story{
			ID:           id + "-" + d,
			Headline:     headline,
			SourceName:   strings.ToUpper(d[:1]) + d[1:],
			SourceDomain: d + ".com",
			PublishedAt:  clock.Add(-time.Duration(i) * time.Hour),
		})
	}
	return g
}

func newSession(t *testing.T, opts ...edit.Option) *edit.Session {
	t.Helper()
	cfg := config.DefaultConfig()
	tax, err := config.DefaultTaxonomy()
	if err != nil {
		t.Fatal(err)
	}
	d := model.NewDraft(cfg.SectionNames())
	for _, p := range []struct {
		sec model.Section
		g   *model.Group
	}{
		{model.SectionTopStories, group("transit", "Murphy signs $2B transit bill", "spotlight", "monitor", "whyy")},
		{model.SectionTopStories, group("fares", "NJ Transit fare hike takes effect", "gothamist")},
		{model.SectionTopStories, group("parking", "Man shot during argument over parking spot", "tapinto")},
		{model.SectionLastly, group("bakery", "Hoboken bakery marks 50 years", "tapinto")},
	} {
		if err := d.Append(p.sec, p.g); err != nil {
			t.Fatal(err)
		}
	}
	opts = append([]edit.Option{edit.WithClock(func() time.Time { return clock })}, opts...)
	return edit.NewSession(d, cfg, classify.NewScreener(tax, cfg.Sections), opts...)
}

func newServer(t *testing.T, sess *edit.Session, editions EditionLister, reg prometheus.Gatherer) *gin.Engine {
	t.Helper()
	return NewServer(NewHandler(sess, editions), reg)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func command(t *testing.T, r http.Handler, text string) (int, ResponseView) {
	t.Helper()
	body, _ := json.Marshal(CommandRequest{Command: text})
	w := do(t, r, http.MethodPost, "/api/v1/commands", string(body))
	return w.Code, decode[ResponseView](t, w)
}

func TestHealth(t *testing.T) {
	sess := newSession(t)
	w := do(t, newServer(t, sess, nil, nil), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["status"] != "ok" || got["session"] != sess.ID() || got["state"] != "awaiting_command" {
		t.Errorf("health = %v", got)
	}
}

func TestGetDraft(t *testing.T) {
	r := newServer(t, newSession(t), nil, nil)

	w := do(t, r, http.MethodGet, "/api/v1/draft", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	view := decode[DraftView](t, w)
	if !strings.Contains(view.Summary, "Murphy signs $2B transit bill (Spotlight, Monitor, Whyy)") {
		t.Errorf("summary = %q", view.Summary)
	}
	if len(view.Sections) == 0 || view.Sections[0].Name != model.SectionTopStories {
		t.Fatalf("sections = %+v", view.Sections)
	}
	var ids []string
	for _, g := range view.Sections[0].Groups {
		ids = append(ids, g.ID)
	}
	if diff := cmp.Diff([]string{"transit", "fares", "parking"}, ids); diff != "" {
		t.Errorf("top stories (-want +got):\n%s", diff)
	}
}

func TestPostCommandApplies(t *testing.T) {
	sess := newSession(t)
	r := newServer(t, sess, nil, nil)

	code, resp := command(t, r, "remove the parking story")
	if code != http.StatusOK || resp.Outcome != edit.OutcomeApplied {
		t.Fatalf("status %d, outcome %s: %s", code, resp.Outcome, resp.Message)
	}
	if len(resp.Applied) != 1 || resp.Applied[0].Kind != model.OpRemove {
		t.Errorf("applied = %+v", resp.Applied)
	}
	if resp.State != "awaiting_command" || resp.Summary == "" {
		t.Errorf("state %q, summary %q", resp.State, resp.Summary)
	}
	if sec, _, _ := sess.Draft().Locate("parking"); sec != model.SectionSkip {
		t.Errorf("parking in %q, want skip", sec)
	}
}

func TestPostCommandClarifies(t *testing.T) {
	r := newServer(t, newSession(t), nil, nil)

	code, resp := command(t, r, "move the transit story to politics")
	if code != http.StatusOK || resp.Outcome != edit.OutcomeClarify {
		t.Fatalf("status %d, outcome %s", code, resp.Outcome)
	}
	var got []CandidateView
	for _, c := range resp.Candidates {
		got = append(got, CandidateView{Number: c.Number, ID: c.ID, Section: c.Section})
	}
	want := []CandidateView{
		{Number: 1, ID: "transit", Section: model.SectionTopStories},
		{Number: 2, ID: "fares", Section: model.SectionTopStories},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
	if resp.State != "clarification_needed" || resp.Error == "" {
		t.Errorf("state %q, error %q", resp.State, resp.Error)
	}

	_, resp = command(t, r, "1")
	if resp.Outcome != edit.OutcomeApplied || resp.Applied[0].To != model.SectionPolitics {
		t.Errorf("reply outcome %s, applied %+v", resp.Outcome, resp.Applied)
	}
}

func TestPostCommandBadRequest(t *testing.T) {
	r := newServer(t, newSession(t), nil, nil)
	for _, body := range []string{`not json`, `{}`, `{"command": ""}`} {
		if w := do(t, r, http.MethodPost, "/api/v1/commands", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestDonePublishesThenCloses(t *testing.T) {
	var published []model.Edition
	sess := newSession(t, edit.WithPublisher(edit.PublisherFunc(func(_ context.Context, e model.Edition) error {
		published = append(published, e)
		return nil
	})))
	r := newServer(t, sess, nil, nil)

	code, resp := command(t, r, "done")
	if code != http.StatusOK || resp.Outcome != edit.OutcomeDone {
		t.Fatalf("status %d, outcome %s", code, resp.Outcome)
	}
	if len(published) != 1 || resp.EditionID != published[0].ID {
		t.Errorf("edition id %q, published %d", resp.EditionID, len(published))
	}

	code, resp = command(t, r, "undo")
	if code != http.StatusConflict || resp.Outcome != edit.OutcomeClosed {
		t.Errorf("after done: status %d, outcome %s", code, resp.Outcome)
	}
}

func TestPublishFailureIsServerError(t *testing.T) {
	sess := newSession(t, edit.WithPublisher(edit.PublisherFunc(func(context.Context, model.Edition) error {
		return errors.New("disk full")
	})))
	r := newServer(t, sess, nil, nil)

	code, resp := command(t, r, "done")
	if code != http.StatusInternalServerError || resp.Outcome != edit.OutcomeFailed {
		t.Fatalf("status %d, outcome %s", code, resp.Outcome)
	}
	if resp.State != "awaiting_command" || !strings.Contains(resp.Error, "disk full") {
		t.Errorf("state %q, error %q", resp.State, resp.Error)
	}
}

func TestAbort(t *testing.T) {
	sess := newSession(t)
	r := newServer(t, sess, nil, nil)
	command(t, r, "remove the parking story")

	w := do(t, r, http.MethodPost, "/api/v1/abort", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[ResponseView](t, w); resp.Outcome != edit.OutcomeAborted || resp.State != "aborted" {
		t.Errorf("abort = %+v", resp)
	}
	if sec, _, _ := sess.Draft().Locate("parking"); sec != model.SectionTopStories {
		t.Errorf("parking in %q after abort, want top_stories", sec)
	}

	if w := do(t, r, http.MethodPost, "/api/v1/abort", ""); w.Code != http.StatusConflict {
		t.Errorf("second abort status = %d, want 409", w.Code)
	}
}

func TestConcurrentCommands(t *testing.T) {
	r := newServer(t, newSession(t), nil, nil)

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := do(t, r, http.MethodPost, "/api/v1/commands", `{"command": "refresh"}`)
			codes[i] = w.Code
		}()
	}
	wg.Wait()
	for i, c := range codes {
		if c != http.StatusOK {
			t.Errorf("request %d status = %d", i, c)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	sess := newSession(t, edit.WithMetrics(metrics.New(reg)))
	r := newServer(t, sess, nil, reg)
	command(t, r, "refresh")

	w := do(t, r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `roundup_session_commands_total{outcome="refreshed"} 1`) {
		t.Errorf("metrics missing command counter:\n%s", w.Body.String())
	}

	if w := do(t, newServer(t, sess, nil, nil), http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics without registry: status = %d, want 404", w.Code)
	}
}

type fakeEditions struct {
	opts store.ListOptions
	list []store.Edition
	err  error
}

func (f *fakeEditions) ListEditions(_ context.Context, opts store.ListOptions) ([]store.Edition, error) {
	f.opts = opts
	return f.list, f.err
}

func TestListEditions(t *testing.T) {
	sess := newSession(t)
	archive := &fakeEditions{list: []store.Edition{{ID: "ed-1", SessionID: "s-1", FinalizedAt: clock, Placed: 12, Skipped: 3, Ops: 4}}}

	tests := []struct {
		name    string
		lister  EditionLister
		query   string
		status  int
		wantOpt store.ListOptions
	}{
		{"unconfigured", nil, "", http.StatusServiceUnavailable, store.ListOptions{}},
		{"all", archive, "", http.StatusOK, store.ListOptions{}},
		{"filtered", archive, "?limit=5&since=2026-10-01", http.StatusOK, store.ListOptions{Limit: 5, Since: time.Date(2026, 10, 1, 0, 0, 0, 0, time.Local)}},
		{"bad limit", archive, "?limit=many", http.StatusBadRequest, store.ListOptions{}},
		{"bad since", archive, "?since=yesterday", http.StatusBadRequest, store.ListOptions{}},
		{"store error", &fakeEditions{err: errors.New("locked")}, "", http.StatusInternalServerError, store.ListOptions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive.opts = store.ListOptions{}
			w := do(t, newServer(t, sess, tt.lister, nil), http.MethodGet, "/api/v1/editions"+tt.query, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if w.Code != http.StatusOK {
				return
			}
			if diff := cmp.Diff(tt.wantOpt, archive.opts); diff != "" {
				t.Errorf("options (-want +got):\n%s", diff)
			}
			got := decode[struct {
				Editions []EditionView `json:"editions"`
			}](t, w)
			if len(got.Editions) != 1 || got.Editions[0].ID != "ed-1" || got.Editions[0].Placed != 12 {
				t.Errorf("editions = %+v", got.Editions)
			}
		})
	}
}
