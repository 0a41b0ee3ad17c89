package classify

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	transitHeadline = "Murphy signs $2B transit bill"
	parkingHeadline = "Man shot during argument over parking spot"
	agHeadline      = "AG charges 5 officials with corruption in contract scheme"
)

func testGroup(seq int, headline string, domains ...string) *model.Group {
	g := &model.Group{
		ID:                     "grp-" + headline,
		RepresentativeHeadline: headline,
		Seq:                    seq,
	}
	for i, d := range domains {
		g.Members = append(g.Members, model.Story{
			ID:           d + "-" + headline,
			Headline:     headline,
			SourceName:   d,
			SourceDomain: d,
			PublishedAt:  time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
			Seq:          seq*10 + i,
		})
	}
	return g
}

func newTestClassifier(t *testing.T, svc Service) *Classifier {
	t.Helper()
	cfg := config.DefaultConfig()
	tax, err := config.DefaultTaxonomy()
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, NewScreener(tax, cfg.Sections), svc, WithLimiter(nil))
}

// fixedService answers from a table keyed by headline.
func fixedService(answers map[string]Proposal) ServiceFunc {
	return func(_ context.Context, req Request) (Proposal, error) {
		p, ok := answers[req.Headline]
		if !ok {
			return Proposal{}, errors.New("no answer")
		}
		return p, nil
	}
}

func failingService() ServiceFunc {
	return func(context.Context, Request) (Proposal, error) {
		return Proposal{}, errors.New("connection refused")
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScreen(t *testing.T) {
	cfg := config.DefaultConfig()
	tax, err := config.DefaultTaxonomy()
	if err != nil {
		t.Fatal(err)
	}
	s := NewScreener(tax, cfg.Sections)

	parking := s.Screen(parkingHeadline)
	if !parking.Vetoed() || !parking.Isolated() || parking.Overridden() || parking.TopEligible() {
		t.Errorf("parking screen = %+v", parking)
	}
	if d, _ := parking.Dominant(); d.Name != "crime" {
		t.Errorf("parking dominant = %q, want crime", d.Name)
	}

	ag := s.Screen(agHeadline)
	if !ag.Vetoed() || !ag.Overridden() || ag.Isolated() || !ag.TopEligible() {
		t.Errorf("AG screen = %+v", ag)
	}
	if diff := cmp.Diff([]string{"officials", "ag", "contract", "scheme"}, ag.Institutional); diff != "" {
		t.Errorf("institutional tokens (-want +got):\n%s", diff)
	}

	transit := s.Screen(transitHeadline)
	if transit.Vetoed() || !transit.TopEligible() {
		t.Errorf("transit screen = %+v", transit)
	}

	crash := s.Screen("Crash kills pedestrian struck by stolen car")
	if d, _ := crash.Dominant(); d.Name != "crash" {
		t.Errorf("dominant = %q, want crash (more keyword hits than crime)", d.Name)
	}
	if !crash.Isolated() {
		t.Error("crime hit without institutional tokens should mark the crash story isolated")
	}
	if crash.Overridden() {
		t.Error("crash category has no institutional override")
	}

	wreck := s.Screen("Highway wreck closes Route 80 for hours")
	if !wreck.Vetoed() || wreck.Isolated() {
		t.Errorf("crash without crime keywords = %+v, want vetoed and not isolated", wreck)
	}
}

func TestTopics(t *testing.T) {
	cfg := config.DefaultConfig()
	tax, _ := config.DefaultTaxonomy()
	s := NewScreener(tax, cfg.Sections)

	got := s.Topics("School board approves new curriculum for schools")
	if len(got) == 0 || got[0].Section != model.SectionEducation || got[0].Hits != 2 {
		t.Errorf("Topics = %+v, want education with 2 hits first", got)
	}
	if got := s.Topics("Local bakery celebrates 50 years"); len(got) != 0 {
		t.Errorf("Topics = %+v, want none", got)
	}
}

func TestReconciliationScenarios(t *testing.T) {
	tests := []struct {
		name     string
		group    *model.Group
		proposal Proposal
		section  model.Section
		conf     float64
		tags     []string
	}{
		{
			name:     "multi-outlet transit promoted to top",
			group:    testGroup(0, transitHeadline, "nj.com", "njspotlightnews.org", "whyy.org"),
			proposal: Proposal{Section: model.SectionPolitics, Confidence: 0.7},
			section:  model.SectionTopStories,
			conf:     0.85,
			tags:     []string{TagMultiOutlet},
		},
		{
			name:     "isolated crime demoted to skip",
			group:    testGroup(1, parkingHeadline, "nj.com"),
			proposal: Proposal{Section: model.SectionTopStories, Confidence: 0.9},
			section:  model.SectionSkip,
			conf:     0.9,
			tags:     []string{"veto:crime", TagIsolated, "demoted:crime"},
		},
		{
			name:     "isolated crime never promoted by outlet count",
			group:    testGroup(2, parkingHeadline, "nj.com", "app.com", "whyy.org"),
			proposal: Proposal{Section: model.SectionTopStories, Confidence: 0.9},
			section:  model.SectionSkip,
			conf:     0.9,
			tags:     []string{"veto:crime", TagIsolated, "demoted:crime"},
		},
		{
			name:     "crash with crime keywords never promoted by outlet count",
			group:    testGroup(7, "Crash kills pedestrian struck by stolen car", "nj.com", "app.com", "whyy.org"),
			proposal: Proposal{Section: model.SectionTopStories, Confidence: 0.7},
			section:  model.SectionSkip,
			conf:     0.7,
			tags:     []string{"veto:crash", TagIsolated, "demoted:crash"},
		},
		{
			name:     "institutional crime keeps top",
			group:    testGroup(3, agHeadline, "newjerseymonitor.com"),
			proposal: Proposal{Section: model.SectionTopStories, Confidence: 0.8},
			section:  model.SectionTopStories,
			conf:     0.8,
			tags:     []string{"veto:crime", TagInstitutional},
		},
		{
			name:     "institutional crime not promoted without outlets",
			group:    testGroup(4, agHeadline, "newjerseymonitor.com"),
			proposal: Proposal{Section: model.SectionPolitics, Confidence: 0.8},
			section:  model.SectionPolitics,
			conf:     0.8,
			tags:     []string{"veto:crime"},
		},
		{
			name:     "sports demoted to lastly",
			group:    testGroup(5, "Rutgers wins championship in overtime", "app.com"),
			proposal: Proposal{Section: model.SectionTopStories, Confidence: 0.6},
			section:  model.SectionLastly,
			conf:     0.6,
			tags:     []string{"veto:sports", "demoted:sports"},
		},
		{
			name:     "low confidence held for review",
			group:    testGroup(6, "Town honors volunteers", "tapinto.net"),
			proposal: Proposal{Section: model.SectionLastly, Confidence: 0.1},
			section:  model.SectionSkip,
			conf:     0.1,
			tags:     []string{TagNeedsReview},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t, fixedService(map[string]Proposal{
				tt.group.RepresentativeHeadline: tt.proposal,
			}))
			got := c.Classify(context.Background(), []*model.Group{tt.group})[0]

			if got.Section != tt.section {
				t.Errorf("section = %q, want %q (tags %v)", got.Section, tt.section, got.ReasonTags)
			}
			if !approx(got.Confidence, tt.conf) {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.conf)
			}
			if diff := cmp.Diff(tt.tags, got.ReasonTags); diff != "" {
				t.Errorf("tags (-want +got):\n%s", diff)
			}
			if got.Degraded || got.Err != nil {
				t.Errorf("unexpected degraded classification: %v", got.Err)
			}
			if tt.group.Class.Section != got.Section {
				t.Error("classification not attached to group")
			}
		})
	}
}

func TestDegradedRouting(t *testing.T) {
	tests := []struct {
		name    string
		group   *model.Group
		section model.Section
		conf    float64
		review  bool
	}{
		{"multi-outlet top", testGroup(0, transitHeadline, "nj.com", "whyy.org", "app.com"), model.SectionTopStories, 0.4, false},
		{"vetoed demoted", testGroup(1, parkingHeadline, "nj.com"), model.SectionSkip, 0.4, false},
		{"topic keywords", testGroup(2, "School board approves new curriculum", "njedreport.com"), model.SectionEducation, 0.4, false},
		{"no signal goes to catch-all", testGroup(3, "Local bakery celebrates 50 years", "tapinto.net"), model.SectionLastly, 0.4, false},
		{"festival without keywords", testGroup(4, "Ocean City boardwalk festival draws record crowds", "pressofatlanticcity.com"), model.SectionLastly, 0.4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t, failingService())
			got := c.Classify(context.Background(), []*model.Group{tt.group})[0]

			if got.Section != tt.section || !approx(got.Confidence, tt.conf) {
				t.Errorf("got (%q, %v), want (%q, %v), tags %v", got.Section, got.Confidence, tt.section, tt.conf, got.ReasonTags)
			}
			if !got.Degraded || !got.HasTag(TagDegraded) {
				t.Errorf("expected degraded tag, got %v", got.ReasonTags)
			}
			if !errors.Is(got.Err, model.ErrClassificationDegraded) {
				t.Errorf("Err = %v, want ErrClassificationDegraded", got.Err)
			}
			if got.HasTag(TagNeedsReview) != tt.review {
				t.Errorf("needs_review = %v, want %v", got.HasTag(TagNeedsReview), tt.review)
			}
		})
	}
}

func TestNilServiceDegradesEverything(t *testing.T) {
	c := newTestClassifier(t, nil)
	got := c.Classify(context.Background(), []*model.Group{testGroup(0, transitHeadline, "nj.com")})[0]
	if !got.Degraded || !errors.Is(got.Err, model.ErrClassificationDegraded) {
		t.Errorf("expected degraded classification, got %+v", got)
	}
}

func TestMalformedServiceReplyDegrades(t *testing.T) {
	c := newTestClassifier(t, fixedService(map[string]Proposal{
		transitHeadline: {Section: "weather", Confidence: 0.9},
	}))
	got := c.Classify(context.Background(), []*model.Group{testGroup(0, transitHeadline, "nj.com")})[0]
	if !got.Degraded || !errors.Is(got.Err, model.ErrClassificationDegraded) {
		t.Errorf("unknown section should degrade, got %+v", got)
	}
}

func TestSubmittedSectionSkipsService(t *testing.T) {
	var calls atomic.Int32
	svc := ServiceFunc(func(context.Context, Request) (Proposal, error) {
		calls.Add(1)
		return Proposal{Section: model.SectionLastly, Confidence: 0.5}, nil
	})
	c := newTestClassifier(t, svc)

	g := testGroup(0, "Free flu vaccines at county clinic", "tapinto.net")
	g.Members[0].PresetSection = model.SectionHealth

	got := c.Classify(context.Background(), []*model.Group{g})[0]
	if got.Section != model.SectionHealth || got.Confidence != 1 {
		t.Errorf("got (%q, %v), want (health, 1)", got.Section, got.Confidence)
	}
	if !got.HasTag(TagSubmitted) {
		t.Errorf("missing submitted tag: %v", got.ReasonTags)
	}
	if calls.Load() != 0 {
		t.Errorf("service called %d times for a submitted group", calls.Load())
	}
}

func TestResultsFollowGroupOrder(t *testing.T) {
	sections := []model.Section{model.SectionPolitics, model.SectionHousing, model.SectionHealth, model.SectionEnvironment}
	var groups []*model.Group
	answers := make(map[string]Proposal)
	for i := 0; i < 12; i++ {
		h := "Story number " + string(rune('A'+i))
		groups = append(groups, testGroup(i, h, "nj.com"))
		answers[h] = Proposal{Section: sections[i%len(sections)], Confidence: 0.8}
	}

	// Later groups answer first.
	svc := ServiceFunc(func(ctx context.Context, req Request) (Proposal, error) {
		idx := int(req.Headline[len(req.Headline)-1] - 'A')
		time.Sleep(time.Duration(12-idx) * time.Millisecond)
		return answers[req.Headline], nil
	})
	c := newTestClassifier(t, svc)
	got := c.Classify(context.Background(), groups)

	for i, cl := range got {
		if want := sections[i%len(sections)]; cl.Section != want {
			t.Errorf("result %d = %q, want %q", i, cl.Section, want)
		}
		if groups[i].Class.Section != cl.Section {
			t.Errorf("group %d classification mismatch", i)
		}
	}
}

func TestCancelledContextDegrades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := ServiceFunc(func(ctx context.Context, _ Request) (Proposal, error) {
		<-ctx.Done()
		return Proposal{}, ctx.Err()
	})
	c := newTestClassifier(t, svc)
	got := c.Classify(ctx, []*model.Group{testGroup(0, transitHeadline, "nj.com")})[0]
	if !got.Degraded {
		t.Errorf("expected degraded classification on cancelled context, got %+v", got)
	}
}
