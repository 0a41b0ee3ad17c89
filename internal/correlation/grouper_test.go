package correlation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/model"
)

var base = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func story(seq int, headline, domain string, offset time.Duration) model.Story {
	return model.Story{
		ID:           headline[:3] + string(rune('a'+seq)),
		Headline:     headline,
		CanonicalURL: "https://" + domain + "/" + string(rune('a'+seq)),
		SourceName:   domain,
		SourceDomain: domain,
		PublishedAt:  base.Add(offset),
		Seq:          seq,
	}
}

func newTestGrouper(t *testing.T) *Grouper {
	t.Helper()
	tax, err := config.DefaultTaxonomy()
	if err != nil {
		t.Fatal(err)
	}
	return NewGrouper(OptionsFromConfig(config.DefaultConfig().Grouping), tax, nil, nil)
}

func transitStories() []model.Story {
	return []model.Story{
		story(0, "Murphy signs $2B transit bill", "nj.com", 0),
		story(1, "Governor approves major transit funding package", "njspotlightnews.org", time.Hour),
		story(2, "Man shot during argument over parking spot", "app.com", 30*time.Minute),
		story(3, "State invests billions in NJ Transit overhaul", "whyy.org", 2*time.Hour),
		story(4, "AG charges 5 officials with corruption in contract scheme", "newjerseymonitor.com", 90*time.Minute),
		story(5, "Transit union authorizes strike vote", "northjersey.com", time.Hour),
	}
}

func TestTransitScenarioGroupsAcrossOutlets(t *testing.T) {
	g := newTestGrouper(t)
	groups := g.Group(transitStories())

	if len(groups) != 4 {
		for _, gr := range groups {
			t.Logf("group %s: %v", gr.ID, gr.Headlines())
		}
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}

	transit := groups[0]
	if len(transit.Members) != 3 {
		t.Fatalf("transit group has %d members, want 3: %v", len(transit.Members), transit.Headlines())
	}
	if transit.OutletCount() != 3 {
		t.Errorf("OutletCount = %d, want 3", transit.OutletCount())
	}
	if transit.RepresentativeHeadline != "Murphy signs $2B transit bill" {
		t.Errorf("representative = %q", transit.RepresentativeHeadline)
	}
	if transit.ID != "grp-"+transitStories()[0].ID {
		t.Errorf("ID = %q, want anchored on first member", transit.ID)
	}

	wantOrder := []string{
		"Murphy signs $2B transit bill",
		"Man shot during argument over parking spot",
		"AG charges 5 officials with corruption in contract scheme",
		"Transit union authorizes strike vote",
	}
	for i, gr := range groups {
		if gr.Members[0].Headline != wantOrder[i] {
			t.Errorf("group %d starts with %q, want %q", i, gr.Members[0].Headline, wantOrder[i])
		}
		if gr.Seq != i {
			t.Errorf("group %d Seq = %d", i, gr.Seq)
		}
	}
}

func TestEveryStoryInExactlyOneGroup(t *testing.T) {
	g := newTestGrouper(t)
	stories := transitStories()
	groups := g.Group(stories)

	seen := make(map[string]int)
	for _, gr := range groups {
		if len(gr.Members) == 0 {
			t.Errorf("group %s is empty", gr.ID)
		}
		for _, m := range gr.Members {
			seen[m.ID]++
		}
	}
	for _, s := range stories {
		if seen[s.ID] != 1 {
			t.Errorf("story %q appears in %d groups", s.Headline, seen[s.ID])
		}
	}
}

func TestGroupingIsDeterministic(t *testing.T) {
	g := newTestGrouper(t)
	first := g.Group(transitStories())
	second := g.Group(transitStories())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("grouping differs between runs (-first +second):\n%s", diff)
	}
}

func TestTimeWindowSeparatesRepeats(t *testing.T) {
	g := newTestGrouper(t)
	groups := g.Group([]model.Story{
		story(0, "Murphy signs $2B transit bill", "nj.com", 0),
		story(1, "Murphy signs $2B transit bill", "whyy.org", 30*time.Hour),
	})
	if len(groups) != 2 {
		t.Errorf("expected stories 30h apart to stay separate, got %d groups", len(groups))
	}
}

func TestMultiMemberGroupsNeverFuse(t *testing.T) {
	g := newTestGrouper(t)
	groups := g.Group([]model.Story{
		story(0, "Platkin sues Meta over youth privacy", "nj.com", 0),
		story(1, "Platkin sues Meta over youth privacy law", "whyy.org", 0),
		story(2, "Newark council approves Ironbound zoning plan", "tapinto.net", 0),
		story(3, "Newark council approves Ironbound zoning plan", "northjersey.com", 0),
		story(4, "Platkin sues Meta as Newark council approves Ironbound zoning", "insidernj.com", 0),
	})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if n := len(groups[0].Members); n != 2 {
		t.Errorf("privacy group has %d members, want 2", n)
	}
	if n := len(groups[1].Members); n != 3 {
		t.Errorf("zoning group has %d members, want 3 (bridge joins its best match)", n)
	}
}

func TestSingletonGroup(t *testing.T) {
	g := newTestGrouper(t)
	groups := g.Group([]model.Story{story(0, "Hoboken opens new ferry terminal", "hudsonreporter.com", 0)})
	if len(groups) != 1 || groups[0].OutletCount() != 1 {
		t.Fatalf("expected one singleton group, got %+v", groups)
	}
	if groups[0].RepresentativeHeadline != "Hoboken opens new ferry terminal" {
		t.Errorf("representative = %q", groups[0].RepresentativeHeadline)
	}
}

func TestEmptyInput(t *testing.T) {
	if groups := newTestGrouper(t).Group(nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}
