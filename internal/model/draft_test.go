package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testDraft(t *testing.T) *Draft {
	t.Helper()
	d := NewDraft([]Section{SectionTopStories, SectionPolitics, SectionLastly})
	for _, p := range []struct {
		s  Section
		id string
	}{
		{SectionTopStories, "a"},
		{SectionTopStories, "b"},
		{SectionTopStories, "c"},
		{SectionPolitics, "d"},
	} {
		if err := d.Append(p.s, &Group{ID: p.id}); err != nil {
			t.Fatalf("Append(%s, %s): %v", p.s, p.id, err)
		}
	}
	return d
}

func TestNewDraftAppendsSkip(t *testing.T) {
	d := NewDraft([]Section{SectionTopStories, SectionTopStories, SectionLastly})
	want := []Section{SectionTopStories, SectionLastly, SectionSkip}
	if diff := cmp.Diff(want, d.Sections()); diff != "" {
		t.Errorf("Sections() mismatch (-want +got):\n%s", diff)
	}
}

func TestDraftAppendRejectsDuplicates(t *testing.T) {
	d := testDraft(t)
	err := d.Append(SectionPolitics, &Group{ID: "a"})
	if !errors.Is(err, ErrAlreadyPlaced) {
		t.Errorf("expected ErrAlreadyPlaced, got %v", err)
	}
	if err := d.Append("sports", &Group{ID: "z"}); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("expected ErrUnknownSection, got %v", err)
	}
}

func TestDraftMoveIsExclusive(t *testing.T) {
	d := testDraft(t)

	from, idx, err := d.Move("b", SectionPolitics, -1)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if from != SectionTopStories || idx != 1 {
		t.Errorf("Move returned (%s, %d), want (top_stories, 1)", from, idx)
	}

	want := map[Section][]string{
		SectionTopStories: {"a", "c"},
		SectionPolitics:   {"d", "b"},
		SectionLastly:     nil,
		SectionSkip:       nil,
	}
	if diff := cmp.Diff(want, d.Layout()); diff != "" {
		t.Errorf("Layout() mismatch (-want +got):\n%s", diff)
	}

	// Moving back to the recorded index restores the original layout.
	if _, _, err := d.Move("b", from, idx); err != nil {
		t.Fatalf("Move back failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, d.IDs(SectionTopStories)); diff != "" {
		t.Errorf("restore mismatch (-want +got):\n%s", diff)
	}
}

func TestDraftReorder(t *testing.T) {
	d := testDraft(t)

	from, err := d.Reorder("c", 0)
	if err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	if from != 2 {
		t.Errorf("expected previous index 2, got %d", from)
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, d.IDs(SectionTopStories)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	if _, err := d.Reorder("missing", 0); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("expected ErrUnknownGroup, got %v", err)
	}
}

func TestDraftCloneIsIndependent(t *testing.T) {
	d := testDraft(t)
	c := d.Clone()

	if _, _, err := c.Move("a", SectionSkip, -1); err != nil {
		t.Fatalf("Move on clone failed: %v", err)
	}
	if d.Count(SectionSkip) != 0 {
		t.Errorf("original draft changed after mutating clone")
	}
	if c.Count(SectionSkip) != 1 {
		t.Errorf("clone skip count = %d, want 1", c.Count(SectionSkip))
	}
}

func TestDraftDetachAndLocate(t *testing.T) {
	d := testDraft(t)

	g, s, i, err := d.Detach("d")
	if err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if g.ID != "d" || s != SectionPolitics || i != 0 {
		t.Errorf("Detach returned (%s, %s, %d)", g.ID, s, i)
	}
	if _, _, ok := d.Locate("d"); ok {
		t.Error("detached group still locatable")
	}
	if len(d.Live()) != 3 {
		t.Errorf("Live() = %d groups, want 3", len(d.Live()))
	}
}

func TestGroupOutletCountAndSources(t *testing.T) {
	g := &Group{Members: []Story{
		{SourceName: "NJ.com", SourceDomain: "nj.com"},
		{SourceName: "NJ Monitor", SourceDomain: "newjerseymonitor.com"},
		{SourceName: "NJ.com", SourceDomain: "nj.com"},
	}}
	if g.OutletCount() != 2 {
		t.Errorf("OutletCount() = %d, want 2", g.OutletCount())
	}
	if diff := cmp.Diff([]string{"NJ.com", "NJ Monitor"}, g.Sources()); diff != "" {
		t.Errorf("Sources() mismatch (-want +got):\n%s", diff)
	}
}

func TestSetClassificationReplaces(t *testing.T) {
	g := &Group{}
	tags := []string{"semantic"}
	g.SetClassification(Classification{Section: SectionPolitics, Confidence: 0.8, ReasonTags: tags})
	g.SetClassification(Classification{Section: SectionSkip, Confidence: 0.1})

	if g.Class.Section != SectionSkip || len(g.Class.ReasonTags) != 0 {
		t.Errorf("classification not replaced: %+v", g.Class)
	}
	tags[0] = "mutated"
	if g.Class.HasTag("mutated") {
		t.Error("classification aliases caller's tag slice")
	}
}
