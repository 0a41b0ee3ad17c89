// Package render formats drafts and finalized editions as plain text and
// as structured views for the HTTP surface.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/model"
)

// Line formats a group as "Headline (SourceA, SourceB)".
func Line(g *model.Group) string {
	sources := g.Sources()
	if len(sources) == 0 {
		return g.RepresentativeHeadline
	}
	return g.RepresentativeHeadline + " (" + strings.Join(sources, ", ") + ")"
}

// GroupView is the JSON shape of one placed group.
type GroupView struct {
	ID         string   `json:"id"`
	Headline   string   `json:"headline"`
	Sources    []string `json:"sources"`
	URLs       []string `json:"urls"`
	Outlets    int      `json:"outlets"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// SectionView is the JSON shape of one draft section.
type SectionView struct {
	Name    model.Section `json:"name"`
	Display string        `json:"display"`
	Count   int           `json:"count"`
	Min     int           `json:"min"`
	Max     int           `json:"max,omitempty"`
	Groups  []GroupView   `json:"groups"`
}

// Sections builds structured views of every draft section, skip last.
func Sections(d *model.Draft, sections []config.SectionConfig) []SectionView {
	bounds := make(map[model.Section]config.SectionConfig, len(sections))
	for _, s := range sections {
		bounds[s.Section()] = s
	}

	out := make([]SectionView, 0, len(d.Sections()))
	for _, sec := range d.Sections() {
		sv := SectionView{Name: sec, Display: displayName(sec, bounds), Count: d.Count(sec), Groups: []GroupView{}}
		if b, ok := bounds[sec]; ok {
			sv.Min, sv.Max = b.Min, b.Max
		}
		for _, g := range d.Groups(sec) {
			gv := GroupView{
				ID:         g.ID,
				Headline:   g.RepresentativeHeadline,
				Sources:    g.Sources(),
				Outlets:    g.OutletCount(),
				Confidence: g.Class.Confidence,
				Tags:       g.Class.ReasonTags,
				Degraded:   g.Class.Degraded,
			}
			for _, m := range g.Members {
				gv.URLs = append(gv.URLs, m.CanonicalURL)
			}
			sv.Groups = append(sv.Groups, gv)
		}
		out = append(out, sv)
	}
	return out
}

// Summary renders the draft for review: every section with its count
// against capacity, then the skipped groups.
func Summary(d *model.Draft, sections []config.SectionConfig) string {
	var sb strings.Builder
	for _, sv := range Sections(d, sections) {
		if sv.Name.IsSkip() {
			fmt.Fprintf(&sb, "%s (%d)\n", sv.Display, sv.Count)
		} else {
			fmt.Fprintf(&sb, "%s (%d/%d)%s\n", sv.Display, sv.Count, sv.Max, capacityNote(sv))
		}
		if sv.Count == 0 {
			sb.WriteString("   (empty)\n")
		}
		for i, g := range d.Groups(sv.Name) {
			fmt.Fprintf(&sb, "%3d. %s\n", i+1, Line(g))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func capacityNote(sv SectionView) string {
	switch {
	case sv.Count > sv.Max:
		return " over capacity"
	case sv.Count < sv.Min:
		return fmt.Sprintf(" below minimum of %d", sv.Min)
	}
	return ""
}

// Text renders a finalized edition. Skipped groups and empty sections are
// left out.
func Text(e model.Edition, sections []config.SectionConfig) string {
	bounds := make(map[model.Section]config.SectionConfig, len(sections))
	for _, s := range sections {
		bounds[s.Section()] = s
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Roundup for %s\n", e.FinalizedAt.Format("Monday, January 2, 2006"))
	for _, sec := range e.Draft.Sections() {
		if sec.IsSkip() || e.Draft.Count(sec) == 0 {
			continue
		}
		title := displayName(sec, bounds)
		fmt.Fprintf(&sb, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
		for _, g := range e.Draft.Groups(sec) {
			sb.WriteString("- ")
			sb.WriteString(Line(g))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func displayName(sec model.Section, bounds map[model.Section]config.SectionConfig) string {
	if sec.IsSkip() {
		return "Skipped"
	}
	if b, ok := bounds[sec]; ok {
		return b.DisplayName()
	}
	return config.SectionConfig{Name: string(sec)}.DisplayName()
}

// FilePublisher writes the plain-text edition to Path.
type FilePublisher struct {
	Path     string
	Sections []config.SectionConfig
}

// Publish writes the edition, creating parent directories.
func (p *FilePublisher) Publish(_ context.Context, e model.Edition) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(p.Path, []byte(Text(e, p.Sections)), 0644); err != nil {
		return fmt.Errorf("write edition: %w", err)
	}
	return nil
}
