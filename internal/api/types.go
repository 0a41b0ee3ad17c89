package api

import (
	"time"

	"github.com/abelbrown/roundup/internal/edit"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/render"
	"github.com/abelbrown/roundup/internal/store"
)

// CommandRequest is the body of POST /api/v1/commands.
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// CandidateView is one numbered choice offered in a clarification.
type CandidateView struct {
	Number   int           `json:"number"`
	ID       string        `json:"id"`
	Headline string        `json:"headline"`
	Section  model.Section `json:"section"`
	Score    float64       `json:"score"`
}

// ResponseView is the JSON shape of one session turn.
type ResponseView struct {
	Outcome    edit.Outcome      `json:"outcome"`
	State      string            `json:"state"`
	Message    string            `json:"message"`
	Candidates []CandidateView   `json:"candidates,omitempty"`
	Applied    []model.Operation `json:"applied,omitempty"`
	Kept       []edit.Kept       `json:"kept,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	EditionID  string            `json:"edition_id,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// DraftView is the JSON shape of GET /api/v1/draft.
type DraftView struct {
	SessionID string               `json:"session_id"`
	State     string               `json:"state"`
	Summary   string               `json:"summary"`
	Sections  []render.SectionView `json:"sections"`
}

// EditionView is one archived edition header.
type EditionView struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	FinalizedAt time.Time `json:"finalized_at"`
	Placed      int       `json:"placed"`
	Skipped     int       `json:"skipped"`
	Ops         int       `json:"ops"`
}

func responseView(r edit.Response) ResponseView {
	v := ResponseView{
		Outcome:  r.Outcome,
		State:    r.State.String(),
		Message:  r.Message,
		Applied:  r.Applied,
		Kept:     r.Kept,
		Warnings: r.Warnings,
		Summary:  r.Summary,
	}
	for i, c := range r.Candidates {
		v.Candidates = append(v.Candidates, CandidateView{
			Number:   i + 1,
			ID:       c.Group.ID,
			Headline: c.Group.RepresentativeHeadline,
			Section:  c.Section,
			Score:    c.Score,
		})
	}
	if r.Edition != nil {
		v.EditionID = r.Edition.ID
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func editionView(e store.Edition) EditionView {
	return EditionView{
		ID:          e.ID,
		SessionID:   e.SessionID,
		FinalizedAt: e.FinalizedAt,
		Placed:      e.Placed,
		Skipped:     e.Skipped,
		Ops:         e.Ops,
	}
}
