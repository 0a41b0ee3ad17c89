package classify

import (
	"context"
	"errors"

	"github.com/abelbrown/roundup/internal/model"
)

// ErrNoService is the failure reported when no classification service is
// configured. Every group is then routed in degraded mode.
var ErrNoService = errors.New("no classification service configured")

// ErrMalformedResponse marks an empty or unparseable service reply.
var ErrMalformedResponse = errors.New("malformed classification response")

// Request is what the semantic service sees of a group.
type Request struct {
	Headline    string
	MemberCount int
	OutletCount int
	Sources     []string
}

// Proposal is the service's answer.
type Proposal struct {
	Section    model.Section
	Confidence float64
	Reasoning  string
}

// Service is the external semantic classification collaborator. It may
// be called concurrently.
type Service interface {
	Classify(ctx context.Context, req Request) (Proposal, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (Proposal, error)

func (f ServiceFunc) Classify(ctx context.Context, req Request) (Proposal, error) {
	return f(ctx, req)
}

func requestFor(g *model.Group) Request {
	return Request{
		Headline:    g.RepresentativeHeadline,
		MemberCount: len(g.Members),
		OutletCount: g.OutletCount(),
		Sources:     g.Sources(),
	}
}
