// Package brain talks to hosted and local LLM providers. The classifier
// uses it as the transport behind its semantic classification service.
package brain

import (
	"context"
	"slices"
)

// Provider sends one prompt to a model and returns its text.
type Provider interface {
	Name() string

	// Available reports whether the provider has what it needs to be called
	// (a key, or a model for local runtimes).
	Available() bool

	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a single classification prompt.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

type Response struct {
	Content     string
	Model       string
	RawResponse string // body as received, for the event journal
}

// Manager holds the usable providers in configuration order.
type Manager struct {
	providers []Provider
	preferred string
}

func NewManager(preferred string, providers ...Provider) *Manager {
	return &Manager{providers: providers, preferred: preferred}
}

// Pick returns the preferred provider when it is available, otherwise the
// first available one. Nil means the pipeline runs without a classifier.
func (m *Manager) Pick() Provider {
	if m == nil {
		return nil
	}
	if i := slices.IndexFunc(m.providers, func(p Provider) bool {
		return p.Name() == m.preferred && p.Available()
	}); i >= 0 {
		return m.providers[i]
	}
	for _, p := range m.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

// Names lists the available providers.
func (m *Manager) Names() []string {
	var names []string
	for _, p := range m.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}
