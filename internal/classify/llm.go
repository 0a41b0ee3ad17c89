package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abelbrown/roundup/internal/brain"
	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/model"
)

const systemPrompt = "You classify regional news stories into sections of a daily newsletter. Respond with JSON only."

// LLMService classifies through a brain.Provider.
type LLMService struct {
	provider brain.Provider
	sections []config.SectionConfig
	known    map[model.Section]bool
}

// NewLLMService wraps provider. A nil provider yields a service that
// always fails, which routes every group in degraded mode.
func NewLLMService(provider brain.Provider, sections []config.SectionConfig) *LLMService {
	known := make(map[model.Section]bool, len(sections))
	for _, s := range sections {
		known[s.Section()] = true
	}
	return &LLMService{provider: provider, sections: sections, known: known}
}

func (s *LLMService) Classify(ctx context.Context, req Request) (Proposal, error) {
	if s.provider == nil || !s.provider.Available() {
		return Proposal{}, ErrNoService
	}

	resp, err := s.provider.Generate(ctx, brain.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   s.prompt(req),
		MaxTokens:    200,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}

	p, err := ParseProposal(resp.Content, s.known)
	if err != nil {
		logging.Debug("unparseable classification", "provider", s.provider.Name(), "content", resp.Content)
		return Proposal{}, err
	}
	return p, nil
}

func (s *LLMService) prompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Given this story:\n")
	sb.WriteString("Headline: ")
	sb.WriteString(req.Headline)
	sb.WriteString("\n")
	if len(req.Sources) > 0 {
		sb.WriteString("Sources: ")
		sb.WriteString(strings.Join(req.Sources, ", "))
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Covered by %d articles from %d outlets.\n", req.MemberCount, req.OutletCount)

	sb.WriteString("\nClassify it into ONE of these sections:\n")
	for _, sec := range s.sections {
		fmt.Fprintf(&sb, "- %s: %s\n", sec.Name, sec.Description)
	}

	sb.WriteString("\nRespond with JSON only:\n")
	sb.WriteString(`{"section": "section_name", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Stories covered by several outlets are likely top stories\n")
	sb.WriteString("- Isolated crimes, crashes and accidents are not top stories\n")
	sb.WriteString("- Light stories, arts and sports belong in the last section\n")
	sb.WriteString("- When uncertain between sections, choose the more specific one\n")
	sb.WriteString("- Confidence should reflect how clearly it fits the section")
	return sb.String()
}

// ParseProposal decodes a service reply, tolerating markdown code fences.
// An unknown or missing section, or a confidence outside [0,1], is
// malformed.
func ParseProposal(content string, known map[model.Section]bool) (Proposal, error) {
	text := stripFences(content)
	if text == "" {
		return Proposal{}, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}

	var raw struct {
		Section    string   `json:"section"`
		Confidence *float64 `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Proposal{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	sec := model.Section(strings.ToLower(strings.TrimSpace(raw.Section)))
	switch {
	case sec == "":
		return Proposal{}, fmt.Errorf("%w: missing section", ErrMalformedResponse)
	case !known[sec]:
		return Proposal{}, fmt.Errorf("%w: unknown section %q", ErrMalformedResponse, raw.Section)
	case raw.Confidence == nil:
		return Proposal{}, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	case *raw.Confidence < 0 || *raw.Confidence > 1:
		return Proposal{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, *raw.Confidence)
	}

	return Proposal{Section: sec, Confidence: *raw.Confidence, Reasoning: raw.Reasoning}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimPrefix(s, "json")
	}
	// Some models wrap the object in prose.
	if start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
