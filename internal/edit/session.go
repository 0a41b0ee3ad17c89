// Package edit runs the editor's feedback session over a balanced draft:
// free text in, one structured response out per turn.
//
// Each command passes three stages. The parser turns text into an Intent,
// the resolver scores every live group against the command's fragment,
// and the session either applies the change or asks for clarification.
// Applied changes are appended to an operation log that backs undo and
// abort.
package edit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/roundup/internal/classify"
	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/metrics"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/otel"
	"github.com/abelbrown/roundup/internal/render"
)

// ErrSessionClosed is returned for commands sent after done or abort.
var ErrSessionClosed = errors.New("session closed")

// State is the session's position in the command cycle.
type State int

const (
	AwaitingCommand State = iota
	AwaitingClarification
	Finished
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingCommand:
		return "awaiting_command"
	case AwaitingClarification:
		return "clarification_needed"
	case Finished:
		return "done"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome names the result of one command.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeClarify   Outcome = "clarification_needed"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeNothing   Outcome = "nothing_to_do"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeUndone    Outcome = "undone"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeDone      Outcome = "done"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "publish_failed"
	OutcomeClosed    Outcome = "closed"
)

// Kept is a group a bulk sweep matched but left in place.
type Kept struct {
	Group    string `json:"group"`
	Headline string `json:"headline"`
	Reason   string `json:"reason"`
}

// Response is the structured reply to one command.
type Response struct {
	Outcome    Outcome
	State      State
	Message    string
	Candidates []Candidate
	Applied    []model.Operation
	Kept       []Kept
	Warnings   []string
	Summary    string
	Edition    *model.Edition
	Err        error
}

// Publisher receives the finalized edition when the session reaches done.
type Publisher interface {
	Publish(ctx context.Context, e model.Edition) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e model.Edition) error

func (f PublisherFunc) Publish(ctx context.Context, e model.Edition) error {
	return f(ctx, e)
}

// Publishers chains publishers in order, stopping at the first failure.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, e model.Edition) error {
	for _, p := range ps {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

const helpText = `I didn't catch that. Try one of:
  move the transit story to politics
  remove the parking story
  remove all crime stories from top stories
  put the AG story first
  group the transit stories together
  undo, refresh, done, abort`

// placement is where a group sat before an operation touched it.
type placement struct {
	group   *model.Group
	section model.Section
	index   int
}

type entry struct {
	op      model.Operation
	before  []placement
	merged  *model.Group
	undone  bool
	inverse bool
}

type pending struct {
	command    string
	intent     Intent
	candidates []Candidate
}

// Session is one editor's pass over a draft. It is not safe for
// concurrent use; surfaces that share it serialize access.
type Session struct {
	id       string
	state    State
	baseline *model.Draft
	draft    *model.Draft
	log      []model.Operation
	history  []*entry
	pending  *pending

	sections []config.SectionConfig
	top      model.Section
	parser   *Parser
	resolver *Resolver
	screener *classify.Screener

	publisher Publisher
	metrics   *metrics.Metrics
	journal   *otel.Logger
	now       func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithPublisher sets the publisher called at done.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithJournal(j *otel.Logger) Option {
	return func(s *Session) { s.journal = j }
}

// WithClock overrides time.Now for operation and edition timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession starts a session that owns draft. The draft as passed is
// the baseline restored on abort.
func NewSession(draft *model.Draft, cfg *config.Config, screener *classify.Screener, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		state:    AwaitingCommand,
		baseline: draft.Clone(),
		draft:    draft,
		sections: cfg.Sections,
		top:      cfg.TopSection(),
		parser:   NewParser(cfg.Sections),
		resolver: NewResolver(cfg.Resolver, screener.Taxonomy()),
		screener: screener,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) ID() string          { return s.id }
func (s *Session) State() State        { return s.state }
func (s *Session) Draft() *model.Draft { return s.draft }

// Log returns a copy of the operation log.
func (s *Session) Log() []model.Operation {
	return append([]model.Operation(nil), s.log...)
}

// Summary renders the current draft.
func (s *Session) Summary() string {
	return render.Summary(s.draft, s.sections)
}

// Sections returns the configured section table.
func (s *Session) Sections() []config.SectionConfig {
	return s.sections
}

// Closed reports whether the session has reached done or been aborted.
func (s *Session) Closed() bool {
	return s.state == Finished || s.state == Aborted
}

// Handle runs one command cycle.
func (s *Session) Handle(ctx context.Context, text string) Response {
	text = strings.TrimSpace(text)
	s.journal.Emit(otel.Event{
		Level:     otel.LevelInfo,
		Kind:      otel.KindSessionCommand,
		Comp:      "edit",
		SessionID: s.id,
		Msg:       text,
	})

	var resp Response
	switch {
	case s.Closed():
		resp = s.closed()
	case s.pending != nil:
		resp = s.reply(ctx, text)
	default:
		resp = s.dispatch(ctx, text, s.parser.Parse(text))
	}
	return s.finishTurn(resp)
}

// Abort discards every operation and restores the baseline draft.
func (s *Session) Abort() Response {
	if s.Closed() {
		return s.finishTurn(s.closed())
	}
	return s.finishTurn(s.abort())
}

func (s *Session) finishTurn(resp Response) Response {
	resp.State = s.state
	s.metrics.Command(string(resp.Outcome))

	ev := otel.Event{
		Level:     otel.LevelInfo,
		Comp:      "edit",
		SessionID: s.id,
		Reason:    string(resp.Outcome),
		Msg:       resp.Message,
	}
	if resp.Err != nil {
		ev.Err = resp.Err.Error()
	}
	switch resp.Outcome {
	case OutcomeApplied, OutcomeUndone:
		ev.Kind = otel.KindSessionApplied
		ev.Count = len(resp.Applied)
	case OutcomeClarify:
		ev.Kind = otel.KindSessionClarify
		ev.Count = len(resp.Candidates)
	case OutcomeNoMatch:
		ev.Kind = otel.KindSessionNoMatch
	case OutcomeDone:
		ev.Kind = otel.KindSessionDone
		ev.Count = len(s.log)
	case OutcomeAborted:
		ev.Kind = otel.KindSessionAborted
	case OutcomeFailed:
		ev.Kind = otel.KindError
		ev.Level = otel.LevelError
	default:
		return resp
	}
	s.journal.Emit(ev)
	return resp
}

func (s *Session) closed() Response {
	return Response{
		Outcome: OutcomeClosed,
		Message: "This session is over.",
		Err:     ErrSessionClosed,
	}
}

func (s *Session) dispatch(ctx context.Context, text string, in Intent) Response {
	switch in := in.(type) {
	case Done:
		return s.finish(ctx)
	case Abort:
		return s.abort()
	case Refresh:
		return Response{Outcome: OutcomeRefreshed, Summary: s.Summary()}
	case Undo:
		return s.undo(text)
	case Move:
		return s.resolve(text, in, in.Fragment, in.From, in.All)
	case Remove:
		return s.resolve(text, in, in.Fragment, in.From, in.All)
	case Reorder:
		return s.resolve(text, in, in.Fragment, "", false)
	case GroupTogether:
		return s.together(text, in)
	case Unknown:
		return Response{Outcome: OutcomeUnknown, Message: helpText}
	}
	return Response{Outcome: OutcomeUnknown, Message: helpText}
}

// resolve finds the targets of a move, remove or reorder and either
// applies the intent or asks which group was meant.
func (s *Session) resolve(text string, in Intent, fragment string, scope model.Section, all bool) Response {
	if fragment == "" {
		return s.noMatch(fragment, "Which story? Describe it with a few words from the headline.")
	}

	var cands []Candidate
	if cat, ok := s.resolver.Category(fragment); ok {
		cands = s.categoryCandidates(cat, scope)
		all = true
	} else {
		cands = s.resolver.Candidates(s.draft, fragment, scope)
		if len(cands) == 0 && scope != "" {
			cands = s.resolver.Candidates(s.draft, fragment, "")
		}
	}
	if len(cands) == 0 {
		return s.noMatch(fragment, "")
	}

	if all {
		if _, ok := in.(Reorder); !ok {
			return s.apply(text, in, cands, true)
		}
	}
	picked, ambiguous := s.resolver.Pick(cands)
	if ambiguous {
		return s.clarify(text, in, picked, fragment)
	}
	return s.apply(text, in, picked, false)
}

// categoryCandidates lists the groups in scope whose headlines hit an
// exclusion category. Skip is only searched when named.
func (s *Session) categoryCandidates(cat config.Category, scope model.Section) []Candidate {
	var out []Candidate
	for _, sec := range s.draft.Sections() {
		if scope != "" && sec != scope {
			continue
		}
		if scope == "" && sec.IsSkip() {
			continue
		}
		for i, g := range s.draft.Groups(sec) {
			for _, h := range s.screener.ScreenGroup(g).Hits {
				if h.Category.Name == cat.Name {
					out = append(out, Candidate{Group: g, Section: sec, Index: i, Score: scoreExact})
					break
				}
			}
		}
	}
	return out
}

func (s *Session) noMatch(fragment, msg string) Response {
	if msg == "" {
		msg = fmt.Sprintf("No story matches %q. Nothing changed.", fragment)
	}
	return Response{
		Outcome: OutcomeNoMatch,
		Message: msg,
		Err:     fmt.Errorf("%w: no story matches %q", model.ErrAmbiguousCommand, fragment),
	}
}

func (s *Session) clarify(text string, in Intent, cands []Candidate, fragment string) Response {
	s.pending = &pending{command: text, intent: in, candidates: cands}
	s.state = AwaitingClarification

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d stories match. Which one?\n", len(cands))
	for i, c := range cands {
		fmt.Fprintf(&sb, "  %d. %s [%s]\n", i+1, render.Line(c.Group), s.display(c.Section))
	}
	sb.WriteString("Reply with a number, all, a few more words, or cancel.")
	return Response{
		Outcome:    OutcomeClarify,
		Message:    sb.String(),
		Candidates: cands,
		Err:        fmt.Errorf("%w: %d stories match %q", model.ErrAmbiguousCommand, len(cands), fragment),
	}
}

// reply handles the editor's answer to a clarification.
func (s *Session) reply(ctx context.Context, text string) Response {
	p := s.pending
	words := commandWords(text)
	switch strings.Join(words, " ") {
	case "cancel", "never mind", "nevermind", "none", "neither", "no", "nope":
		s.clearPending()
		return Response{Outcome: OutcomeCancelled, Message: "OK, nothing changed."}
	case "all", "both", "all of them", "both of them", "everything":
		s.clearPending()
		return s.applyPending(p, p.candidates)
	}

	if picks, ok := numbers(words, len(p.candidates)); ok {
		if len(picks) == 0 {
			return s.clarify(p.command, p.intent, p.candidates, fmt.Sprintf("pick 1 to %d", len(p.candidates)))
		}
		var chosen []Candidate
		for _, n := range picks {
			chosen = append(chosen, p.candidates[n])
		}
		s.clearPending()
		return s.applyPending(p, chosen)
	}

	if in := s.parser.Parse(text); Targeted(in) {
		s.clearPending()
		return s.dispatch(ctx, text, in)
	}

	narrowed := s.narrow(p.candidates, text)
	if len(narrowed) == 0 {
		resp := s.clarify(p.command, p.intent, p.candidates, text)
		resp.Message = fmt.Sprintf("None of those match %q.\n%s", text, resp.Message)
		return resp
	}
	picked, ambiguous := s.resolver.Pick(narrowed)
	if ambiguous {
		return s.clarify(p.command, p.intent, picked, text)
	}
	s.clearPending()
	return s.applyPending(p, picked)
}

// narrow filters clarification candidates by a reply. Section names in
// the reply select candidates placed there; any remaining words must
// match the headline. Section names that fit no candidate are read as
// headline words instead.
func (s *Session) narrow(cands []Candidate, text string) []Candidate {
	secs, rest := s.parser.Mentions(text)
	var inSection []Candidate
	for _, c := range cands {
		if slices.Contains(secs, c.Section) {
			inSection = append(inSection, c)
		}
	}
	if len(inSection) == 0 {
		return s.resolver.Narrow(cands, text)
	}
	if frag := fragment(rest); frag != "" {
		return s.resolver.Narrow(inSection, frag)
	}
	return inSection
}

func (s *Session) applyPending(p *pending, cands []Candidate) Response {
	if g, ok := p.intent.(GroupTogether); ok {
		return s.merge(p.command, g, cands)
	}
	return s.apply(p.command, p.intent, s.refresh(cands), len(cands) > 1)
}

// refresh re-reads candidate positions, which may have shifted since they
// were scored.
func (s *Session) refresh(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if sec, idx, ok := s.draft.Locate(c.Group.ID); ok {
			c.Section, c.Index = sec, idx
			out = append(out, c)
		}
	}
	return out
}

func (s *Session) clearPending() {
	s.pending = nil
	s.state = AwaitingCommand
}

// numbers parses replies like "2", "1 and 3" or "the second one" into
// zero-based candidate indexes. ok is false when the reply is not a
// numeric answer at all; an out of range answer returns ok with no picks.
func numbers(words []string, n int) ([]int, bool) {
	var picks []int
	seen := make(map[int]bool)
	for _, w := range words {
		switch w {
		case "the", "one", "number", "no", "and", "option", "story", "#":
			continue
		}
		idx := -1
		if v, err := strconv.Atoi(strings.TrimPrefix(w, "#")); err == nil {
			idx = v - 1
		} else if pos, ok := ordinals[w]; ok {
			idx = pos
			if pos < 0 {
				idx = n - 1
			}
		} else {
			return nil, false
		}
		if idx < 0 || idx >= n {
			return nil, true
		}
		if !seen[idx] {
			seen[idx] = true
			picks = append(picks, idx)
		}
	}
	return picks, len(picks) > 0
}

// apply runs a resolved move, remove or reorder. Bulk moves and removes
// pass each group through keepOutOfSweep and report the ones left in
// place as kept.
func (s *Session) apply(text string, in Intent, cands []Candidate, bulk bool) Response {
	switch in := in.(type) {
	case Move:
		return s.relocate(text, model.OpMove, in.To, cands, bulk)
	case Remove:
		return s.relocate(text, model.OpRemove, model.SectionSkip, cands, bulk)
	case Reorder:
		return s.reorder(text, in, cands[0])
	case GroupTogether:
		return s.merge(text, in, cands)
	}
	return Response{Outcome: OutcomeUnknown, Message: helpText}
}

func (s *Session) relocate(text string, kind model.OpKind, to model.Section, cands []Candidate, bulk bool) Response {
	if !s.draft.HasSection(to) {
		return Response{
			Outcome: OutcomeNoMatch,
			Message: fmt.Sprintf("There is no %q section.", to),
			Err:     fmt.Errorf("%w: %s", model.ErrUnknownSection, to),
		}
	}

	var resp Response
	var targets []Candidate
	var already []string
	for _, c := range cands {
		if bulk {
			if reason, keep := s.keepOutOfSweep(c, kind, to); keep {
				resp.Kept = append(resp.Kept, Kept{Group: c.Group.ID, Headline: c.Group.RepresentativeHeadline, Reason: reason})
				continue
			}
		}
		if c.Section == to {
			already = append(already, c.Group.RepresentativeHeadline)
			continue
		}
		targets = append(targets, c)
	}

	if len(targets) == 0 {
		resp.Outcome = OutcomeNothing
		resp.Message = nothingMessage(already, resp.Kept, s.display(to))
		return resp
	}

	e := &entry{}
	op := model.Operation{
		ID:      uuid.NewString(),
		Kind:    kind,
		To:      to,
		At:      s.now(),
		Command: text,
	}
	for _, c := range targets {
		sec, idx, _ := s.draft.Locate(c.Group.ID)
		e.before = append(e.before, placement{group: c.Group, section: sec, index: idx})
		op.Targets = append(op.Targets, c.Group.ID)
	}
	op.From = e.before[0].section
	for _, p := range e.before[1:] {
		if p.section != op.From {
			op.From = ""
			break
		}
	}
	if len(e.before) == 1 {
		op.FromIndex = e.before[0].index
	}
	for _, c := range targets {
		if _, _, err := s.draft.Move(c.Group.ID, to, -1); err != nil {
			logging.Error("apply move", "group", c.Group.ID, "to", to, "err", err)
		}
	}
	e.op = op
	s.record(e)

	verb := "Moved"
	if kind == model.OpRemove {
		verb = "Removed"
	}
	var sb strings.Builder
	for _, c := range targets {
		if kind == model.OpRemove {
			fmt.Fprintf(&sb, "%s %q.\n", verb, c.Group.RepresentativeHeadline)
		} else {
			fmt.Fprintf(&sb, "%s %q to %s.\n", verb, c.Group.RepresentativeHeadline, s.display(to))
		}
	}
	for _, k := range resp.Kept {
		fmt.Fprintf(&sb, "Kept %q: %s.\n", k.Headline, k.Reason)
	}
	resp.Outcome = OutcomeApplied
	resp.Applied = []model.Operation{op}
	resp.Message = strings.TrimRight(sb.String(), "\n")
	resp.Warnings = s.capacityWarnings(to)
	resp.Summary = s.Summary()
	return resp
}

// keepOutOfSweep applies editorial judgment to one group of a bulk move
// or remove. Sweeps into the top section leave isolated incidents behind.
// Removals and sweeps out of the top section leave groups whose exclusion
// hit is overridden by institutional context.
func (s *Session) keepOutOfSweep(c Candidate, kind model.OpKind, to model.Section) (string, bool) {
	sc := s.screener.ScreenGroup(c.Group)
	switch {
	case to == s.top:
		if sc.Isolated() {
			return "isolated incident, " + sc.Reason(), true
		}
	case kind == model.OpRemove || c.Section == s.top:
		if sc.Overridden() {
			return sc.Reason(), true
		}
	}
	return "", false
}

func nothingMessage(already []string, kept []Kept, to string) string {
	var sb strings.Builder
	for _, h := range already {
		fmt.Fprintf(&sb, "%q is already in %s.\n", h, to)
	}
	for _, k := range kept {
		fmt.Fprintf(&sb, "Kept %q: %s.\n", k.Headline, k.Reason)
	}
	sb.WriteString("Nothing changed.")
	return sb.String()
}

func (s *Session) capacityWarnings(sec model.Section) []string {
	if sec.IsSkip() {
		return nil
	}
	for _, c := range s.sections {
		if c.Section() == sec && c.Max > 0 && s.draft.Count(sec) > c.Max {
			return []string{fmt.Sprintf("%s now has %d stories, over its maximum of %d.", c.DisplayName(), s.draft.Count(sec), c.Max)}
		}
	}
	return nil
}

func (s *Session) reorder(text string, in Reorder, c Candidate) Response {
	sec, from, ok := s.draft.Locate(c.Group.ID)
	if !ok {
		return s.noMatch(in.Fragment, "")
	}
	to := in.Position
	n := s.draft.Count(sec)
	if to < 0 || to >= n {
		to = n - 1
	}
	if to == from {
		return Response{
			Outcome: OutcomeNothing,
			Message: fmt.Sprintf("%q is already at position %d in %s.", c.Group.RepresentativeHeadline, from+1, s.display(sec)),
		}
	}
	if _, err := s.draft.Reorder(c.Group.ID, to); err != nil {
		return Response{Outcome: OutcomeNoMatch, Message: err.Error(), Err: err}
	}

	op := model.Operation{
		ID:        uuid.NewString(),
		Kind:      model.OpReorder,
		Targets:   []string{c.Group.ID},
		From:      sec,
		To:        sec,
		FromIndex: from,
		ToIndex:   to,
		At:        s.now(),
		Command:   text,
	}
	s.record(&entry{op: op, before: []placement{{group: c.Group, section: sec, index: from}}})
	return Response{
		Outcome: OutcomeApplied,
		Applied: []model.Operation{op},
		Message: fmt.Sprintf("Moved %q to position %d in %s.", c.Group.RepresentativeHeadline, to+1, s.display(sec)),
		Summary: s.Summary(),
	}
}

// together resolves the fragments of a group-together command. One
// fragment merges everything it matches; several fragments each pick
// their best match.
func (s *Session) together(text string, in GroupTogether) Response {
	if len(in.Fragments) == 0 {
		return s.noMatch("", "Which stories should be grouped?")
	}
	if len(in.Fragments) == 1 {
		cands := s.resolver.Candidates(s.draft, in.Fragments[0], "")
		if len(cands) < 2 {
			return s.noMatch(in.Fragments[0], fmt.Sprintf("Fewer than two stories match %q. Nothing changed.", in.Fragments[0]))
		}
		return s.merge(text, in, cands)
	}

	var targets []Candidate
	for _, f := range in.Fragments {
		cands := s.resolver.Candidates(s.draft, f, "")
		if len(cands) == 0 {
			return s.noMatch(f, "")
		}
		picked, ambiguous := s.resolver.Pick(cands)
		if ambiguous {
			return s.clarify(text, in, picked, f)
		}
		targets = append(targets, picked[0])
	}
	return s.merge(text, in, targets)
}

// merge fuses the candidates into one group placed where the earliest of
// them sat.
func (s *Session) merge(text string, in GroupTogether, cands []Candidate) Response {
	cands = s.refresh(cands)
	seen := make(map[string]bool)
	var targets []Candidate
	for _, c := range cands {
		if !seen[c.Group.ID] {
			seen[c.Group.ID] = true
			targets = append(targets, c)
		}
	}
	if len(targets) < 2 {
		return Response{Outcome: OutcomeNothing, Message: "Grouping needs at least two different stories. Nothing changed."}
	}

	rank := make(map[model.Section]int)
	for i, sec := range s.draft.Sections() {
		rank[sec] = i
	}
	sort.SliceStable(targets, func(i, j int) bool {
		if rank[targets[i].Section] != rank[targets[j].Section] {
			return rank[targets[i].Section] < rank[targets[j].Section]
		}
		return targets[i].Index < targets[j].Index
	})

	groups := make([]*model.Group, len(targets))
	e := &entry{}
	for i, c := range targets {
		groups[i] = c.Group
		e.before = append(e.before, placement{group: c.Group, section: c.Section, index: c.Index})
	}
	merged := mergeGroups(groups)
	first := targets[0]

	for _, c := range targets {
		if _, _, _, err := s.draft.Detach(c.Group.ID); err != nil {
			logging.Error("detach for merge", "group", c.Group.ID, "err", err)
		}
	}
	if err := s.draft.Insert(first.Section, first.Index, merged); err != nil {
		logging.Error("insert merged group", "group", merged.ID, "err", err)
	}

	op := model.Operation{
		ID:      uuid.NewString(),
		Kind:    model.OpMerge,
		From:    first.Section,
		To:      first.Section,
		ToIndex: first.Index,
		Merged:  merged.ID,
		At:      s.now(),
		Command: text,
	}
	for _, g := range groups {
		op.Targets = append(op.Targets, g.ID)
	}
	e.op = op
	e.merged = merged
	s.record(e)

	return Response{
		Outcome:  OutcomeApplied,
		Applied:  []model.Operation{op},
		Message:  fmt.Sprintf("Grouped %d stories as %q in %s.", len(groups), merged.RepresentativeHeadline, s.display(first.Section)),
		Warnings: s.capacityWarnings(first.Section),
		Summary:  s.Summary(),
	}
}

// mergeGroups builds the union of groups. The first group supplies the
// headline and classification.
func mergeGroups(groups []*model.Group) *model.Group {
	first := groups[0]
	m := &model.Group{
		ID:                     first.ID + "+" + strconv.Itoa(len(groups)-1),
		RepresentativeHeadline: first.RepresentativeHeadline,
		Seq:                    first.Seq,
	}
	stories := make(map[string]bool)
	keys := make(map[string]bool)
	for _, g := range groups {
		if g.Seq < m.Seq {
			m.Seq = g.Seq
		}
		for _, st := range g.Members {
			if !stories[st.ID] {
				stories[st.ID] = true
				m.Members = append(m.Members, st)
			}
		}
		for _, k := range g.Signature {
			if !keys[k] {
				keys[k] = true
				m.Signature = append(m.Signature, k)
			}
		}
	}
	sort.Strings(m.Signature)
	class := first.Class
	class.ReasonTags = append(append([]string(nil), class.ReasonTags...), "merged")
	m.SetClassification(class)
	return m
}

func (s *Session) record(e *entry) {
	s.history = append(s.history, e)
	s.log = append(s.log, e.op)
	logging.Info("edit applied", "session", s.id, "op", e.op.Kind, "targets", len(e.op.Targets), "to", e.op.To)
}

// undo reverts the most recent operation that has not been reverted.
// Later entries are all undone or inverses, so the draft is exactly the
// state the operation left behind.
func (s *Session) undo(text string) Response {
	var e *entry
	for i := len(s.history) - 1; i >= 0; i-- {
		if !s.history[i].undone && !s.history[i].inverse {
			e = s.history[i]
			break
		}
	}
	if e == nil {
		return Response{Outcome: OutcomeNothing, Message: "Nothing to undo."}
	}

	if e.merged != nil {
		if _, _, _, err := s.draft.Detach(e.merged.ID); err != nil {
			logging.Error("undo merge", "group", e.merged.ID, "err", err)
		}
	} else {
		for _, p := range e.before {
			if _, _, _, err := s.draft.Detach(p.group.ID); err != nil {
				logging.Error("undo detach", "group", p.group.ID, "err", err)
			}
		}
	}

	rank := make(map[model.Section]int)
	for i, sec := range s.draft.Sections() {
		rank[sec] = i
	}
	before := append([]placement(nil), e.before...)
	sort.SliceStable(before, func(i, j int) bool {
		if rank[before[i].section] != rank[before[j].section] {
			return rank[before[i].section] < rank[before[j].section]
		}
		return before[i].index < before[j].index
	})
	for _, p := range before {
		if err := s.draft.Insert(p.section, p.index, p.group); err != nil {
			logging.Error("undo insert", "group", p.group.ID, "err", err)
		}
	}

	inv := model.Operation{
		ID:        uuid.NewString(),
		Kind:      inverseKind(e.op.Kind),
		Targets:   append([]string(nil), e.op.Targets...),
		From:      e.op.To,
		To:        e.op.From,
		FromIndex: e.op.ToIndex,
		ToIndex:   e.op.FromIndex,
		Merged:    e.op.Merged,
		Reverts:   e.op.ID,
		At:        s.now(),
		Command:   text,
	}
	e.undone = true
	s.history = append(s.history, &entry{op: inv, inverse: true})
	s.log = append(s.log, inv)
	logging.Info("edit undone", "session", s.id, "op", e.op.Kind, "reverts", e.op.ID)

	return Response{
		Outcome: OutcomeUndone,
		Applied: []model.Operation{inv},
		Message: fmt.Sprintf("Undid %s: %s", e.op.Kind, e.op.Command),
		Summary: s.Summary(),
	}
}

func inverseKind(k model.OpKind) model.OpKind {
	switch k {
	case model.OpMerge:
		return model.OpSplit
	case model.OpRemove:
		return model.OpMove
	}
	return k
}

// finish publishes the draft. A publisher failure leaves the session
// awaiting commands so done can be retried.
func (s *Session) finish(ctx context.Context) Response {
	ed := model.Edition{
		ID:          uuid.NewString(),
		SessionID:   s.id,
		FinalizedAt: s.now(),
		Draft:       s.draft.Clone(),
		Ops:         s.Log(),
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ed); err != nil {
			logging.Error("publish edition", "session", s.id, "edition", ed.ID, "err", err)
			return Response{
				Outcome: OutcomeFailed,
				Message: fmt.Sprintf("Publishing failed: %v. The draft is unchanged; say done to retry.", err),
				Err:     fmt.Errorf("publish edition: %w", err),
			}
		}
	}
	s.state = Finished
	logging.Info("edition finalized", "session", s.id, "edition", ed.ID, "ops", len(ed.Ops))
	return Response{
		Outcome: OutcomeDone,
		Message: fmt.Sprintf("Edition finalized with %d edits.", len(ed.Ops)),
		Summary: s.Summary(),
		Edition: &ed,
	}
}

func (s *Session) abort() Response {
	s.draft = s.baseline.Clone()
	s.log = nil
	s.history = nil
	s.pending = nil
	s.state = Aborted
	logging.Info("session aborted", "session", s.id)
	return Response{
		Outcome: OutcomeAborted,
		Message: "Session aborted. The draft is back to its starting state.",
		Summary: s.Summary(),
		Err:     model.ErrSessionAborted,
	}
}

func (s *Session) display(sec model.Section) string {
	if sec.IsSkip() {
		return "Skipped"
	}
	for _, c := range s.sections {
		if c.Section() == sec {
			return c.DisplayName()
		}
	}
	return string(sec)
}
