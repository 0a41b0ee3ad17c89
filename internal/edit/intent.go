package edit

import (
	"sort"
	"strconv"
	"strings"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/correlation"
	"github.com/abelbrown/roundup/internal/model"
)

// Intent is a parsed editor command. It is one of Move, Remove, Reorder,
// GroupTogether, Refresh, Done, Undo, Abort or Unknown.
type Intent interface {
	isIntent()
}

// Move relocates matching groups to section To. From narrows the search.
type Move struct {
	Fragment string
	To       model.Section
	From     model.Section
	All      bool
}

// Remove moves matching groups into skip.
type Remove struct {
	Fragment string
	From     model.Section
	All      bool
}

// Reorder moves a group within its section. Position -1 means last.
type Reorder struct {
	Fragment string
	Position int
}

// GroupTogether merges the groups matched by the fragments into one. A
// single fragment merges everything it matches.
type GroupTogether struct {
	Fragments []string
}

type (
	Refresh struct{}
	Done    struct{}
	Undo    struct{}
	Abort   struct{}
)

// Unknown is any text no pattern recognized.
type Unknown struct {
	Text string
}

func (Move) isIntent()          {}
func (Remove) isIntent()        {}
func (Reorder) isIntent()       {}
func (GroupTogether) isIntent() {}
func (Refresh) isIntent()       {}
func (Done) isIntent()          {}
func (Undo) isIntent()          {}
func (Abort) isIntent()         {}
func (Unknown) isIntent()       {}

var bareCommands = map[string]Intent{
	"done":         Done{},
	"finish":       Done{},
	"finished":     Done{},
	"publish":      Done{},
	"ship it":      Done{},
	"lgtm":         Done{},
	"looks good":   Done{},
	"refresh":      Refresh{},
	"show":         Refresh{},
	"show draft":   Refresh{},
	"preview":      Refresh{},
	"list":         Refresh{},
	"draft":        Refresh{},
	"undo":         Undo{},
	"undo that":    Undo{},
	"revert":       Undo{},
	"abort":        Abort{},
	"cancel":       Abort{},
	"quit":         Abort{},
	"discard":      Abort{},
	"start over":   Abort{},
	"throw it out": Abort{},
}

var removeVerbs = setOf("remove", "drop", "delete", "cut", "kill", "scrap", "nix", "skip", "trash", "ditch", "lose", "exclude")

var groupVerbs = setOf("group", "merge", "combine", "cluster", "consolidate")

var negations = setOf("doesn't", "doesnt", "don't", "dont", "not", "shouldn't", "shouldnt", "isn't", "isnt")

var bulkWords = setOf("all", "every", "each", "both", "stories", "articles", "items", "pieces")

var fillers = setOf(
	"move", "moving", "put", "place", "shift", "send", "file", "relocate", "bump", "lead",
	"remove", "drop", "delete", "cut", "kill", "scrap", "nix", "skip", "trash", "ditch", "lose", "exclude",
	"take", "get", "rid", "reorder", "group", "merge", "combine", "cluster", "consolidate",
	"doesn't", "doesnt", "does", "don't", "dont", "not", "shouldn't", "shouldnt", "should", "isn't", "isnt",
	"belong", "belongs", "be", "is", "are", "go", "goes",
	"please", "can", "could", "you", "we", "i", "let's", "lets", "want", "need",
	"the", "a", "an", "this", "that", "these", "those", "it", "its", "there", "here", "just", "also",
	"story", "stories", "article", "articles", "piece", "pieces", "item", "items", "one", "ones", "headline",
	"about", "on", "regarding", "re", "all", "every", "each", "both", "of", "out", "with", "and", "into",
	"in", "from", "under", "to", "together", "first", "last", "top", "bottom", "position", "number", "spot", "slot",
)

var politeness = setOf("please", "can", "could", "would", "you", "i", "we", "want", "need", "to", "let's", "lets", "go", "ahead", "and")

var ordinals = map[string]int{"first": 0, "second": 1, "third": 2, "fourth": 3, "fifth": 4, "last": -1}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

type sectionPhrase struct {
	words   []string
	section model.Section
}

type sectionRef struct {
	section model.Section
	prep    string // to, in, from, out
}

// Parser turns editor text into an Intent using keyword cues and the
// configured section names.
type Parser struct {
	phrases []sectionPhrase
}

// NewParser builds a parser that recognizes each section by its name,
// display name and aliases.
func NewParser(sections []config.SectionConfig) *Parser {
	p := &Parser{}
	seen := make(map[string]bool)
	add := func(text string, sec model.Section) {
		words := correlation.Words(text)
		key := strings.Join(words, " ")
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		p.phrases = append(p.phrases, sectionPhrase{words: words, section: sec})
	}
	for _, s := range sections {
		add(strings.ReplaceAll(s.Name, "_", " "), s.Section())
		add(s.DisplayName(), s.Section())
		for _, a := range s.Aliases {
			add(a, s.Section())
		}
	}
	add("skip", model.SectionSkip)
	add("skipped", model.SectionSkip)

	sort.SliceStable(p.phrases, func(i, j int) bool {
		return len(p.phrases[i].words) > len(p.phrases[j].words)
	})
	return p
}

// Parse classifies one command.
func (p *Parser) Parse(text string) Intent {
	words := commandWords(text)
	if len(words) == 0 {
		return Unknown{Text: text}
	}
	if in, ok := bareCommands[strings.Join(words, " ")]; ok {
		return in
	}

	refs, rest := p.sectionRefs(words)
	if len(rest) == 0 {
		return Unknown{Text: text}
	}

	if isRemove(rest) || refWith(refs, "out") != "" {
		from := refWith(refs, "out")
		if from == "" {
			from = refWith(refs, "from")
		}
		if from == "" {
			from = refWith(refs, "in")
		}
		return Remove{Fragment: fragment(rest), From: from, All: bulk(rest)}
	}

	if groupVerbs[lead(rest)] || contains(rest, "together") {
		return GroupTogether{Fragments: groupFragments(rest)}
	}

	to := refWith(refs, "to")
	from := refWith(refs, "from")
	if to == "" {
		to = refWith(refs, "in")
	} else if from == "" {
		from = refWith(refs, "in")
	}

	if to == "" {
		if pos, body, ok := reorderPosition(rest); ok {
			return Reorder{Fragment: fragment(body), Position: pos}
		}
		return Unknown{Text: text}
	}

	if to.IsSkip() {
		return Remove{Fragment: fragment(rest), From: from, All: bulk(rest)}
	}
	return Move{Fragment: fragment(rest), To: to, From: from, All: bulk(rest)}
}

// commandWords folds and tokenizes text, dropping trailing politeness.
func commandWords(text string) []string {
	text = strings.ReplaceAll(text, "’", "'")
	words := correlation.Words(text)
	for len(words) > 0 && (words[len(words)-1] == "please" || words[len(words)-1] == "thanks") {
		words = words[:len(words)-1]
	}
	return words
}

// sectionRefs pulls "to politics", "out of the top stories" and similar
// phrases out of words. Bare section names without a preposition stay in
// the fragment.
func (p *Parser) sectionRefs(words []string) ([]sectionRef, []string) {
	var refs []sectionRef
	var rest []string
	for i := 0; i < len(words); {
		prep, n := prepAt(words, i)
		if n > 0 {
			j := i + n
			if j < len(words) && words[j] == "the" {
				j++
			}
			if sec, m, ok := p.phraseAt(words, j); ok {
				k := j + m
				if k < len(words) && words[k] == "section" {
					k++
				}
				refs = append(refs, sectionRef{section: sec, prep: prep})
				i = k
				continue
			}
		}
		rest = append(rest, words[i])
		i++
	}
	return refs, rest
}

// Mentions finds every section named anywhere in text, with or without a
// preposition, and returns the words left over. Clarification replies
// such as "the one in top stories" narrow by section this way.
func (p *Parser) Mentions(text string) ([]model.Section, []string) {
	words := commandWords(text)
	var secs []model.Section
	var rest []string
	for i := 0; i < len(words); {
		if sec, n, ok := p.phraseAt(words, i); ok {
			secs = append(secs, sec)
			i += n
			continue
		}
		rest = append(rest, words[i])
		i++
	}
	return secs, rest
}

// Targeted reports whether in is a bare command or names what it acts
// on. A move or remove with an empty fragment only points at a section.
func Targeted(in Intent) bool {
	switch in := in.(type) {
	case Move:
		return in.Fragment != ""
	case Remove:
		return in.Fragment != ""
	case Reorder:
		return in.Fragment != ""
	case GroupTogether:
		return len(in.Fragments) > 0
	case Unknown:
		return false
	}
	return true
}

func prepAt(words []string, i int) (string, int) {
	switch words[i] {
	case "to", "into", "under", "onto":
		return "to", 1
	case "in", "within":
		return "in", 1
	case "from":
		return "from", 1
	case "out":
		if i+1 < len(words) && words[i+1] == "of" {
			return "out", 2
		}
	}
	return "", 0
}

func (p *Parser) phraseAt(words []string, i int) (model.Section, int, bool) {
	for _, ph := range p.phrases {
		if i+len(ph.words) > len(words) {
			continue
		}
		match := true
		for k, w := range ph.words {
			if words[i+k] != w {
				match = false
				break
			}
		}
		if match {
			return ph.section, len(ph.words), true
		}
	}
	return "", 0, false
}

func refWith(refs []sectionRef, prep string) model.Section {
	for _, r := range refs {
		if r.prep == prep {
			return r.section
		}
	}
	return ""
}

// lead returns the first word after any polite preamble.
func lead(words []string) string {
	for _, w := range words {
		if !politeness[w] {
			return w
		}
	}
	return ""
}

func isRemove(words []string) bool {
	if removeVerbs[lead(words)] {
		return true
	}
	if contains(words, "rid") {
		return true
	}
	for i, w := range words {
		if (w == "belong" || w == "belongs") && i > 0 && negations[words[i-1]] {
			return true
		}
	}
	return false
}

// reorderPosition finds "first", "to the top", "position 3" and similar,
// returning the zero-based position and the words without the phrase.
func reorderPosition(words []string) (int, []string, bool) {
	n := len(words)
	last := words[n-1]

	if n >= 2 && (words[n-2] == "position" || words[n-2] == "number" || words[n-2] == "spot" || words[n-2] == "slot") {
		if v, err := strconv.Atoi(last); err == nil && v > 0 {
			return v - 1, words[:n-2], true
		}
	}
	if pos, ok := ordinals[last]; ok {
		return pos, words[:n-1], true
	}
	if n >= 3 && words[n-2] == "the" && (words[n-3] == "to" || words[n-3] == "at") {
		switch last {
		case "top":
			return 0, words[:n-3], true
		case "bottom", "end":
			return -1, words[:n-3], true
		}
	}
	for i := 0; i+1 < n; i++ {
		if words[i] == "lead" && words[i+1] == "with" {
			return 0, words[i+2:], true
		}
		if !politeness[words[i]] {
			break
		}
	}
	return 0, nil, false
}

func groupFragments(words []string) []string {
	var out []string
	var part []string
	flush := func() {
		if f := fragment(part); f != "" {
			out = append(out, f)
		}
		part = nil
	}
	for _, w := range words {
		if w == "and" || w == "with" || w == "&" {
			flush()
			continue
		}
		part = append(part, w)
	}
	flush()
	return out
}

func fragment(words []string) string {
	var keep []string
	for _, w := range words {
		if !fillers[w] {
			keep = append(keep, w)
		}
	}
	return strings.Join(keep, " ")
}

func bulk(words []string) bool {
	for _, w := range words {
		if bulkWords[w] {
			return true
		}
	}
	return false
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
