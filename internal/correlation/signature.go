package correlation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/abelbrown/roundup/internal/config"
)

// FeatureKind classifies one signature feature.
type FeatureKind int

const (
	KindTerm FeatureKind = iota
	KindEvent
	KindNumber
	KindEntity
)

// Feature weights. Proper nouns and aliases dominate, numbers and event
// classes count double, everything else is a plain term.
var kindWeight = map[FeatureKind]int{
	KindTerm:   1,
	KindEvent:  2,
	KindNumber: 2,
	KindEntity: 3,
}

const (
	eventPrefix  = "event:"
	numberPrefix = "num:"
)

// titleCaseRatio is the share of capitalized long words above which a
// headline is treated as Title Case and capitals stop signaling names.
const titleCaseRatio = 0.6

// Signature is the weighted feature set extracted from one headline.
type Signature struct {
	Weights map[string]int
	Kinds   map[string]FeatureKind
}

// Total is the sum of all feature weights.
func (s Signature) Total() int {
	t := 0
	for _, w := range s.Weights {
		t += w
	}
	return t
}

// Specificity counts proper-noun and numeric features.
func (s Signature) Specificity() int {
	n := 0
	for _, k := range s.Kinds {
		if k == KindEntity || k == KindNumber {
			n++
		}
	}
	return n
}

// Keys returns feature keys in sorted order.
func (s Signature) Keys() []string {
	keys := make([]string, 0, len(s.Weights))
	for k := range s.Weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s Signature) add(key string, kind FeatureKind) {
	w := kindWeight[kind]
	if w > s.Weights[key] {
		s.Weights[key] = w
		s.Kinds[key] = kind
	}
}

// merge folds other into s keeping the heavier weight per key.
func (s Signature) merge(other Signature) {
	for k, w := range other.Weights {
		if w > s.Weights[k] {
			s.Weights[k] = w
			s.Kinds[k] = other.Kinds[k]
		}
	}
}

func newSignature() Signature {
	return Signature{Weights: make(map[string]int), Kinds: make(map[string]FeatureKind)}
}

// Overlap returns the shared weight (minimum per shared key) and the
// number of shared keys.
func Overlap(a, b Signature) (weight, count int) {
	if len(b.Weights) < len(a.Weights) {
		a, b = b, a
	}
	for k, wa := range a.Weights {
		if wb, ok := b.Weights[k]; ok {
			weight += min(wa, wb)
			count++
		}
	}
	return weight, count
}

// Similarity is the shared weight over the smaller signature's total, so
// a short headline fully contained in a longer one scores 1.
func Similarity(a, b Signature) (score float64, shared int) {
	w, n := Overlap(a, b)
	denom := min(a.Total(), b.Total())
	if denom == 0 {
		return 0, n
	}
	return float64(w) / float64(denom), n
}

var (
	numberRe    = regexp.MustCompile(`^\$?(\d+(?:[.,]\d+)*)(%|k|m|b|bn|mm|thousand|million|billion|trillion)?$`)
	magnitudeOf = map[string]string{
		"k": "thousand", "thousand": "thousand", "thousands": "thousand",
		"m": "million", "mm": "million", "million": "million", "millions": "million",
		"b": "billion", "bn": "billion", "billion": "billion", "billions": "billion",
		"trillion": "trillion", "trillions": "trillion",
	}
)

// Extractor turns headlines into signatures using the taxonomy's grouping
// vocabulary.
type Extractor struct {
	events     map[string]string // surface form -> class
	aliases    map[string]string
	ubiquitous map[string]bool
	stopwords  map[string]bool
}

// NewExtractor builds an Extractor from the taxonomy.
func NewExtractor(tax *config.Taxonomy) *Extractor {
	e := &Extractor{
		events:     make(map[string]string),
		aliases:    tax.Grouping.Aliases,
		ubiquitous: make(map[string]bool),
		stopwords:  make(map[string]bool),
	}
	for class, forms := range tax.Grouping.Events {
		for _, f := range forms {
			e.events[f] = class
		}
	}
	for _, w := range tax.Grouping.Ubiquitous {
		e.ubiquitous[w] = true
	}
	for _, w := range tax.Grouping.Stopwords {
		e.stopwords[w] = true
	}
	return e
}

// Extract builds the signature of one headline.
func (e *Extractor) Extract(headline string) Signature {
	sig := newSignature()
	toks := Tokenize(headline)
	words := make([]string, len(toks))
	for i, t := range toks {
		words[i] = strings.ReplaceAll(Fold(t), ".", "")
	}
	titleCase := isTitleCase(toks)

	for i := 0; i < len(toks); i++ {
		if i+1 < len(toks) {
			bigram := words[i] + " " + words[i+1]
			if canon, ok := e.aliases[bigram]; ok {
				sig.add(canon, KindEntity)
				i++
				continue
			}
			if e.ubiquitous[bigram] {
				i++
				continue
			}
		}

		w := words[i]
		if m := numberRe.FindStringSubmatch(w); m != nil {
			// "2 billion" names the magnitude once.
			if i+1 < len(words) && magnitudeOf[words[i+1]] != "" {
				sig.add(numberPrefix+magnitudeOf[words[i+1]], KindNumber)
				i++
				continue
			}
			if mag := magnitudeOf[m[2]]; mag != "" {
				sig.add(numberPrefix+mag, KindNumber)
			} else {
				sig.add(numberPrefix+strings.ReplaceAll(m[1], ",", ""), KindNumber)
			}
			continue
		}
		if mag := magnitudeOf[w]; mag != "" && len(w) > 2 {
			sig.add(numberPrefix+mag, KindNumber)
			continue
		}
		if e.stopwords[w] || e.ubiquitous[w] {
			continue
		}
		if canon, ok := e.aliases[w]; ok {
			sig.add(canon, KindEntity)
			continue
		}
		if class, ok := e.events[w]; ok {
			sig.add(eventPrefix+class, KindEvent)
			continue
		}
		if e.properNoun(toks[i], i, titleCase) {
			sig.add(stem(w), KindEntity)
			continue
		}
		if len(w) >= 3 {
			sig.add(stem(w), KindTerm)
		}
	}
	return sig
}

func (e *Extractor) properNoun(tok string, pos int, titleCase bool) bool {
	if isAcronym(tok) {
		return true
	}
	if pos == 0 || titleCase {
		return false
	}
	return isCapitalized(tok)
}

func isTitleCase(toks []string) bool {
	long, caps := 0, 0
	for _, t := range toks {
		if letterCount(t) <= 3 {
			continue
		}
		long++
		if isCapitalized(t) {
			caps++
		}
	}
	return long > 0 && float64(caps)/float64(long) > titleCaseRatio
}

// DisplayKey strips the internal prefix from a feature key for matching
// against editor text.
func DisplayKey(key string) string {
	key = strings.TrimPrefix(key, eventPrefix)
	return strings.TrimPrefix(key, numberPrefix)
}
