package correlation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining accents so "Peña" and "pena"
// compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokenize splits text into word tokens, keeping the characters that
// matter for numbers and abbreviations ($2.5B, 40%, U.S.) and trimming
// trailing punctuation and possessives. Case is preserved.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("$%.,'’-&", r))
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSuffix(f, "'s")
		f = strings.TrimSuffix(f, "’s")
		f = strings.Trim(f, ".,'’-&")
		if f != "" && f != "$" && f != "%" {
			out = append(out, f)
		}
	}
	return out
}

// Words returns folded tokens with inner dots removed.
func Words(text string) []string {
	toks := Tokenize(text)
	for i, t := range toks {
		toks[i] = strings.ReplaceAll(Fold(t), ".", "")
	}
	return toks
}

// ContainsWord checks if text contains word as a whole word (not
// substring). Both are expected to be folded already; word may span
// several words ("attorney general").
func ContainsWord(text, word string) bool {
	if word == "" {
		return false
	}
	idx := strings.Index(text, word)
	if idx < 0 {
		return false
	}

	// Check left boundary
	if idx > 0 && isAlphaNum(text[idx-1]) {
		return ContainsWord(text[idx+len(word):], word)
	}

	// Check right boundary
	end := idx + len(word)
	if end < len(text) && isAlphaNum(text[end]) {
		return ContainsWord(text[end:], word)
	}

	return true
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// stem strips the plural and progressive suffixes that most often split
// the same word across headlines.
func stem(w string) string {
	n := len(w)
	switch {
	case n > 5 && strings.HasSuffix(w, "ing"):
		return w[:n-3]
	case n > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:n-1]
	}
	return w
}

func isAcronym(tok string) bool {
	letters := 0
	for _, r := range tok {
		switch {
		case unicode.IsLetter(r):
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		case r == '.' || r == '&':
		default:
			return false
		}
	}
	return letters >= 2
}

func isCapitalized(tok string) bool {
	for _, r := range tok {
		return unicode.IsUpper(r)
	}
	return false
}

func letterCount(tok string) int {
	n := 0
	for _, r := range tok {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

// ContainsWordPrefix is like ContainsWord but only requires a boundary
// before the match, so "school" matches "schools".
func ContainsWordPrefix(text, word string) bool {
	if word == "" {
		return false
	}
	for off := 0; off < len(text); {
		idx := strings.Index(text[off:], word)
		if idx < 0 {
			return false
		}
		idx += off
		if idx == 0 || !isAlphaNum(text[idx-1]) {
			return true
		}
		off = idx + 1
	}
	return false
}

// Stem applies the light suffix stripping used for signatures, so
// "schools" and "school" compare equal.
func Stem(w string) string {
	return stem(w)
}
