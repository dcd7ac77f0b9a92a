// Package vocab corrects learner transcriptions against the lesson's known
// vocabulary before they are analysed for goal progress.
//
// Hosted transcription regularly mangles the very words a lesson is trying to
// teach ("cappuccino" → "cup of chino"), which makes the goal-progress check
// fail on utterances the learner actually got right. The corrector combines
// Double Metaphone phonetic encoding with Jaro-Winkler string similarity:
// a transcript word is replaced by a vocabulary word only when the two share
// a phonetic code and their similarity clears the phonetic threshold, or —
// failing any phonetic overlap — when pure string similarity clears a higher
// fuzzy threshold.
package vocab

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.88
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.88.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// Corrector replaces near-miss transcript words with lesson vocabulary.
// It is read-only after construction and safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	words []string
	codes []map[string]struct{} // Double Metaphone codes per vocabulary word
}

// New returns a Corrector for the given vocabulary. An empty vocabulary
// yields a corrector that returns every input unchanged.
func New(vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	for _, w := range vocabulary {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		c.words = append(c.words, w)
		c.codes = append(c.codes, codesFor(w))
	}
	return c
}

// Correct returns text with near-miss words replaced by their vocabulary
// form. Punctuation and words without a confident match are left untouched.
func (c *Corrector) Correct(text string) string {
	if len(c.words) == 0 || text == "" {
		return text
	}

	fields := strings.Fields(text)
	changed := false
	for i, f := range fields {
		core, prefix, suffix := trimPunct(f)
		if core == "" {
			continue
		}
		if repl, ok := c.match(strings.ToLower(core)); ok && !strings.EqualFold(repl, core) {
			fields[i] = prefix + matchCase(repl, core) + suffix
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(fields, " ")
}

// match finds the best vocabulary replacement for word, if any.
func (c *Corrector) match(word string) (string, bool) {
	wordCodes := codesFor(word)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)

	for i, vw := range c.words {
		if vw == word {
			return "", false // exact: nothing to correct
		}
		score := matchr.JaroWinkler(word, vw, false)
		if codesOverlap(wordCodes, c.codes[i]) {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = vw, score, true
			}
		} else if !bestPhonetic {
			if score >= c.fuzzyThreshold && score > bestScore {
				best, bestScore = vw, score
			}
		}
	}

	return best, best != ""
}

// codesFor returns the set of Double Metaphone codes for word. Empty codes
// (word too short, no consonants) are excluded.
func codesFor(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// trimPunct splits leading/trailing punctuation off a token.
func trimPunct(tok string) (core, prefix, suffix string) {
	start := 0
	for start < len(tok) && !isWordByte(tok[start]) {
		start++
	}
	end := len(tok)
	for end > start && !isWordByte(tok[end-1]) {
		end--
	}
	return tok[start:end], tok[:start], tok[end:]
}

func isWordByte(b byte) bool {
	return b >= 0x80 || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b)) || b == '\''
}

// matchCase upper-cases the first letter of repl when the original word was
// capitalised, so corrections blend into the sentence.
func matchCase(repl, original string) string {
	if original == "" || repl == "" {
		return repl
	}
	if unicode.IsUpper(rune(original[0])) {
		return strings.ToUpper(repl[:1]) + repl[1:]
	}
	return repl
}
