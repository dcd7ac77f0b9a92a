package vocab_test

import (
	"testing"

	"github.com/Bualoitech/learnliko/internal/vocab"
)

func TestCorrector_PhoneticNearMiss(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"coffee", "croissant"})

	// "kofee" shares Double Metaphone codes with "coffee" and clears the
	// phonetic similarity threshold.
	got := c.Correct("one kofee please")
	if got != "one coffee please" {
		t.Errorf("Correct(%q)=%q, want %q", "one kofee please", got, "one coffee please")
	}
}

func TestCorrector_ExactWordUntouched(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"coffee"})

	in := "one coffee please"
	if got := c.Correct(in); got != in {
		t.Errorf("Correct(%q)=%q, want input unchanged", in, got)
	}
}

func TestCorrector_UnrelatedWordsUntouched(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"cappuccino"})

	in := "the table is over there"
	if got := c.Correct(in); got != in {
		t.Errorf("Correct(%q)=%q, want input unchanged", in, got)
	}
}

func TestCorrector_PreservesPunctuationAndCase(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"coffee"})

	got := c.Correct("Kofee, please!")
	if got != "Coffee, please!" {
		t.Errorf("Correct(%q)=%q, want %q", "Kofee, please!", got, "Coffee, please!")
	}
}

func TestCorrector_EmptyVocabularyIsIdentity(t *testing.T) {
	t.Parallel()

	c := vocab.New(nil)

	in := "anything at all"
	if got := c.Correct(in); got != in {
		t.Errorf("Correct(%q)=%q, want input unchanged", in, got)
	}
}

func TestCorrector_EmptyInput(t *testing.T) {
	t.Parallel()

	c := vocab.New([]string{"coffee"})
	if got := c.Correct(""); got != "" {
		t.Errorf("Correct(\"\")=%q, want empty", got)
	}
}
