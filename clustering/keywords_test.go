package clustering

import (
	"reflect"
	"testing"
)

func TestTopKeywordsOrdersByFrequency(t *testing.T) {
	docs := []string{
		"I wish to travel the world and see every ocean",
		"travel plans for a big adventure across the world",
		"an adventure in the mountains far from home",
		"I wish for a quiet home near the mountains",
	}

	got := TopKeywords(docs, 3)
	want := []string{"adventure", "home", "mountains"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopKeywords = %v, want %v", got, want)
	}
}

func TestTopKeywordsSkipsStopwordsAndShortTokens(t *testing.T) {
	docs := []string{
		"I wish I could be at it",
		"I wish for it to be so",
	}
	if got := TopKeywords(docs, 5); len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestTopKeywordsSkipsUbiquitousTerms(t *testing.T) {
	// "health" appears in every document and carries no signal for this
	// cluster; "doctor" appears in only some.
	docs := []string{
		"health above everything",
		"health and a good doctor",
		"health comes first says the doctor",
		"health forever please",
		"health is the real treasure",
	}
	got := TopKeywords(docs, 10)
	for _, term := range got {
		if term == "health" {
			t.Errorf("ubiquitous term %q should be skipped, got %v", term, got)
		}
	}
	found := false
	for _, term := range got {
		if term == "doctor" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q in keywords, got %v", "doctor", got)
	}
}

func TestTopKeywordsEmpty(t *testing.T) {
	if got := TopKeywords(nil, 5); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := TopKeywords([]string{"anything"}, 0); got != nil {
		t.Errorf("expected nil for topN 0, got %v", got)
	}
}
