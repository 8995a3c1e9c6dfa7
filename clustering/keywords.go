package clustering

import (
	"sort"
	"strings"
	"unicode"
)

// TopKeywords extracts the most frequent descriptive terms from a cluster's
// documents. Stopwords and terms appearing in nearly every document carry no
// signal and are skipped. Ties break alphabetically so results are stable.
func TopKeywords(docs []string, topN int) []string {
	if len(docs) == 0 || topN <= 0 {
		return nil
	}

	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, token := range tokenize(doc) {
			termFreq[token]++
			if !seen[token] {
				docFreq[token]++
				seen[token] = true
			}
		}
	}

	maxDocs := int(float64(len(docs)) * 0.95)
	if maxDocs < 1 {
		maxDocs = 1
	}

	terms := make([]string, 0, len(termFreq))
	for term := range termFreq {
		if len(docs) > 1 && docFreq[term] > maxDocs {
			continue
		}
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termFreq[terms[i]] != termFreq[terms[j]] {
			return termFreq[terms[i]] > termFreq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > topN {
		terms = terms[:topN]
	}
	return terms
}

func tokenize(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "any": true, "can": true,
	"had": true, "her": true, "was": true, "one": true, "our": true,
	"out": true, "has": true, "him": true, "his": true, "how": true,
	"its": true, "may": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "who": true, "did": true,
	"get": true, "let": true, "say": true, "she": true, "too": true,
	"use": true, "that": true, "with": true, "have": true, "this": true,
	"will": true, "your": true, "from": true, "they": true, "want": true,
	"been": true, "were": true, "when": true, "what": true, "there": true,
	"their": true, "would": true, "could": true, "should": true,
	"about": true, "which": true, "them": true, "than": true, "then": true,
	"some": true, "into": true, "more": true, "other": true, "make": true,
	"like": true, "just": true, "over": true, "also": true, "after": true,
	"most": true, "such": true, "only": true, "wish": true, "wishes": true,
	"every": true, "never": true, "always": true, "myself": true,
	"ever": true, "able": true, "ability": true,
}
