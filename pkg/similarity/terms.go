// Package similarity provides text tokenization, TF-IDF vectors and set similarity.
package similarity

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords is the English stop-word list dropped before n-gram formation.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"might": true, "must": true, "shall": true, "can": true,
	"i": true, "me": true, "my": true, "we": true, "our": true, "us": true,
	"you": true, "your": true, "he": true, "she": true, "they": true, "them": true,
	"it": true, "its": true, "his": true, "her": true, "their": true,
	"this": true, "that": true, "these": true, "those": true,
	"what": true, "which": true, "who": true, "whom": true,
	"how": true, "why": true, "when": true, "where": true,
	"to": true, "for": true, "with": true, "about": true, "from": true,
	"in": true, "on": true, "at": true, "by": true, "of": true, "into": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"so": true, "not": true, "no": true, "as": true, "up": true, "out": true,
	"all": true, "any": true, "just": true, "also": true, "there": true,
	"here": true, "please": true, "hi": true, "hello": true, "thanks": true,
}

// IsStopWord reports whether a lower-cased word is on the stop-word list.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Tokenize lower-cases text and splits it into words on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TermSet returns the meaningful terms of text: words of three or more
// characters (or containing a digit) that are not stop words.
func TermSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, word := range Tokenize(text) {
		if stopWords[word] {
			continue
		}
		if len(word) >= 3 || strings.ContainsFunc(word, unicode.IsDigit) {
			terms[word] = true
		}
	}
	return terms
}

// SharedTerms returns the terms present in both sets, sorted.
func SharedTerms(set1, set2 map[string]bool) []string {
	if len(set1) > len(set2) {
		set1, set2 = set2, set1
	}
	shared := make([]string, 0)
	for term := range set1 {
		if set2[term] {
			shared = append(shared, term)
		}
	}
	sort.Strings(shared)
	return shared
}

// JaccardSimilarity calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func JaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
