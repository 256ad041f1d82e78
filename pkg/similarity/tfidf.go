package similarity

import (
	"math"
	"sort"
)

// Corpus holds document frequencies for one batch of documents.
// It is built once per correlation call and is read-only afterwards.
type Corpus struct {
	idf  map[string]float64
	docs int
}

// NewCorpus counts document frequencies over docs (each a list of terms; repeats
// within a document count once). Terms seen in fewer than minDF documents are dropped.
func NewCorpus(docs [][]string, minDF int) *Corpus {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool, len(doc))
		for _, term := range doc {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		if count < minDF {
			continue
		}
		// Smooth IDF: ln((1+N)/(1+df)) + 1 keeps every retained term positive.
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}
	return &Corpus{idf: idf, docs: len(docs)}
}

// Size returns the number of documents the corpus was built from.
func (c *Corpus) Size() int {
	return c.docs
}

// Vocabulary returns the number of retained terms.
func (c *Corpus) Vocabulary() int {
	return len(c.idf)
}

// IDF returns the inverse document frequency of a term, 0 when it is not retained.
func (c *Corpus) IDF(term string) float64 {
	return c.idf[term]
}

// Vector is a sparse TF-IDF vector with its Euclidean norm precomputed.
// Terms are kept sorted so sums are evaluated in a fixed order.
type Vector struct {
	weights map[string]float64
	terms   []string
	norm    float64
}

// Vector builds the TF-IDF vector of a document. Terms outside the vocabulary are ignored.
func (c *Corpus) Vector(terms []string) Vector {
	tf := make(map[string]float64, len(terms))
	for _, term := range terms {
		if _, ok := c.idf[term]; ok {
			tf[term]++
		}
	}
	keys := make([]string, 0, len(tf))
	for term := range tf {
		keys = append(keys, term)
	}
	sort.Strings(keys)

	var sum float64
	for _, term := range keys {
		w := tf[term] * c.idf[term]
		tf[term] = w
		sum += w * w
	}
	return Vector{weights: tf, terms: keys, norm: math.Sqrt(sum)}
}

// IsZero reports whether the vector has no weight.
func (v Vector) IsZero() bool {
	return v.norm == 0
}

// Cosine returns the cosine similarity of two vectors, 0 when either is zero.
func Cosine(a, b Vector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(small.terms) > len(large.terms) {
		small, large = large, small
	}
	var dot float64
	for _, term := range small.terms {
		dot += small.weights[term] * large.weights[term]
	}
	cos := dot / (a.norm * b.norm)
	// Rounding can push identical vectors just past 1.
	return math.Min(math.Max(cos, 0), 1)
}

// WeightedFieldScore combines per-field cosine similarities against target:
// Σ(w_f × cos_f) / Σ(w_f) over fields present in both fields and weights.
// Returns 0 when no weighted field is present or all present weights are 0.
func WeightedFieldScore(fields map[string]Vector, target Vector, weights map[string]float64) float64 {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names) // fixed summation order keeps scores reproducible

	var num, den float64
	for _, name := range names {
		w, ok := weights[name]
		if !ok || w <= 0 {
			continue
		}
		num += w * Cosine(fields[name], target)
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}
