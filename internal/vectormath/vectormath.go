// Package vectormath provides the pure vector and text helpers used by
// semantic search. No I/O, no shared state.
package vectormath

import (
	"math"
	"strings"
)

// searchTextDelimiter separates the fields of an item's canonical search
// text. Indexing and querying must use the same delimiter so that
// embeddings stay comparable.
const searchTextDelimiter = " | "

// CosineSimilarity returns the cosine similarity of two vectors in
// [-1, 1]. It returns 0 when the vectors have different lengths or
// when either vector has a zero norm; both cases mean "no signal" and
// are not errors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// SearchText builds the canonical textual representation of an item for
// embedding. Field order is fixed: name tag, category, description,
// location.
func SearchText(nameTag, category, description, location string) string {
	return strings.Join([]string{nameTag, category, description, location}, searchTextDelimiter)
}
