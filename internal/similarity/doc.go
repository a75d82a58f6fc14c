// Package similarity implements the approximate lookup index behind entity
// matching.
//
// # Scoring
//
// Members and queries are padded with a boundary rune and split into
// character n-grams. The score of a pair is the cosine similarity of their
// gram count vectors, so it lies in [0,1], is exactly 1.0 for identical
// strings and never reaches 1.0 otherwise. Grams of every configured size
// (trigrams and bigrams by default) go into the same vector: bigrams keep
// short and lightly overlapping tokens matchable, and for strings of fixed
// length more shared grams never yield a lower score.
//
// # Lookup cost
//
// Each gram maps to a posting list of (entry, count) pairs. A query touches
// only the posting lists of its own grams, so cost follows the number of
// members sharing grams with the query rather than the vocabulary size.
//
// # Normalization
//
// The reference behavior is case-sensitive with no trimming. Lower-casing,
// accent folding and stemming are opt-in and apply to members and queries
// alike; matches always report the original member string.
//
// # Usage Example
//
//	idx := similarity.Build([]string{"John", "Jon", "Jonathan"}, similarity.DefaultOptions())
//	for _, c := range idx.Query("Jon") {
//		fmt.Println(c.Value, c.Score)
//	}
package similarity
