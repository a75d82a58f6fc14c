package similarity

import (
	"math"
	"sort"

	"github.com/standardbeagle/lexmatch/internal/types"
)

// Index supports approximate lookup of a query against a fixed vocabulary.
// Implementations must be safe for concurrent Query calls.
type Index interface {
	// Query returns candidates ordered by descending score, ties broken by
	// value. It never fails; no match is an empty slice.
	Query(text string) []types.MatchCandidate
	// Len returns the number of distinct indexed entries.
	Len() int
}

// belowOne is the highest score a non-identical pair may receive.
var belowOne = math.Nextafter(1, 0)

type entry struct {
	value string // original member, emitted on match
	key   string // normalized form used for grams
}

type posting struct {
	id    int32
	count int32
}

// NgramIndex is an n-gram inverted index scored by cosine similarity of
// gram count vectors. Grams of every configured size share one vector, so
// a query sharing more grams with an entry of fixed length never scores
// lower than one sharing fewer. It is immutable after Build.
type NgramIndex struct {
	opts      Options
	normalize Normalizer
	entries   []entry
	byKey     map[string]int
	postings  map[string][]posting
	norms     []float64 // euclidean norm of each entry's gram vector
}

type scoredEntry struct {
	id    int
	score float64
}

// Build indexes members. Duplicate members (after normalization) are kept
// once, first occurrence wins. Invalid options fall back to defaults.
func Build(members []string, opts Options) *NgramIndex {
	opts = opts.sanitized()

	idx := &NgramIndex{
		opts:      opts,
		normalize: NormalizerFor(opts.Normalization),
		entries:   make([]entry, 0, len(members)),
		byKey:     make(map[string]int, len(members)),
	}

	for _, m := range members {
		key := idx.normalize(m)
		if _, dup := idx.byKey[key]; dup {
			continue
		}
		idx.byKey[key] = len(idx.entries)
		idx.entries = append(idx.entries, entry{value: m, key: key})
	}

	idx.postings = make(map[string][]posting)
	idx.norms = make([]float64, len(idx.entries))
	for id, e := range idx.entries {
		var sumSquares float64
		for gram, count := range gramVector(e.key, opts.GramSizes) {
			idx.postings[gram] = append(idx.postings[gram], posting{id: int32(id), count: int32(count)})
			sumSquares += float64(count * count)
		}
		idx.norms[id] = math.Sqrt(sumSquares)
	}

	return idx
}

// Entry is a member kept by Build together with its normalized key.
type Entry struct {
	Key   string
	Value string
}

// Entries returns what Build keeps for members under opts, sorted by key.
// Two member lists with equal Entries produce indexes that answer every
// query identically; member order matters only when two members normalize
// to the same key.
func Entries(members []string, opts Options) []Entry {
	normalize := NormalizerFor(opts.sanitized().Normalization)
	seen := make(map[string]bool, len(members))
	out := make([]Entry, 0, len(members))
	for _, m := range members {
		key := normalize(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Entry{Key: key, Value: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of distinct entries.
func (idx *NgramIndex) Len() int {
	return len(idx.entries)
}

// Options returns the effective (sanitized) options.
func (idx *NgramIndex) Options() Options {
	return idx.opts
}

// Query returns every entry sharing grams with text and scoring at or above
// the floor.
func (idx *NgramIndex) Query(text string) []types.MatchCandidate {
	if len(idx.entries) == 0 {
		return []types.MatchCandidate{}
	}

	key := idx.normalize(text)
	scored := idx.score(key)
	if len(scored) == 0 {
		return []types.MatchCandidate{}
	}
	return idx.finish(key, scored)
}

// score accumulates dot products through the postings of the query's grams
// only, then divides by both norms.
func (idx *NgramIndex) score(key string) []scoredEntry {
	var sumSquares float64
	dots := make(map[int32]float64)
	for gram, qc := range gramVector(key, idx.opts.GramSizes) {
		sumSquares += float64(qc * qc)
		for _, p := range idx.postings[gram] {
			dots[p.id] += float64(qc) * float64(p.count)
		}
	}
	if len(dots) == 0 {
		return nil
	}

	queryNorm := math.Sqrt(sumSquares)
	out := make([]scoredEntry, 0, len(dots))
	for id, dot := range dots {
		denom := queryNorm * idx.norms[id]
		if denom == 0 {
			continue
		}
		out = append(out, scoredEntry{id: int(id), score: idx.clamp(key, int(id), dot/denom)})
	}
	return out
}

// clamp pins identical keys to exactly 1.0 and keeps everything else
// strictly below it, absorbing floating point drift from the norms.
func (idx *NgramIndex) clamp(key string, id int, score float64) float64 {
	if idx.entries[id].key == key {
		return 1.0
	}
	if score >= 1 {
		return belowOne
	}
	if score < 0 {
		return 0
	}
	return score
}

func (idx *NgramIndex) sortScored(scored []scoredEntry) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return idx.entries[scored[i].id].value < idx.entries[scored[j].id].value
	})
}

func (idx *NgramIndex) finish(key string, scored []scoredEntry) []types.MatchCandidate {
	idx.sortScored(scored)

	if idx.opts.Rerank != RerankNone {
		if len(scored) > idx.opts.RerankDepth {
			scored = scored[:idx.opts.RerankDepth]
		}
		for i := range scored {
			id := scored[i].id
			scored[i].score = idx.clamp(key, id, rerankScore(idx.opts.Rerank, key, idx.entries[id].key))
		}
		idx.sortScored(scored)
	}

	out := make([]types.MatchCandidate, 0, len(scored))
	for _, s := range scored {
		if s.score <= 0 || s.score < idx.opts.MinSimilarity {
			continue
		}
		if idx.opts.BestOnly && len(out) > 0 && s.score < out[0].Score {
			break
		}
		out = append(out, types.MatchCandidate{Score: s.score, Value: idx.entries[s.id].value})
	}
	return out
}
