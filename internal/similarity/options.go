package similarity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
)

// Normalization controls how members and queries are transformed before
// gram extraction. Emitted values are always the original member strings.
type Normalization string

const (
	NormalizeNone  Normalization = "none"  // case-sensitive, untrimmed (reference behavior)
	NormalizeLower Normalization = "lower" // lower-case only
	NormalizeFold  Normalization = "fold"  // lower-case and strip accents
	NormalizeStem  Normalization = "stem"  // fold, then porter2 stem
)

// Rerank algorithm names accepted by Options.Rerank
const (
	RerankNone               = ""
	RerankLevenshtein        = "levenshtein"
	RerankDamerauLevenshtein = "damerau-levenshtein"
	RerankJaroWinkler        = "jaro-winkler"
	RerankJaro               = "jaro"
	RerankLCS                = "lcs"
)

const (
	DefaultRerankDepth = 50
)

// DefaultGramSizes are combined into one gram vector per string.
var DefaultGramSizes = []int{3, 2}

// Options configures an NgramIndex.
type Options struct {
	GramSizes     []int
	MinSimilarity float64 // floor in [0,1]; 0 keeps anything sharing a gram
	Normalization Normalization
	Rerank        string
	RerankDepth   int
	BestOnly      bool // keep only candidates tied with the top score
}

// DefaultOptions returns the reference configuration: trigrams and bigrams,
// no normalization, no rerank, all candidates.
func DefaultOptions() Options {
	return Options{
		GramSizes:     append([]int(nil), DefaultGramSizes...),
		MinSimilarity: 0,
		Normalization: NormalizeNone,
		Rerank:        RerankNone,
		RerankDepth:   DefaultRerankDepth,
	}
}

// Validate checks option ranges and returns a ConfigError for the first
// offending field.
func (o Options) Validate() error {
	if len(o.GramSizes) == 0 {
		return lmerrors.NewConfigError("index.gram_sizes", "", errors.New("at least one gram size is required"))
	}
	for _, n := range o.GramSizes {
		if n < 1 || n > 8 {
			return lmerrors.NewConfigError("index.gram_sizes", strconv.Itoa(n), fmt.Errorf("gram size must be between 1 and 8, got %d", n))
		}
	}
	if math.IsNaN(o.MinSimilarity) || o.MinSimilarity < 0 || o.MinSimilarity > 1 {
		return lmerrors.NewConfigError("index.min_similarity", fmt.Sprint(o.MinSimilarity), fmt.Errorf("invalid min similarity: %.2f (must be 0-1)", o.MinSimilarity))
	}
	if !validNormalization(o.Normalization) {
		return lmerrors.NewConfigError("index.normalize", string(o.Normalization), errors.New("must be none, lower, fold or stem"))
	}
	if _, ok := rerankAlgorithms[o.Rerank]; !ok && o.Rerank != RerankNone {
		return lmerrors.NewConfigError("index.rerank", o.Rerank, fmt.Errorf("unknown rerank algorithm (must be one of %s)", strings.Join(RerankAlgorithms(), ", ")))
	}
	if o.RerankDepth < 0 {
		return lmerrors.NewConfigError("index.rerank_depth", strconv.Itoa(o.RerankDepth), errors.New("rerank depth cannot be negative"))
	}
	return nil
}

// sanitized replaces invalid fields with defaults so Build never fails.
func (o Options) sanitized() Options {
	def := DefaultOptions()
	out := o

	var sizes []int
	seen := make(map[int]bool, len(o.GramSizes))
	for _, n := range o.GramSizes {
		if n >= 1 && n <= 8 && !seen[n] {
			seen[n] = true
			sizes = append(sizes, n)
		}
	}
	if len(sizes) == 0 {
		sizes = def.GramSizes
	}
	out.GramSizes = sizes

	if math.IsNaN(o.MinSimilarity) || o.MinSimilarity < 0 || o.MinSimilarity > 1 {
		out.MinSimilarity = def.MinSimilarity
	}
	if o.Normalization == "" || !validNormalization(o.Normalization) {
		out.Normalization = def.Normalization
	}
	if _, ok := rerankAlgorithms[o.Rerank]; !ok {
		out.Rerank = RerankNone
	}
	if out.RerankDepth <= 0 {
		out.RerankDepth = def.RerankDepth
	}
	return out
}

// String renders options in a stable form; used for fingerprints.
func (o Options) String() string {
	sizes := make([]string, len(o.GramSizes))
	for i, n := range o.GramSizes {
		sizes[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("grams=%s floor=%g norm=%s rerank=%s depth=%d best=%t",
		strings.Join(sizes, ","), o.MinSimilarity, o.Normalization, o.Rerank, o.RerankDepth, o.BestOnly)
}

func validNormalization(n Normalization) bool {
	switch n {
	case "", NormalizeNone, NormalizeLower, NormalizeFold, NormalizeStem:
		return true
	}
	return false
}
