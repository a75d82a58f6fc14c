package similarity

import (
	"sort"

	"github.com/hbollon/go-edlib"
)

var rerankAlgorithms = map[string]edlib.Algorithm{
	RerankLevenshtein:        edlib.Levenshtein,
	RerankDamerauLevenshtein: edlib.DamerauLevenshtein,
	RerankJaroWinkler:        edlib.JaroWinkler,
	RerankJaro:               edlib.Jaro,
	RerankLCS:                edlib.Lcs,
}

// RerankAlgorithms lists the accepted rerank algorithm names.
func RerankAlgorithms() []string {
	names := make([]string, 0, len(rerankAlgorithms))
	for name := range rerankAlgorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rerankScore returns the edit-distance based similarity of two keys (0.0-1.0).
func rerankScore(algorithm, a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	algo, ok := rerankAlgorithms[algorithm]
	if !ok {
		return 0.0
	}

	// go-edlib normalizes every supported algorithm to 0-1
	score, err := edlib.StringsSimilarity(a, b, algo)
	if err != nil {
		return 0.0
	}
	return float64(score)
}
