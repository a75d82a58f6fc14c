package similarity

// boundary pads both ends of a key so that prefixes and suffixes form
// their own grams and short keys still produce one gram.
const boundary = '\x00'

// gramCounts returns the multiset of rune n-grams of the padded key.
// Works on runes so multi-byte text is split on character boundaries.
func gramCounts(key string, size int) map[string]int {
	runes := make([]rune, 0, len(key)+2)
	runes = append(runes, boundary)
	runes = append(runes, []rune(key)...)
	runes = append(runes, boundary)
	for len(runes) < size {
		runes = append(runes, boundary)
	}

	counts := make(map[string]int, len(runes)-size+1)
	for i := 0; i+size <= len(runes); i++ {
		counts[string(runes[i:i+size])]++
	}
	return counts
}

// gramVector merges the grams of every size into one count vector. Grams of
// different sizes have different rune lengths and cannot collide.
func gramVector(key string, sizes []int) map[string]int {
	if len(sizes) == 1 {
		return gramCounts(key, sizes[0])
	}
	out := make(map[string]int)
	for _, size := range sizes {
		for gram, count := range gramCounts(key, size) {
			out[gram] += count
		}
	}
	return out
}
