package types

import "fmt"

// DefaultMinConfidence is used when the host configuration does not set a threshold.
const DefaultMinConfidence = 0.7

// Token is one already-segmented piece of input text.
// Start and End are character offsets into the original text and are
// passed through to EntityMatch unchanged.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// MatchCandidate is the result of a single similarity lookup.
type MatchCandidate struct {
	Score float64 `json:"score"`
	Value string  `json:"value"`
}

func (c MatchCandidate) String() string {
	return fmt.Sprintf("%s(%.3f)", c.Value, c.Score)
}

// EntityMatch is the final output unit of the matcher.
type EntityMatch struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Entity     string  `json:"entity"`
}

// Message is the unit exchanged with a host pipeline: tokens in,
// entities appended. Entities already present are preserved.
type Message struct {
	Text     string        `json:"text,omitempty"`
	Tokens   []Token       `json:"tokens"`
	Entities []EntityMatch `json:"entities,omitempty"`
}

// GroupInfo summarises a vocabulary group for listings.
type GroupInfo struct {
	Label       string `json:"label"`
	Canonical   string `json:"canonical,omitempty"`
	Members     int    `json:"members"`
	Source      string `json:"source,omitempty"`
	Fingerprint string `json:"fingerprint"`
}
