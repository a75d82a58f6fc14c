package vocabulary

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/similarity"
	"github.com/standardbeagle/lexmatch/internal/types"
)

// Definition is the in-memory form a vocabulary source produces: one entity
// label, its member strings and an optional canonical value.
type Definition struct {
	Label     string
	Members   []string
	Canonical string // empty means matches report the member itself
	Source    string // name of the source it was loaded from, informational
}

// Group binds an entity label to a similarity index over its members.
// A Group is immutable and safe for concurrent lookups.
type Group struct {
	label       string
	canonical   string
	source      string
	index       similarity.Index
	fingerprint uint64
}

// NewGroup builds the index for def. An empty label is a ConfigError; an
// empty member set is valid and produces a group that never matches.
func NewGroup(def Definition, opts similarity.Options) (*Group, error) {
	if def.Label == "" {
		return nil, lmerrors.NewConfigError("label", def.Label, errors.New("group label cannot be empty"))
	}
	return &Group{
		label:       def.Label,
		canonical:   def.Canonical,
		source:      def.Source,
		index:       similarity.Build(def.Members, opts),
		fingerprint: Fingerprint(def, opts),
	}, nil
}

// WithQueryCache wraps the group's index in an LRU of the given size.
// Returns the group unchanged when size is not positive.
func (g *Group) WithQueryCache(size int) (*Group, error) {
	if size <= 0 {
		return g, nil
	}
	cached, err := similarity.NewCachedIndex(g.index, size)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.label, err)
	}
	clone := *g
	clone.index = cached
	return &clone, nil
}

// Lookup queries the index. When a canonical value is set it replaces the
// value of every candidate; scores are preserved.
func (g *Group) Lookup(text string) []types.MatchCandidate {
	candidates := g.index.Query(text)
	if g.canonical == "" {
		return candidates
	}
	out := make([]types.MatchCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = types.MatchCandidate{Score: c.Score, Value: g.canonical}
	}
	return out
}

func (g *Group) Label() string       { return g.label }
func (g *Group) Canonical() string   { return g.canonical }
func (g *Group) Source() string      { return g.source }
func (g *Group) Size() int           { return g.index.Len() }
func (g *Group) Fingerprint() uint64 { return g.fingerprint }

// Info summarises the group for listings.
func (g *Group) Info() types.GroupInfo {
	return types.GroupInfo{
		Label:       g.label,
		Canonical:   g.canonical,
		Members:     g.Size(),
		Source:      g.source,
		Fingerprint: fmt.Sprintf("%016x", g.fingerprint),
	}
}

// Fingerprint hashes everything a built group depends on: label,
// canonical, source, index options and the members the index keeps with
// their normalized keys. Equal fingerprints mean an already built group can
// be reused. Reordering members only changes the fingerprint when it
// changes which of two colliding members is kept.
func Fingerprint(def Definition, opts similarity.Options) uint64 {
	h := xxhash.New()
	writeField(h, def.Label)
	writeField(h, def.Canonical)
	writeField(h, def.Source)
	writeField(h, opts.String())
	for _, e := range similarity.Entries(def.Members, opts) {
		writeField(h, e.Key)
		writeField(h, e.Value)
	}
	return h.Sum64()
}

// writeField length-prefixes s so adjacent fields cannot run together.
func writeField(h *xxhash.Digest, s string) {
	var n [8]byte
	l := uint64(len(s))
	for i := range n {
		n[i] = byte(l >> (8 * i))
	}
	_, _ = h.Write(n[:])
	_, _ = h.WriteString(s)
}
