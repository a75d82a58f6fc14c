package matcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lexmatch/internal/debug"
	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/types"
	"github.com/standardbeagle/lexmatch/internal/vocabulary"
)

// Matcher runs every token against every vocabulary group and keeps the
// candidates scoring at or above the confidence threshold.
// It is read-only after New and safe for concurrent use.
type Matcher struct {
	groups        []*vocabulary.Group
	minConfidence float64
}

// New validates the threshold and takes ownership of groups in the given
// order. Zero groups is valid; such a matcher never matches anything.
func New(groups []*vocabulary.Group, minConfidence float64) (*Matcher, error) {
	if math.IsNaN(minConfidence) || minConfidence < 0 || minConfidence > 1 {
		return nil, lmerrors.NewConfigError("min_confidence", fmt.Sprint(minConfidence),
			errors.New("must be within [0, 1]"))
	}
	for i, g := range groups {
		if g == nil {
			return nil, lmerrors.NewConfigError("groups", fmt.Sprintf("[%d]", i),
				errors.New("group cannot be nil"))
		}
	}
	return &Matcher{
		groups:        append([]*vocabulary.Group(nil), groups...),
		minConfidence: minConfidence,
	}, nil
}

// Match returns one EntityMatch per accepted candidate, ordered by token,
// then group registration order, then candidate order. Token offsets are
// passed through unchanged. The result is never nil.
func (m *Matcher) Match(tokens []types.Token) []types.EntityMatch {
	out := make([]types.EntityMatch, 0)
	for _, tok := range tokens {
		for _, g := range m.groups {
			for _, c := range g.Lookup(tok.Text) {
				if c.Score < m.minConfidence {
					continue
				}
				out = append(out, types.EntityMatch{
					Start:      tok.Start,
					End:        tok.End,
					Value:      c.Value,
					Confidence: c.Score,
					Entity:     g.Label(),
				})
			}
		}
	}
	debug.LogMatch("%d tokens, %d groups -> %d entities\n", len(tokens), len(m.groups), len(out))
	return out
}

// MatchBatch matches many token sequences with at most workers goroutines.
// Results line up with batches. Only context cancellation fails it.
func (m *Matcher) MatchBatch(ctx context.Context, batches [][]types.Token, workers int) ([][]types.EntityMatch, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([][]types.EntityMatch, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range batches {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.Match(batches[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// MinConfidence returns the acceptance threshold.
func (m *Matcher) MinConfidence() float64 { return m.minConfidence }

// Len returns the number of registered groups.
func (m *Matcher) Len() int { return len(m.groups) }

// Groups returns summaries in registration order.
func (m *Matcher) Groups() []types.GroupInfo {
	out := make([]types.GroupInfo, len(m.groups))
	for i, g := range m.groups {
		out[i] = g.Info()
	}
	return out
}

// Group returns the group at registration position i.
func (m *Matcher) Group(i int) *vocabulary.Group { return m.groups[i] }
