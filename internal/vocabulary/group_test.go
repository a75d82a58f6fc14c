package vocabulary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/similarity"
)

func TestNewGroup_EmptyLabelIsConfigError(t *testing.T) {
	_, err := NewGroup(Definition{Members: []string{"x"}}, similarity.DefaultOptions())
	require.Error(t, err)

	var cfgErr *lmerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "label", cfgErr.Field)
}

func TestNewGroup_EmptyMembersNeverMatch(t *testing.T) {
	g, err := NewGroup(Definition{Label: "PERSON"}, similarity.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, g.Size())
	for _, text := range []string{"", "John", "PERSON", "a"} {
		assert.Empty(t, g.Lookup(text), text)
	}
}

func TestLookup_WithoutCanonicalReportsMember(t *testing.T) {
	g, err := NewGroup(Definition{Label: "PERSON", Members: []string{"John", "Jon", "Jonathan"}}, similarity.DefaultOptions())
	require.NoError(t, err)

	got := g.Lookup("Jon")
	require.NotEmpty(t, got)
	assert.Equal(t, "Jon", got[0].Value)
	assert.Equal(t, 1.0, got[0].Score)
}

func TestLookup_CanonicalSubstitution(t *testing.T) {
	g, err := NewGroup(Definition{
		Label:     "COLOR",
		Canonical: "C",
		Members:   []string{"C", "Csub1", "Csub2"},
	}, similarity.DefaultOptions())
	require.NoError(t, err)

	raw := similarity.Build([]string{"C", "Csub1", "Csub2"}, similarity.DefaultOptions()).Query("Csub1")
	got := g.Lookup("Csub1")

	require.Len(t, got, len(raw))
	for i, c := range got {
		assert.Equal(t, "C", c.Value)
		assert.Equal(t, raw[i].Score, c.Score, "score must be preserved")
	}
	assert.Equal(t, 1.0, got[0].Score)
}

func TestWithQueryCache(t *testing.T) {
	g, err := NewGroup(Definition{Label: "PERSON", Members: []string{"John", "Jon"}}, similarity.DefaultOptions())
	require.NoError(t, err)

	same, err := g.WithQueryCache(0)
	require.NoError(t, err)
	assert.Same(t, g, same)

	cached, err := g.WithQueryCache(16)
	require.NoError(t, err)
	assert.NotSame(t, g, cached)
	assert.Equal(t, g.Lookup("Jon"), cached.Lookup("Jon"))
	assert.Equal(t, g.Fingerprint(), cached.Fingerprint())
	assert.Equal(t, 2, cached.Size())
}

func TestFingerprint(t *testing.T) {
	opts := similarity.DefaultOptions()
	base := Definition{Label: "PERSON", Members: []string{"John", "Jon"}}

	t.Run("order and duplicates ignored", func(t *testing.T) {
		reordered := Definition{Label: "PERSON", Members: []string{"Jon", "John", "Jon"}}
		assert.Equal(t, Fingerprint(base, opts), Fingerprint(reordered, opts))
	})

	t.Run("source matters", func(t *testing.T) {
		moved := base
		moved.Source = "wordlist:other"
		assert.NotEqual(t, Fingerprint(base, opts), Fingerprint(moved, opts))
	})

	t.Run("order of colliding members matters", func(t *testing.T) {
		lower := similarity.DefaultOptions()
		lower.Normalization = similarity.NormalizeLower
		upperFirst := Definition{Label: "PERSON", Members: []string{"JOHN", "John"}}
		mixedFirst := Definition{Label: "PERSON", Members: []string{"John", "JOHN"}}
		assert.NotEqual(t, Fingerprint(upperFirst, lower), Fingerprint(mixedFirst, lower))

		a, err := NewGroup(upperFirst, lower)
		require.NoError(t, err)
		b, err := NewGroup(mixedFirst, lower)
		require.NoError(t, err)
		assert.Equal(t, "JOHN", a.Lookup("john")[0].Value)
		assert.Equal(t, "John", b.Lookup("john")[0].Value)

		// Without a collision the order is irrelevant
		distinct := Definition{Label: "PERSON", Members: []string{"Jon", "JOHN"}}
		swapped := Definition{Label: "PERSON", Members: []string{"JOHN", "Jon"}}
		assert.Equal(t, Fingerprint(distinct, lower), Fingerprint(swapped, lower))
	})

	t.Run("label matters", func(t *testing.T) {
		other := Definition{Label: "CITY", Members: base.Members}
		assert.NotEqual(t, Fingerprint(base, opts), Fingerprint(other, opts))
	})

	t.Run("canonical matters", func(t *testing.T) {
		other := base
		other.Canonical = "John"
		assert.NotEqual(t, Fingerprint(base, opts), Fingerprint(other, opts))
	})

	t.Run("members matter", func(t *testing.T) {
		other := Definition{Label: "PERSON", Members: []string{"John", "Jonathan"}}
		assert.NotEqual(t, Fingerprint(base, opts), Fingerprint(other, opts))
	})

	t.Run("field boundaries", func(t *testing.T) {
		a := Definition{Label: "AB", Members: []string{"C"}}
		b := Definition{Label: "A", Members: []string{"BC"}}
		assert.NotEqual(t, Fingerprint(a, opts), Fingerprint(b, opts))
	})

	t.Run("options matter", func(t *testing.T) {
		lower := similarity.DefaultOptions()
		lower.Normalization = similarity.NormalizeLower
		assert.NotEqual(t, Fingerprint(base, opts), Fingerprint(base, lower))
	})
}

func TestInfo(t *testing.T) {
	g, err := NewGroup(Definition{Label: "COLOR", Canonical: "red", Members: []string{"red", "crimson"}, Source: "luis:app.json"}, similarity.DefaultOptions())
	require.NoError(t, err)

	info := g.Info()
	assert.Equal(t, "COLOR", info.Label)
	assert.Equal(t, "red", info.Canonical)
	assert.Equal(t, 2, info.Members)
	assert.Equal(t, "luis:app.json", info.Source)
	assert.Len(t, info.Fingerprint, 16)
}
