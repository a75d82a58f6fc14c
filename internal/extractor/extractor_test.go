package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lexmatch/internal/config"
	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/source"
	"github.com/standardbeagle/lexmatch/internal/types"
	"github.com/standardbeagle/lexmatch/internal/vocabulary"
	"github.com/standardbeagle/lexmatch/testhelpers"
)

func TestMain(m *testing.M) {
	testhelpers.VerifyTestMain(m)
}

// fakeSource returns whatever it currently holds; safe to change between loads.
type fakeSource struct {
	mu   sync.Mutex
	name string
	defs []vocabulary.Definition
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Load(context.Context) ([]vocabulary.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]vocabulary.Definition(nil), f.defs...), nil
}

func (f *fakeSource) set(defs []vocabulary.Definition, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defs, f.err = defs, err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MinConfidence = 0.5
	cfg.Loading.Parallel = 2
	return cfg
}

func people() *fakeSource {
	return &fakeSource{name: "people", defs: []vocabulary.Definition{
		{Label: "PERSON", Members: []string{"John", "Jon", "Jonathan"}},
	}}
}

func colors() *fakeSource {
	return &fakeSource{name: "colors", defs: []vocabulary.Definition{
		{Label: "COLOR", Canonical: "red", Members: []string{"red", "crimson"}},
		{Label: "COLOR", Canonical: "blue", Members: []string{"blue", "navy"}},
	}}
}

func TestNew_BuildsGroupsInSourceOrder(t *testing.T) {
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{people(), colors()})
	require.NoError(t, err)

	groups := e.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, "PERSON", groups[0].Label)
	assert.Equal(t, "people", groups[0].Source)
	assert.Equal(t, "red", groups[1].Canonical)
	assert.Equal(t, "blue", groups[2].Canonical)

	stats := e.Stats()
	assert.Equal(t, 3, stats.Groups)
	assert.Equal(t, 7, stats.Members)
	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 0, stats.Reloads)
	assert.Empty(t, stats.LastError)
}

func TestProcess_AppendsToExistingEntities(t *testing.T) {
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{people(), colors()})
	require.NoError(t, err)

	existing := types.EntityMatch{Start: 0, End: 2, Value: "hi", Confidence: 1, Entity: "GREETING"}
	msg := &types.Message{
		Tokens:   []types.Token{{Text: "Jon", Start: 3, End: 6}, {Text: "crimson", Start: 7, End: 14}},
		Entities: []types.EntityMatch{existing},
	}
	e.Process(msg)

	require.Greater(t, len(msg.Entities), 1)
	assert.Equal(t, existing, msg.Entities[0])

	var sawPerson, sawRed bool
	for _, ent := range msg.Entities[1:] {
		if ent.Entity == "PERSON" && ent.Value == "Jon" && ent.Confidence == 1.0 {
			sawPerson = true
			assert.Equal(t, 3, ent.Start)
		}
		if ent.Entity == "COLOR" && ent.Value == "red" {
			sawRed = true
			assert.Equal(t, 7, ent.Start)
			assert.Equal(t, 14, ent.End)
		}
	}
	assert.True(t, sawPerson)
	assert.True(t, sawRed)

	assert.NotPanics(t, func() { e.Process(nil) })
}

func TestProcess_TokenizesText(t *testing.T) {
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{people()})
	require.NoError(t, err)

	msg := &types.Message{Text: "hello  Jon"}
	e.Process(msg)

	require.Len(t, msg.Tokens, 2)
	require.NotEmpty(t, msg.Entities)
	assert.Equal(t, 7, msg.Entities[0].Start)
	assert.Equal(t, 10, msg.Entities[0].End)
}

func TestNew_LenientDegradesOnFailure(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("connection refused")}
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{broken, people()})
	require.NoError(t, err)

	assert.Len(t, e.Groups(), 1)
	stats := e.Stats()
	assert.Equal(t, []string{"broken"}, stats.FailedSources)
	assert.Contains(t, stats.LastError, "connection refused")
}

func TestNew_LenientWithNothingLoaded(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("down")}
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{broken})
	require.NoError(t, err)

	assert.Empty(t, e.Groups())
	assert.Empty(t, e.Extract([]types.Token{{Text: "Jon"}}))
}

func TestNew_StrictFailsOnAnyError(t *testing.T) {
	cfg := testConfig()
	cfg.Loading.Strict = true
	broken := &fakeSource{name: "broken", err: errors.New("connection refused")}

	_, err := NewWithSources(context.Background(), cfg, []source.Source{people(), broken})
	require.Error(t, err)

	var loadErr *lmerrors.VocabularyLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestNew_InvalidConfidence(t *testing.T) {
	cfg := testConfig()
	cfg.MinConfidence = 2

	_, err := NewWithSources(context.Background(), cfg, []source.Source{people()})
	var cfgErr *lmerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "min_confidence", cfgErr.Field)
}

func TestNew_EmptyLabelSkippedWhenLenient(t *testing.T) {
	src := &fakeSource{name: "odd", defs: []vocabulary.Definition{{Label: "", Members: []string{"x"}}, {Label: "OK", Members: []string{"y"}}}}

	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{src})
	require.NoError(t, err)
	assert.Len(t, e.Groups(), 1)

	cfg := testConfig()
	cfg.Loading.Strict = true
	_, err = NewWithSources(context.Background(), cfg, []source.Source{src})
	assert.Error(t, err)
}

func TestReload_ReusesUnchangedGroups(t *testing.T) {
	p, c := people(), colors()
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{p, c})
	require.NoError(t, err)

	before := e.Matcher()
	personGroup := before.Group(0)

	c.set([]vocabulary.Definition{{Label: "COLOR", Canonical: "red", Members: []string{"red", "crimson", "scarlet"}}}, nil)
	require.NoError(t, e.Reload(context.Background()))

	after := e.Matcher()
	assert.NotSame(t, before, after)
	assert.Same(t, personGroup, after.Group(0), "unchanged group is reused")
	assert.Equal(t, 2, after.Len())

	stats := e.Stats()
	assert.Equal(t, 1, stats.Reloads)
	assert.Equal(t, 1, stats.ReusedGroups)

	// The old matcher is untouched
	assert.Equal(t, 3, before.Len())
}

func TestReload_ReorderedCollidingMembersRebuild(t *testing.T) {
	cfg := testConfig()
	cfg.Index.Normalize = "lower"
	src := &fakeSource{name: "people", defs: []vocabulary.Definition{
		{Label: "PERSON", Members: []string{"JOHN", "John"}},
	}}
	e, err := NewWithSources(context.Background(), cfg, []source.Source{src})
	require.NoError(t, err)

	got := e.Extract([]types.Token{{Text: "john"}})
	require.Len(t, got, 1)
	assert.Equal(t, "JOHN", got[0].Value)

	// Same member set, but the other spelling now comes first and wins
	src.set([]vocabulary.Definition{{Label: "PERSON", Members: []string{"John", "JOHN"}}}, nil)
	require.NoError(t, e.Reload(context.Background()))

	got = e.Extract([]types.Token{{Text: "john"}})
	require.Len(t, got, 1)
	assert.Equal(t, "John", got[0].Value)
	assert.Equal(t, 0, e.Stats().ReusedGroups)
}

func TestReload_IdenticalDefinitionsKeepTheirSource(t *testing.T) {
	def := vocabulary.Definition{Label: "PERSON", Members: []string{"Jon"}}
	a := &fakeSource{name: "a", defs: []vocabulary.Definition{def}}
	b := &fakeSource{name: "b", defs: []vocabulary.Definition{def}}
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{a, b})
	require.NoError(t, err)

	check := func() {
		groups := e.Groups()
		require.Len(t, groups, 2)
		assert.Equal(t, "a", groups[0].Source)
		assert.Equal(t, "b", groups[1].Source)
	}
	check()

	require.NoError(t, e.Reload(context.Background()))
	check()
	assert.Equal(t, 2, e.Stats().ReusedGroups)
	assert.NotSame(t, e.Matcher().Group(0), e.Matcher().Group(1))
}

func TestReload_LenientKeepsStaleGroups(t *testing.T) {
	p, c := people(), colors()
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{p, c})
	require.NoError(t, err)

	c.set(nil, errors.New("file vanished"))
	err = e.Reload(context.Background())
	require.Error(t, err)

	assert.Len(t, e.Groups(), 3, "failed source keeps its previous groups")
	assert.Equal(t, []string{"colors"}, e.Stats().FailedSources)

	c.set([]vocabulary.Definition{{Label: "COLOR", Members: []string{"green"}}}, nil)
	require.NoError(t, e.Reload(context.Background()))
	assert.Len(t, e.Groups(), 2)
	assert.Empty(t, e.Stats().FailedSources)
}

func TestReload_StrictKeepsCurrentMatcher(t *testing.T) {
	cfg := testConfig()
	cfg.Loading.Strict = true
	p := people()
	e, err := NewWithSources(context.Background(), cfg, []source.Source{p})
	require.NoError(t, err)
	before := e.Matcher()

	p.set(nil, errors.New("down"))
	require.Error(t, e.Reload(context.Background()))
	assert.Same(t, before, e.Matcher())
	assert.Equal(t, 0, e.Stats().Reloads)
}

func TestReload_Cancelled(t *testing.T) {
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{people()})
	require.NoError(t, err)
	before := e.Matcher()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Reload(ctx), context.Canceled)
	assert.Same(t, before, e.Matcher())
}

func TestReload_ConcurrentWithMatching(t *testing.T) {
	p := people()
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{p})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got := e.Extract([]types.Token{{Text: "Jon", Start: 0, End: 3}})
				assert.NotEmpty(t, got)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Reload(context.Background()))
	}
	wg.Wait()
}

func TestLookup(t *testing.T) {
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{people(), colors()})
	require.NoError(t, err)

	// Unfiltered: crimson shares "on" with the query, so COLOR appears too
	got := e.Lookup("Jon")
	require.Len(t, got, 2)
	assert.Equal(t, "PERSON", got[0].Entity)
	assert.Equal(t, types.MatchCandidate{Score: 1, Value: "Jon"}, got[0].Candidates[0])
	assert.Equal(t, "COLOR", got[1].Entity)
	assert.Equal(t, "red", got[1].Candidates[0].Value)
	assert.Less(t, got[1].Candidates[0].Score, 0.5)

	assert.Empty(t, e.Lookup("zzz"))
}

func TestExtractBatch(t *testing.T) {
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{people()})
	require.NoError(t, err)

	batches := [][]types.Token{{{Text: "Jon"}}, {{Text: "zzz"}}}
	got, err := e.ExtractBatch(context.Background(), batches)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0])
	assert.Empty(t, got[1])
}

func TestProcessBatch(t *testing.T) {
	e, err := NewWithSources(context.Background(), testConfig(), []source.Source{people()})
	require.NoError(t, err)

	kept := types.EntityMatch{Entity: "GREETING", Value: "hi", Confidence: 1}
	msgs := []types.Message{
		{Text: "hello Jon"},
		{Tokens: []types.Token{{Text: "zzz"}}, Entities: []types.EntityMatch{kept}},
	}
	require.NoError(t, e.ProcessBatch(context.Background(), msgs))

	require.Len(t, msgs[0].Tokens, 2)
	require.NotEmpty(t, msgs[0].Entities)
	assert.Equal(t, 6, msgs[0].Entities[0].Start)
	assert.Equal(t, []types.EntityMatch{kept}, msgs[1].Entities)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.ProcessBatch(ctx, []types.Message{{Text: "Jon"}}), context.Canceled)
}

func TestNew_FromConfigFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.txt"), []byte("Berlin\nBern\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.json"), []byte(`{"closedLists":[{"name":"SIZE","subLists":[{"canonicalForm":"large","list":["big"]}]}]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synonyms.toml"), []byte("[[entity]]\nname = \"COLOR\"\n[[entity.value]]\ncanonical = \"red\"\nsynonyms = [\"crimson\"]\n"), 0644))

	cfg := testConfig()
	cfg.Sources = []config.SourceConfig{
		{Kind: config.SourceWordlist, Label: "CITY", Pattern: filepath.Join(dir, "*.txt")},
		{Kind: config.SourceLUIS, Path: filepath.Join(dir, "app.json")},
		{Kind: config.SourceSynonyms, Path: filepath.Join(dir, "synonyms.toml")},
	}

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)

	got := e.Extract([]types.Token{{Text: "big", Start: 0, End: 3}, {Text: "Berlin", Start: 4, End: 10}, {Text: "crimson", Start: 11, End: 18}})
	found := map[string]bool{}
	for _, m := range got {
		if m.Confidence == 1.0 {
			found[m.Entity+"="+m.Value] = true
		}
	}
	assert.True(t, found["SIZE=large"])
	assert.True(t, found["CITY=Berlin"])
	assert.True(t, found["COLOR=red"])
}

func TestBuildSources(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = []config.SourceConfig{
		{Kind: config.SourceDatabase, Name: "legacy", Driver: "mysql", Host: "db:3306", User: "bot", Database: "names", Queries: []config.QueryConfig{{Label: "PERSON", SQL: "SELECT 1"}}},
		{Kind: config.SourceDatabase, Name: "local", Driver: "sqlite", DSN: "/tmp/x.db", Queries: []config.QueryConfig{{Label: "PERSON", SQL: "SELECT 1"}}},
		{Kind: config.SourceLUIS, Path: "/tmp/app.json"},
		{Kind: config.SourceWordlist, Label: "CITY", Pattern: "/tmp/*.txt", Canonical: "city"},
		{Kind: config.SourceSynonyms, Path: "/tmp/s.toml"},
	}

	sources, err := BuildSources(cfg)
	require.NoError(t, err)
	require.Len(t, sources, 5)

	legacy := sources[0].(*source.SQLSource)
	assert.Contains(t, legacy.DSN, "bot@tcp(db:3306)/names")
	assert.Equal(t, []source.Query{{Label: "PERSON", SQL: "SELECT 1"}}, legacy.Queries)
	assert.Equal(t, "/tmp/x.db", sources[1].(*source.SQLSource).DSN)
	assert.Equal(t, "luis:/tmp/app.json", sources[2].Name())
	assert.Equal(t, "city", sources[3].(*source.WordlistSource).Canonical)
	assert.Equal(t, "synonyms:/tmp/s.toml", sources[4].Name())

	cfg.Sources = []config.SourceConfig{{Kind: "redis"}}
	_, err = BuildSources(cfg)
	assert.Error(t, err)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		text string
		want []types.Token
	}{
		{"", nil},
		{"   ", nil},
		{"Jon", []types.Token{{Text: "Jon", Start: 0, End: 3}}},
		{" hi  Jon\tthere ", []types.Token{{Text: "hi", Start: 1, End: 3}, {Text: "Jon", Start: 5, End: 8}, {Text: "there", Start: 9, End: 14}}},
		{"Élodie et Zoë", []types.Token{{Text: "Élodie", Start: 0, End: 6}, {Text: "et", Start: 7, End: 9}, {Text: "Zoë", Start: 10, End: 13}}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}
