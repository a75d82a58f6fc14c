package source

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/vocabulary"
	"github.com/standardbeagle/lexmatch/testhelpers"
)

func TestMain(m *testing.M) {
	testhelpers.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func namesDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "names.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE firstnames (name TEXT, origin TEXT)`,
		`INSERT INTO firstnames VALUES ('John','en'), ('Jon','en'), ('Jonathan','he'), (NULL,'??')`,
		`CREATE TABLE cities (name TEXT)`,
		`INSERT INTO cities VALUES ('Berlin'), ('Bern')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func TestSQLSource_Load(t *testing.T) {
	src := &SQLSource{
		SourceName: "names",
		Driver:     "sqlite",
		DSN:        namesDB(t),
		Queries: []Query{
			{Label: "PERSON", SQL: "SELECT name FROM firstnames ORDER BY rowid"},
			{Label: "CITY", SQL: "SELECT name FROM cities"},
		},
	}

	defs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "PERSON", defs[0].Label)
	assert.Equal(t, []string{"John", "Jon", "Jonathan"}, defs[0].Members, "NULL rows are skipped")
	assert.Equal(t, "CITY", defs[1].Label)
	assert.ElementsMatch(t, []string{"Berlin", "Bern"}, defs[1].Members)
	assert.Equal(t, "database:names", defs[0].Source)
}

func TestSQLSource_MultiColumnQuery(t *testing.T) {
	src := &SQLSource{
		SourceName: "names",
		Driver:     "sqlite",
		DSN:        namesDB(t),
		Queries:    []Query{{Label: "PERSON", SQL: "SELECT name, origin FROM firstnames"}},
	}

	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyColumns)

	var loadErr *lmerrors.VocabularyLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "PERSON", loadErr.Label)
	assert.Equal(t, "database:names", loadErr.Source)
	assert.Contains(t, err.Error(), "query returned more than one column")
}

func TestSQLSource_BadQueryAndDriver(t *testing.T) {
	src := &SQLSource{SourceName: "x", Driver: "sqlite", DSN: namesDB(t), Queries: []Query{{Label: "L", SQL: "SELECT nope FROM missing"}}}
	_, err := src.Load(context.Background())
	var loadErr *lmerrors.VocabularyLoadError
	require.True(t, errors.As(err, &loadErr))

	src = &SQLSource{SourceName: "x", Driver: "no-such-driver", DSN: ""}
	_, err = src.Load(context.Background())
	require.True(t, errors.As(err, &loadErr))
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN("db.local:3307", "bot", "s3cret", "names")
	assert.True(t, strings.HasPrefix(dsn, "bot:s3cret@tcp(db.local:3307)/names"), dsn)

	dsn = MySQLDSN("", "bot", "", "names")
	assert.Contains(t, dsn, "tcp(127.0.0.1:3306)/names")
}

const luisDoc = `{
  "luis_schema_version": "3.2.0",
  "intents": [{"name": "None"}],
  "closedLists": [
    {
      "name": "COLOR",
      "subLists": [
        {"canonicalForm": "red", "list": ["crimson", "scarlet"]},
        {"canonicalForm": "blue", "list": []}
      ]
    },
    {
      "name": "SIZE",
      "subLists": [{"canonicalForm": "large", "list": ["big", "huge"]}]
    }
  ]
}`

func TestLUISSource_Load(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.json", luisDoc)
	src := &LUISSource{Path: path}

	defs, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []vocabulary.Definition{
		{Label: "COLOR", Canonical: "red", Members: []string{"red", "crimson", "scarlet"}, Source: src.Name()},
		{Label: "COLOR", Canonical: "blue", Members: []string{"blue"}, Source: src.Name()},
		{Label: "SIZE", Canonical: "large", Members: []string{"large", "big", "huge"}, Source: src.Name()},
	}, defs)
	assert.Equal(t, []string{path}, src.WatchPatterns())
}

func TestParseClosedLists_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid json":   `{"closedLists": [`,
		"no closedLists": `{"intents": []}`,
		"missing name":   `{"closedLists": [{"subLists": []}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClosedLists([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := (&LUISSource{Path: filepath.Join(t.TempDir(), "missing.json")}).Load(context.Background())
	var loadErr *lmerrors.VocabularyLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestWordlistSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lists/b.txt", "Hamburg\n\n  Munich  \n")
	writeFile(t, dir, "lists/a.txt", "# German cities\nBerlin\nBern\n")
	writeFile(t, dir, "lists/nested/c.txt", "Cologne\n")
	writeFile(t, dir, "lists/ignored.csv", "Paris\n")

	src := &WordlistSource{Label: "CITY", Pattern: filepath.Join(dir, "lists", "**", "*.txt")}
	defs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)

	assert.Equal(t, "CITY", defs[0].Label)
	assert.Equal(t, "", defs[0].Canonical)
	assert.Equal(t, []string{"Berlin", "Bern", "Hamburg", "Munich", "Cologne"}, defs[0].Members)
}

func TestWordlistSource_NoMatches(t *testing.T) {
	src := &WordlistSource{Label: "CITY", Pattern: filepath.Join(t.TempDir(), "*.txt")}
	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched no files")
}

func TestWordlistSource_RejectsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Berlin\n")
	writeFile(t, dir, "b.txt", "SQLite format 3\x00\x10\x00")

	src := &WordlistSource{Label: "CITY", Pattern: filepath.Join(dir, "*.txt")}
	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
	var loadErr *lmerrors.VocabularyLoadError
	assert.True(t, errors.As(err, &loadErr))
}

const synonymsDoc = `
[[entity]]
name = "COLOR"
members = ["teal"]

[[entity.value]]
canonical = "red"
synonyms = ["crimson", "scarlet"]

[[entity.value]]
canonical = "blue"

[[entity]]
name = "SIZE"

[[entity.value]]
canonical = "large"
synonyms = ["big"]
`

func TestSynonymsSource_Load(t *testing.T) {
	path := writeFile(t, t.TempDir(), "synonyms.toml", synonymsDoc)
	src := &SynonymsSource{Path: path}

	defs, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []vocabulary.Definition{
		{Label: "COLOR", Members: []string{"teal"}, Source: src.Name()},
		{Label: "COLOR", Canonical: "red", Members: []string{"red", "crimson", "scarlet"}, Source: src.Name()},
		{Label: "COLOR", Canonical: "blue", Members: []string{"blue"}, Source: src.Name()},
		{Label: "SIZE", Canonical: "large", Members: []string{"large", "big"}, Source: src.Name()},
	}, defs)
}

func TestSynonymsSource_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad toml":          "[[entity]\nname=",
		"missing name":      "[[entity]]\nmembers = [\"a\"]\n",
		"missing canonical": "[[entity]]\nname = \"X\"\n[[entity.value]]\nsynonyms = [\"a\"]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, strings.ReplaceAll(name, " ", "_")+".toml", doc)
			_, err := (&SynonymsSource{Path: path}).Load(context.Background())
			var loadErr *lmerrors.VocabularyLoadError
			assert.True(t, errors.As(err, &loadErr))
		})
	}
}

type staticSource struct {
	name string
	defs []vocabulary.Definition
	err  error
}

func (s *staticSource) Name() string { return s.name }
func (s *staticSource) Load(context.Context) ([]vocabulary.Definition, error) {
	return s.defs, s.err
}

func TestLoadAll_OrderAndPartialFailure(t *testing.T) {
	failure := lmerrors.NewVocabularyLoadError("broken", errors.New("connection refused"))
	sources := []Source{
		&staticSource{name: "first", defs: []vocabulary.Definition{{Label: "A"}, {Label: "B"}}},
		&staticSource{name: "broken", err: failure},
		&staticSource{name: "last", defs: []vocabulary.Definition{{Label: "C", Source: "custom"}}},
	}

	defs, err := LoadAll(context.Background(), sources, 2)
	require.Error(t, err)

	var multi *lmerrors.MultiError
	require.True(t, errors.As(err, &multi))
	require.Len(t, multi.Errors, 1)
	assert.ErrorIs(t, err, failure)

	require.Len(t, defs, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{defs[0].Label, defs[1].Label, defs[2].Label})
	assert.Equal(t, "first", defs[0].Source)
	assert.Equal(t, "custom", defs[2].Source)
}

func TestLoadAll_AllSucceed(t *testing.T) {
	defs, err := LoadAll(context.Background(), []Source{&staticSource{name: "s", defs: []vocabulary.Definition{{Label: "A"}}}}, 0)
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	defs, err = LoadAll(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoadAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadAll(ctx, []Source{&staticSource{name: "s"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadEach_WrapsPlainErrors(t *testing.T) {
	sources := []Source{
		&staticSource{name: "ok", defs: []vocabulary.Definition{{Label: "A"}}},
		&staticSource{name: "plain", err: errors.New("boom")},
	}

	results := LoadEach(context.Background(), sources, 1)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Same(t, sources[0], results[0].Source)
	assert.Equal(t, "ok", results[0].Definitions[0].Source)

	var loadErr *lmerrors.VocabularyLoadError
	require.True(t, errors.As(results[1].Err, &loadErr))
	assert.Equal(t, "plain", loadErr.Source)
	assert.Empty(t, results[1].Definitions)
}
