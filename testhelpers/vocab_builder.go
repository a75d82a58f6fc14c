package testhelpers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lexmatch/internal/config"
)

// VocabularyDir writes vocabulary files into an isolated temp directory.
type VocabularyDir struct {
	t    testing.TB
	Root string
}

// NewVocabularyDir creates an empty vocabulary directory removed when the
// test ends.
func NewVocabularyDir(t testing.TB) *VocabularyDir {
	t.Helper()
	return &VocabularyDir{t: t, Root: t.TempDir()}
}

// Path returns name joined to the directory root
func (v *VocabularyDir) Path(name string) string {
	return filepath.Join(v.Root, filepath.FromSlash(name))
}

// WriteFile writes raw content, creating parent directories
func (v *VocabularyDir) WriteFile(name string, content []byte) string {
	v.t.Helper()
	path := v.Path(name)
	require.NoError(v.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(v.t, os.WriteFile(path, content, 0644))
	return path
}

// Wordlist writes one member per line
func (v *VocabularyDir) Wordlist(name string, members ...string) string {
	v.t.Helper()
	return v.WriteFile(name, []byte(strings.Join(members, "\n")+"\n"))
}

// Synonym is one canonical value with the forms that map to it
type Synonym struct {
	Canonical string   `toml:"canonical" json:"canonicalForm"`
	Synonyms  []string `toml:"synonyms" json:"list"`
}

// SynonymEntity is a labelled closed list
type SynonymEntity struct {
	Name    string    `toml:"name"`
	Members []string  `toml:"members,omitempty"`
	Value   []Synonym `toml:"value,omitempty"`
}

// Synonyms writes a TOML synonyms file
func (v *VocabularyDir) Synonyms(name string, entities ...SynonymEntity) string {
	v.t.Helper()
	data, err := toml.Marshal(struct {
		Entity []SynonymEntity `toml:"entity"`
	}{entities})
	require.NoError(v.t, err)
	return v.WriteFile(name, data)
}

// LUIS writes a LUIS application export holding the given closed lists
func (v *VocabularyDir) LUIS(name string, entities ...SynonymEntity) string {
	v.t.Helper()
	type closedList struct {
		Name     string    `json:"name"`
		SubLists []Synonym `json:"subLists"`
	}
	lists := make([]closedList, 0, len(entities))
	for _, e := range entities {
		lists = append(lists, closedList{Name: e.Name, SubLists: e.Value})
	}
	data, err := json.MarshalIndent(map[string]any{"closedLists": lists}, "", "  ")
	require.NoError(v.t, err)
	return v.WriteFile(name, data)
}

// Config writes cfg as the directory's KDL config and returns its path
func (v *VocabularyDir) Config(cfg *config.Config) string {
	v.t.Helper()
	cfg.Path = v.Path(config.FileName)
	return v.WriteFile(config.FileName, []byte(config.ToKDL(cfg)))
}
