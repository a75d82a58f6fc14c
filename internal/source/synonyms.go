package source

import (
	"context"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/lexmatch/internal/vocabulary"
)

// synonymsFile is the TOML closed-list format:
//
//	[[entity]]
//	name = "COLOR"
//	members = ["teal"]          # plain members, reported as themselves
//
//	[[entity.value]]
//	canonical = "red"
//	synonyms = ["crimson", "scarlet"]
type synonymsFile struct {
	Entity []struct {
		Name    string   `toml:"name"`
		Members []string `toml:"members"`
		Value   []struct {
			Canonical string   `toml:"canonical"`
			Synonyms  []string `toml:"synonyms"`
		} `toml:"value"`
	} `toml:"entity"`
}

// SynonymsSource loads closed lists from a TOML file.
type SynonymsSource struct {
	Path string
}

func (s *SynonymsSource) Name() string            { return "synonyms:" + s.Path }
func (s *SynonymsSource) WatchPatterns() []string { return []string{s.Path} }

func (s *SynonymsSource) Load(ctx context.Context) ([]vocabulary.Definition, error) {
	data, err := fileCheck.ReadFile(s.Path)
	if err != nil {
		return nil, loadError(s.Name(), err)
	}

	var file synonymsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, loadError(s.Name(), fmt.Errorf("parse: %w", err))
	}

	var defs []vocabulary.Definition
	for i, e := range file.Entity {
		if e.Name == "" {
			return nil, loadError(s.Name(), fmt.Errorf("entity[%d]: missing name", i))
		}
		if len(e.Members) > 0 {
			defs = append(defs, vocabulary.Definition{Label: e.Name, Members: e.Members, Source: s.Name()})
		}
		for j, v := range e.Value {
			if v.Canonical == "" {
				return nil, loadError(s.Name(), fmt.Errorf("entity %s value[%d]: missing canonical", e.Name, j))
			}
			members := append([]string{v.Canonical}, v.Synonyms...)
			defs = append(defs, vocabulary.Definition{Label: e.Name, Canonical: v.Canonical, Members: members, Source: s.Name()})
		}
	}
	return defs, nil
}
