package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/standardbeagle/lexmatch/internal/vocabulary"
)

// LUISSource reads the closed lists of a LUIS application export. Each
// sublist becomes its own group whose canonical form is reported for any
// matching synonym.
type LUISSource struct {
	Path string
}

func (s *LUISSource) Name() string            { return "luis:" + s.Path }
func (s *LUISSource) WatchPatterns() []string { return []string{s.Path} }

func (s *LUISSource) Load(ctx context.Context) ([]vocabulary.Definition, error) {
	data, err := fileCheck.ReadFile(s.Path)
	if err != nil {
		return nil, loadError(s.Name(), err)
	}
	defs, err := ParseClosedLists(data)
	if err != nil {
		return nil, loadError(s.Name(), err)
	}
	for i := range defs {
		defs[i].Source = s.Name()
	}
	return defs, nil
}

// ParseClosedLists extracts closedLists[].subLists[] from a LUIS document.
// Everything else in the document is ignored.
func ParseClosedLists(data []byte) ([]vocabulary.Definition, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	lists := gjson.GetBytes(data, "closedLists")
	if !lists.IsArray() {
		return nil, errors.New("document has no closedLists array")
	}

	var defs []vocabulary.Definition
	var parseErr error
	lists.ForEach(func(i, list gjson.Result) bool {
		name := list.Get("name").String()
		if name == "" {
			parseErr = fmt.Errorf("closedLists[%d]: missing name", i.Int())
			return false
		}
		list.Get("subLists").ForEach(func(_, sub gjson.Result) bool {
			canonical := sub.Get("canonicalForm").String()
			members := []string{canonical}
			for _, syn := range sub.Get("list").Array() {
				members = append(members, syn.String())
			}
			defs = append(defs, vocabulary.Definition{Label: name, Canonical: canonical, Members: members})
			return true
		})
		return true
	})
	return defs, parseErr
}
