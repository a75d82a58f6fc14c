package mcp

import (
	"encoding/json"
	"sort"

	"github.com/standardbeagle/lexmatch/internal/types"
)

// UnknownField is an argument that was passed but not recognized. Unknown
// arguments are reported back as warnings instead of failing the call.
type UnknownField struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// collectUnknownFields parses raw JSON into a map, capturing any fields
// that aren't part of the provided known field set.
func collectUnknownFields(data []byte, known map[string]struct{}) ([]UnknownField, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var warnings []UnknownField
	for key, value := range raw {
		if _, ok := known[key]; !ok {
			warnings = append(warnings, decodeUnknownField(key, value))
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Name < warnings[j].Name })
	return warnings, nil
}

func decodeUnknownField(name string, data json.RawMessage) UnknownField {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		value = string(data)
	}
	return UnknownField{Name: name, Value: value}
}

// ExtractParams are the arguments of extract_entities. Either Tokens or
// Text must be given; Text is tokenized on whitespace.
type ExtractParams struct {
	Text     string         `json:"text,omitempty"`
	Tokens   []types.Token  `json:"tokens,omitempty"`
	Warnings []UnknownField `json:"-"`
}

// UnmarshalJSON accepts unknown fields and records them as warnings
func (p *ExtractParams) UnmarshalJSON(data []byte) error {
	type alias ExtractParams
	warnings, err := collectUnknownFields(data, map[string]struct{}{"text": {}, "tokens": {}})
	if err != nil {
		return err
	}
	aux := (*alias)(p)
	if len(data) > 0 {
		if err := json.Unmarshal(data, aux); err != nil {
			return err
		}
	}
	p.Warnings = warnings
	return nil
}

// LookupParams are the arguments of lookup
type LookupParams struct {
	Text     string         `json:"text"`
	Entity   string         `json:"entity,omitempty"`
	Warnings []UnknownField `json:"-"`
}

// UnmarshalJSON accepts unknown fields and records them as warnings
func (p *LookupParams) UnmarshalJSON(data []byte) error {
	type alias LookupParams
	warnings, err := collectUnknownFields(data, map[string]struct{}{"text": {}, "entity": {}})
	if err != nil {
		return err
	}
	aux := (*alias)(p)
	if len(data) > 0 {
		if err := json.Unmarshal(data, aux); err != nil {
			return err
		}
	}
	p.Warnings = warnings
	return nil
}
