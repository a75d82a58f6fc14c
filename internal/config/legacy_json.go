package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/types"
)

// LoadLegacyJSON reads the JSON component config used by earlier
// deployments. Two shapes are accepted:
//
//	{"minimumConfidence": 0.8,
//	 "database_config": {"host": "...", "user": "...", "password": "...", "database": "..."},
//	 "database_queries": {"PERSON": "SELECT name FROM firstnames"}}
//
// or a LUIS application export (a document with "closedLists"), optionally
// carrying "min_confidence". Query order follows the document.
func LoadLegacyJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, lmerrors.NewConfigError("legacy_json", path, errors.New("invalid JSON"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	cfg := Default()
	cfg.Path = abs
	doc := gjson.ParseBytes(data)

	switch {
	case doc.Get("closedLists").Exists():
		cfg.MinConfidence = types.DefaultMinConfidence
		if mc := doc.Get("min_confidence"); mc.Exists() {
			cfg.MinConfidence = mc.Float()
		}
		cfg.Sources = append(cfg.Sources, SourceConfig{Kind: SourceLUIS, Path: abs})

	case doc.Get("database_queries").Exists():
		mc := doc.Get("minimumConfidence")
		if !mc.Exists() {
			return nil, lmerrors.NewConfigError("minimumConfidence", "", errors.New("required in database config"))
		}
		cfg.MinConfidence = mc.Float()

		db := doc.Get("database_config")
		src := SourceConfig{
			Kind:     SourceDatabase,
			Name:     db.Get("database").String(),
			Driver:   "mysql",
			Host:     db.Get("host").String(),
			User:     db.Get("user").String(),
			Password: db.Get("password").String(),
			Database: db.Get("database").String(),
		}
		if src.Name == "" {
			src.Name = "legacy"
		}
		doc.Get("database_queries").ForEach(func(label, query gjson.Result) bool {
			src.Queries = append(src.Queries, QueryConfig{Label: label.String(), SQL: query.String()})
			return true
		})
		cfg.Sources = append(cfg.Sources, src)

	default:
		return nil, lmerrors.NewConfigError("legacy_json", path,
			errors.New("expected database_queries or closedLists"))
	}

	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
