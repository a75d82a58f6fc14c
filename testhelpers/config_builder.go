// Package testhelpers provides shared utilities for testing lexmatch
package testhelpers

import (
	"path/filepath"

	"github.com/standardbeagle/lexmatch/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with
// fast, deterministic defaults.
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(dir).
//		WithWordlist("CITY", "lists/*.txt").
//		WithMinConfidence(1.0).
//		Build()
type TestConfigBuilder struct {
	root string
	cfg  *config.Config
}

// NewTestConfigBuilder creates a builder whose relative paths resolve
// against root.
func NewTestConfigBuilder(root string) *TestConfigBuilder {
	cfg := config.Default()
	cfg.Path = filepath.Join(root, config.FileName)
	cfg.Loading.Parallel = 2  // predictable scheduling
	cfg.Watch.DebounceMs = 10 // fast debounce for tests
	cfg.Server.Addr = "127.0.0.1:0"
	return &TestConfigBuilder{root: root, cfg: cfg}
}

func (b *TestConfigBuilder) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.root, p)
}

// WithWordlist adds a wordlist source for the glob pattern
func (b *TestConfigBuilder) WithWordlist(label, pattern string) *TestConfigBuilder {
	b.cfg.Sources = append(b.cfg.Sources, config.SourceConfig{
		Kind:    config.SourceWordlist,
		Label:   label,
		Pattern: b.path(pattern),
	})
	return b
}

// WithSynonyms adds a TOML synonyms source
func (b *TestConfigBuilder) WithSynonyms(path string) *TestConfigBuilder {
	b.cfg.Sources = append(b.cfg.Sources, config.SourceConfig{Kind: config.SourceSynonyms, Path: b.path(path)})
	return b
}

// WithLUIS adds a LUIS export source
func (b *TestConfigBuilder) WithLUIS(path string) *TestConfigBuilder {
	b.cfg.Sources = append(b.cfg.Sources, config.SourceConfig{Kind: config.SourceLUIS, Path: b.path(path)})
	return b
}

// WithSQLite adds a database source reading a SQLite file
func (b *TestConfigBuilder) WithSQLite(name, path string, queries ...config.QueryConfig) *TestConfigBuilder {
	b.cfg.Sources = append(b.cfg.Sources, config.SourceConfig{
		Kind:    config.SourceDatabase,
		Name:    name,
		Driver:  "sqlite",
		DSN:     b.path(path),
		Queries: queries,
	})
	return b
}

// WithMinConfidence sets the matcher threshold
func (b *TestConfigBuilder) WithMinConfidence(v float64) *TestConfigBuilder {
	b.cfg.MinConfidence = v
	return b
}

// Strict makes any source failure fatal
func (b *TestConfigBuilder) Strict() *TestConfigBuilder {
	b.cfg.Loading.Strict = true
	return b
}

// WithWatch enables the file watcher
func (b *TestConfigBuilder) WithWatch() *TestConfigBuilder {
	b.cfg.Watch.Enabled = true
	return b
}

// Build returns the config. The builder must not be reused.
func (b *TestConfigBuilder) Build() *config.Config {
	return b.cfg
}
