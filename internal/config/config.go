package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/lexmatch/internal/similarity"
	"github.com/standardbeagle/lexmatch/internal/types"
	"github.com/standardbeagle/lexmatch/pkg/pathutil"
)

// FileName is the config file looked up in the working directory
const FileName = ".lexmatch.kdl"

const (
	DefaultDebounceMs = 250
	DefaultServerAddr = "127.0.0.1:8088"
)

type Config struct {
	Path          string // file the config was loaded from; empty for defaults
	MinConfidence float64
	Index         Index
	Sources       []SourceConfig
	Loading       Loading
	Watch         Watch
	Server        Server
}

type Index struct {
	GramSizes     []int
	MinSimilarity float64
	Normalize     string
	Rerank        string
	RerankDepth   int
	BestOnly      bool
	CacheSize     int // per-group LRU of query results; 0 disables
}

// Options converts the section to similarity index options
func (i Index) Options() similarity.Options {
	return similarity.Options{
		GramSizes:     append([]int(nil), i.GramSizes...),
		MinSimilarity: i.MinSimilarity,
		Normalization: similarity.Normalization(i.Normalize),
		Rerank:        i.Rerank,
		RerankDepth:   i.RerankDepth,
		BestOnly:      i.BestOnly,
	}
}

type SourceKind string

const (
	SourceDatabase SourceKind = "database"
	SourceLUIS     SourceKind = "luis"
	SourceWordlist SourceKind = "wordlist"
	SourceSynonyms SourceKind = "synonyms"
)

// SourceConfig describes one vocabulary source. Which fields apply depends
// on Kind.
type SourceConfig struct {
	Kind SourceKind

	// database
	Name     string
	Driver   string // "sqlite" or "mysql"
	DSN      string
	Host     string // mysql settings used when DSN is empty
	User     string
	Password string
	Database string
	Queries  []QueryConfig

	// luis, synonyms
	Path string

	// wordlist
	Label     string
	Pattern   string
	Canonical string
}

type QueryConfig struct {
	Label string
	SQL   string
}

type Loading struct {
	Strict   bool // any source failure fails construction
	Parallel int  // concurrent source loads; 0 = auto-detect
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

type Server struct {
	Addr string
}

// Default returns a config with no sources
func Default() *Config {
	opts := similarity.DefaultOptions()
	return &Config{
		MinConfidence: types.DefaultMinConfidence,
		Index: Index{
			GramSizes:     opts.GramSizes,
			MinSimilarity: opts.MinSimilarity,
			Normalize:     string(opts.Normalization),
			Rerank:        opts.Rerank,
			RerankDepth:   opts.RerankDepth,
			BestOnly:      opts.BestOnly,
		},
		Sources: []SourceConfig{},
		Watch:   Watch{DebounceMs: DefaultDebounceMs},
		Server:  Server{Addr: DefaultServerAddr},
	}
}

// Dir returns the directory relative source paths are resolved against
func (c *Config) Dir() string {
	if c.Path == "" {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Dir(c.Path)
}

// Load reads, parses, resolves and validates a KDL config file
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.Path = abs
	cfg.resolvePaths()

	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadKDL loads FileName from dir. Returns nil, nil when the file does not exist.
func LoadKDL(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return Load(path)
}

// resolvePaths makes file-backed source paths absolute, relative to the
// config file's directory
func (c *Config) resolvePaths() {
	dir := c.Dir()
	for i := range c.Sources {
		s := &c.Sources[i]
		switch s.Kind {
		case SourceLUIS, SourceSynonyms:
			s.Path = pathutil.ToAbsolute(s.Path, dir)
		case SourceWordlist:
			s.Pattern = pathutil.ToAbsolute(s.Pattern, dir)
		case SourceDatabase:
			if s.Driver == "sqlite" && isSQLiteFilePath(s.DSN) {
				s.DSN = pathutil.ToAbsolute(s.DSN, dir)
			}
		}
	}
}

func isSQLiteFilePath(dsn string) bool {
	if dsn == "" || dsn == ":memory:" {
		return false
	}
	return len(dsn) < 5 || dsn[:5] != "file:"
}
