package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/similarity"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Every failure is a *errors.ConfigError naming the offending field.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if math.IsNaN(cfg.MinConfidence) || cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return lmerrors.NewConfigError("min_confidence", fmt.Sprint(cfg.MinConfidence),
			fmt.Errorf("invalid min confidence: %.2f (must be 0-1)", cfg.MinConfidence))
	}

	if err := cfg.Index.Options().Validate(); err != nil {
		return err
	}
	if cfg.Index.CacheSize < 0 {
		return lmerrors.NewConfigError("index.cache_size", strconv.Itoa(cfg.Index.CacheSize),
			errors.New("cache size cannot be negative"))
	}

	for i := range cfg.Sources {
		if err := v.validateSource(i, &cfg.Sources[i]); err != nil {
			return err
		}
	}

	if cfg.Loading.Parallel < 0 {
		return lmerrors.NewConfigError("loading.parallel", strconv.Itoa(cfg.Loading.Parallel),
			errors.New("parallel cannot be negative"))
	}
	if cfg.Watch.DebounceMs < 0 {
		return lmerrors.NewConfigError("watch.debounce_ms", strconv.Itoa(cfg.Watch.DebounceMs),
			errors.New("debounce cannot be negative"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateSource(i int, s *SourceConfig) error {
	field := func(name string) string { return fmt.Sprintf("sources[%d].%s", i, name) }
	missing := func(name string) error {
		return lmerrors.NewConfigError(field(name), "", fmt.Errorf("%s source requires %s", s.Kind, name))
	}

	switch s.Kind {
	case SourceDatabase:
		if s.Name == "" {
			return missing("name")
		}
		switch s.Driver {
		case "sqlite":
			if s.DSN == "" {
				return missing("dsn")
			}
		case "mysql":
			if s.DSN == "" && s.Database == "" {
				return missing("dsn")
			}
		default:
			return lmerrors.NewConfigError(field("driver"), s.Driver, errors.New("driver must be sqlite or mysql"))
		}
		if len(s.Queries) == 0 {
			return missing("query")
		}
		for j, q := range s.Queries {
			if q.Label == "" || q.SQL == "" {
				return lmerrors.NewConfigError(fmt.Sprintf("%s[%d]", field("query"), j), q.Label,
					errors.New("query requires a label and SQL"))
			}
		}
	case SourceLUIS, SourceSynonyms:
		if s.Path == "" {
			return missing("path")
		}
	case SourceWordlist:
		if s.Label == "" {
			return missing("label")
		}
		if s.Pattern == "" {
			return missing("pattern")
		}
		if !doublestar.ValidatePathPattern(s.Pattern) {
			return lmerrors.NewConfigError(field("pattern"), s.Pattern, errors.New("invalid glob pattern"))
		}
	default:
		return lmerrors.NewConfigError(field("kind"), string(s.Kind),
			errors.New("unknown source kind (must be database, luis, wordlist or synonyms)"))
	}
	return nil
}

// setSmartDefaults fills zero values based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Loading.Parallel == 0 {
		cfg.Loading.Parallel = max(1, runtime.NumCPU()-1)
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = DefaultDebounceMs
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Index.Normalize == "" {
		cfg.Index.Normalize = string(similarity.NormalizeNone)
	}
	if cfg.Index.RerankDepth == 0 {
		cfg.Index.RerankDepth = similarity.DefaultRerankDepth
	}
}
