package source

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lexmatch/internal/debug"
	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/security"
	"github.com/standardbeagle/lexmatch/internal/vocabulary"
)

// fileCheck screens every vocabulary file before it is parsed
var fileCheck = security.NewFileValidator(security.DefaultMaxFileSize)

// Source produces vocabulary definitions. Load is the only fallible,
// I/O-bound step in building an extractor; every failure comes back as a
// *errors.VocabularyLoadError.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]vocabulary.Definition, error)
}

// FileSource is implemented by sources backed by files on disk so a
// watcher knows what to observe. Patterns are doublestar globs or plain paths.
type FileSource interface {
	Source
	WatchPatterns() []string
}

// Result is the outcome of loading one source.
type Result struct {
	Source      Source
	Definitions []vocabulary.Definition
	Err         error
}

// LoadEach loads sources concurrently, at most parallel at a time, and
// reports one Result per source in source order. A failed source never
// stops the others. Definitions without a Source name are stamped with the
// name of the source that produced them.
func LoadEach(ctx context.Context, sources []Source, parallel int) []Result {
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	results := make([]Result, len(sources))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, src := range sources {
		results[i].Source = src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = loadError(src.Name(), err)
				return nil
			}
			start := time.Now()
			defs, err := src.Load(ctx)
			if err != nil {
				results[i].Err = loadError(src.Name(), err)
				debug.LogLoad("%s: failed after %v: %v\n", src.Name(), time.Since(start), err)
				return nil
			}
			for j := range defs {
				if defs[j].Source == "" {
					defs[j].Source = src.Name()
				}
			}
			results[i].Definitions = defs
			debug.LogLoad("%s: %d definitions in %v\n", src.Name(), len(defs), time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// LoadAll flattens LoadEach. Definitions come back in source order; errors
// of failed sources are collected into a *errors.MultiError while the
// definitions of successful sources are still returned.
func LoadAll(ctx context.Context, sources []Source, parallel int) ([]vocabulary.Definition, error) {
	results := LoadEach(ctx, sources, parallel)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var defs []vocabulary.Definition
	errs := make([]error, 0)
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		defs = append(defs, r.Definitions...)
	}
	return defs, lmerrors.NewMultiError(errs).ErrorOrNil()
}

// loadError wraps err as a VocabularyLoadError unless it already is one.
func loadError(source string, err error) error {
	if _, ok := err.(*lmerrors.VocabularyLoadError); ok {
		return err
	}
	return lmerrors.NewVocabularyLoadError(source, err)
}
