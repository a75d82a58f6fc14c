package extractor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/lexmatch/internal/config"
	"github.com/standardbeagle/lexmatch/internal/debug"
	lmerrors "github.com/standardbeagle/lexmatch/internal/errors"
	"github.com/standardbeagle/lexmatch/internal/matcher"
	"github.com/standardbeagle/lexmatch/internal/similarity"
	"github.com/standardbeagle/lexmatch/internal/source"
	"github.com/standardbeagle/lexmatch/internal/types"
	"github.com/standardbeagle/lexmatch/internal/vocabulary"
)

// Extractor is the pipeline component: it owns the vocabulary sources,
// builds a matcher from what they load and appends matches to messages.
//
// Construction is two-phase. Sources are loaded first (the only fallible,
// I/O-bound step); the matcher is then built from plain definitions.
// Reload repeats both phases and swaps the matcher atomically, so callers
// matching concurrently keep the matcher they started with.
type Extractor struct {
	cfg     *config.Config
	sources []source.Source
	opts    similarity.Options

	matcher atomic.Pointer[matcher.Matcher]

	reloadMu sync.Mutex
	// groups built from each source by the last successful build, keyed by
	// source name; reused when a source fails to reload in lenient mode
	bySource map[string][]*vocabulary.Group

	statsMu       sync.RWMutex
	reloads       int
	reusedGroups  int
	lastReload    time.Time
	lastErr       error
	failedSources []string
}

// Stats reports the current vocabulary and reload history.
type Stats struct {
	Groups        int       `json:"groups"`
	Members       int       `json:"members"`
	Sources       int       `json:"sources"`
	MinConfidence float64   `json:"min_confidence"`
	Reloads       int       `json:"reloads"`
	ReusedGroups  int       `json:"reused_groups"`
	LastReload    time.Time `json:"last_reload"`
	LastError     string    `json:"last_error,omitempty"`
	FailedSources []string  `json:"failed_sources,omitempty"`
}

// GroupCandidates holds the unfiltered lookup result of one group.
type GroupCandidates struct {
	Entity     string                 `json:"entity"`
	Canonical  string                 `json:"canonical,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Candidates []types.MatchCandidate `json:"candidates"`
}

// New builds the sources named in cfg and loads them.
func New(ctx context.Context, cfg *config.Config) (*Extractor, error) {
	sources, err := BuildSources(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithSources(ctx, cfg, sources)
}

// NewWithSources loads the given sources instead of the ones configured.
// With cfg.Loading.Strict any load failure fails construction; otherwise
// failed sources are logged and skipped.
func NewWithSources(ctx context.Context, cfg *config.Config, sources []source.Source) (*Extractor, error) {
	opts := cfg.Index.Options()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		cfg:      cfg,
		sources:  sources,
		opts:     opts,
		bySource: make(map[string][]*vocabulary.Group),
	}
	if _, fatal := e.load(ctx, true); fatal != nil {
		return nil, fatal
	}
	return e, nil
}

// BuildSources turns source configuration into Source implementations.
func BuildSources(cfg *config.Config) ([]source.Source, error) {
	out := make([]source.Source, 0, len(cfg.Sources))
	for i, sc := range cfg.Sources {
		switch sc.Kind {
		case config.SourceDatabase:
			queries := make([]source.Query, len(sc.Queries))
			for j, q := range sc.Queries {
				queries[j] = source.Query{Label: q.Label, SQL: q.SQL}
			}
			dsn := sc.DSN
			if dsn == "" && sc.Driver == "mysql" {
				dsn = source.MySQLDSN(sc.Host, sc.User, sc.Password, sc.Database)
			}
			out = append(out, &source.SQLSource{SourceName: sc.Name, Driver: sc.Driver, DSN: dsn, Queries: queries})
		case config.SourceLUIS:
			out = append(out, &source.LUISSource{Path: sc.Path})
		case config.SourceWordlist:
			out = append(out, &source.WordlistSource{Label: sc.Label, Pattern: sc.Pattern, Canonical: sc.Canonical})
		case config.SourceSynonyms:
			out = append(out, &source.SynonymsSource{Path: sc.Path})
		default:
			return nil, lmerrors.NewConfigError(fmt.Sprintf("sources[%d].kind", i), string(sc.Kind), errors.New("unknown source kind"))
		}
	}
	return out, nil
}

// Reload reloads every source and swaps in a new matcher. Groups whose
// fingerprint did not change are reused. In strict mode any failure keeps
// the current matcher and returns the error; otherwise a failed source
// keeps the groups it produced last time and the error is still returned
// for reporting.
func (e *Extractor) Reload(ctx context.Context) error {
	partial, fatal := e.load(ctx, false)
	if fatal != nil {
		return fatal
	}
	return partial
}

// load runs both phases. fatal means the matcher was not replaced; partial
// reports sources or definitions that were skipped in lenient mode.
func (e *Extractor) load(ctx context.Context, initial bool) (partial, fatal error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	results := source.LoadEach(ctx, e.sources, e.cfg.Loading.Parallel)
	if err := ctx.Err(); err != nil {
		e.recordFailure(err, nil)
		return nil, err
	}

	var errs []error
	var failed []string
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			failed = append(failed, r.Source.Name())
		}
	}
	loadErr := lmerrors.NewMultiError(errs).ErrorOrNil()

	if loadErr != nil && e.cfg.Loading.Strict {
		e.recordFailure(loadErr, failed)
		return nil, loadErr
	}

	previous := make(map[uint64]*vocabulary.Group)
	for _, groups := range e.bySource {
		for _, g := range groups {
			previous[g.Fingerprint()] = g
		}
	}

	bySource := make(map[string][]*vocabulary.Group, len(results))
	var all []*vocabulary.Group
	reused := 0
	for _, r := range results {
		name := r.Source.Name()
		if r.Err != nil {
			if stale, ok := e.bySource[name]; ok {
				log.Printf("WARNING: %v; keeping %d groups from the previous load", r.Err, len(stale))
				bySource[name] = stale
				all = append(all, stale...)
			} else {
				log.Printf("WARNING: %v; source skipped", r.Err)
			}
			continue
		}
		for _, def := range r.Definitions {
			g, wasReused, err := e.group(def, previous)
			if err != nil {
				if e.cfg.Loading.Strict {
					e.recordFailure(err, []string{name})
					return nil, err
				}
				log.Printf("WARNING: %s: %v; definition skipped", name, err)
				errs = append(errs, err)
				continue
			}
			if wasReused {
				reused++
			}
			bySource[name] = append(bySource[name], g)
			all = append(all, g)
		}
	}

	m, err := matcher.New(all, e.cfg.MinConfidence)
	if err != nil {
		e.recordFailure(err, failed)
		return nil, err
	}
	if len(all) == 0 {
		log.Printf("WARNING: no vocabulary groups loaded; nothing will be matched")
	}

	e.matcher.Store(m)
	e.bySource = bySource

	e.statsMu.Lock()
	if !initial {
		e.reloads++
	}
	e.reusedGroups = reused
	e.lastReload = time.Now()
	e.failedSources = failed
	partial = lmerrors.NewMultiError(errs).ErrorOrNil()
	e.lastErr = partial
	e.statsMu.Unlock()

	debug.LogLoad("built %d groups (%d reused) from %d sources in %v\n", len(all), reused, len(e.sources), time.Since(start))
	return partial, nil
}

func (e *Extractor) group(def vocabulary.Definition, previous map[uint64]*vocabulary.Group) (*vocabulary.Group, bool, error) {
	if g, ok := previous[vocabulary.Fingerprint(def, e.opts)]; ok {
		return g, true, nil
	}
	g, err := vocabulary.NewGroup(def, e.opts)
	if err != nil {
		return nil, false, err
	}
	g, err = g.WithQueryCache(e.cfg.Index.CacheSize)
	return g, false, err
}

func (e *Extractor) recordFailure(err error, failed []string) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.lastErr = err
	e.failedSources = failed
}

// Matcher returns the matcher currently in use.
func (e *Extractor) Matcher() *matcher.Matcher {
	return e.matcher.Load()
}

// Extract matches tokens against the current vocabulary.
func (e *Extractor) Extract(tokens []types.Token) []types.EntityMatch {
	return e.Matcher().Match(tokens)
}

// ExtractBatch matches many token sequences in parallel.
func (e *Extractor) ExtractBatch(ctx context.Context, batches [][]types.Token) ([][]types.EntityMatch, error) {
	return e.Matcher().MatchBatch(ctx, batches, e.cfg.Loading.Parallel)
}

// Process appends the entities found in msg.Tokens to msg.Entities, keeping
// entities already present. Messages carrying text but no tokens are
// tokenized on whitespace first.
func (e *Extractor) Process(msg *types.Message) {
	if msg == nil {
		return
	}
	if len(msg.Tokens) == 0 && msg.Text != "" {
		msg.Tokens = Tokenize(msg.Text)
	}
	msg.Entities = append(msg.Entities, e.Extract(msg.Tokens)...)
}

// ProcessBatch processes msgs in parallel, in place.
func (e *Extractor) ProcessBatch(ctx context.Context, msgs []types.Message) error {
	batches := make([][]types.Token, len(msgs))
	for i := range msgs {
		if len(msgs[i].Tokens) == 0 && msgs[i].Text != "" {
			msgs[i].Tokens = Tokenize(msgs[i].Text)
		}
		batches[i] = msgs[i].Tokens
	}

	results, err := e.ExtractBatch(ctx, batches)
	if err != nil {
		return err
	}
	for i := range msgs {
		msgs[i].Entities = append(msgs[i].Entities, results[i]...)
	}
	return nil
}

// Lookup returns every group's candidates for text, ignoring the
// confidence threshold. Groups without candidates are omitted.
func (e *Extractor) Lookup(text string) []GroupCandidates {
	m := e.Matcher()
	out := make([]GroupCandidates, 0)
	for i := 0; i < m.Len(); i++ {
		g := m.Group(i)
		candidates := g.Lookup(text)
		if len(candidates) == 0 {
			continue
		}
		out = append(out, GroupCandidates{
			Entity:     g.Label(),
			Canonical:  g.Canonical(),
			Source:     g.Source(),
			Candidates: candidates,
		})
	}
	return out
}

// Groups lists the current vocabulary groups.
func (e *Extractor) Groups() []types.GroupInfo {
	return e.Matcher().Groups()
}

// Sources returns the configured sources in load order.
func (e *Extractor) Sources() []source.Source {
	return e.sources
}

// Config returns the configuration the extractor was built from.
func (e *Extractor) Config() *config.Config {
	return e.cfg
}

// Stats returns a snapshot of the current state.
func (e *Extractor) Stats() Stats {
	m := e.Matcher()
	members := 0
	for _, g := range m.Groups() {
		members += g.Members
	}

	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	s := Stats{
		Groups:        m.Len(),
		Members:       members,
		Sources:       len(e.sources),
		MinConfidence: m.MinConfidence(),
		Reloads:       e.reloads,
		ReusedGroups:  e.reusedGroups,
		LastReload:    e.lastReload,
		FailedSources: append([]string(nil), e.failedSources...),
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}
