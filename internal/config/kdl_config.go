package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/lexmatch/pkg/pathutil"
)

// parseKDL walks the document tree; unknown nodes are ignored so configs
// written for newer versions still load.
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "min_confidence":
			if v, ok := firstFloatArg(n); ok {
				cfg.MinConfidence = v
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "gram_sizes":
					if sizes := collectIntArgs(cn); len(sizes) > 0 {
						cfg.Index.GramSizes = sizes
					}
				case "min_similarity":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Index.MinSimilarity = v
					}
				case "normalize":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.Normalize = s
					}
				case "rerank":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.Rerank = s
					}
				case "rerank_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.RerankDepth = v
					}
				case "best_only":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.BestOnly = b
					}
				case "cache_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.CacheSize = v
					}
				}
			}
		case "sources":
			for _, cn := range n.Children {
				cfg.Sources = append(cfg.Sources, parseSource(cn))
			}
		case "loading":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "strict":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Loading.Strict = b
					}
				case "parallel":
					if v, ok := firstIntArg(cn); ok {
						cfg.Loading.Parallel = v
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "server":
			for _, cn := range n.Children {
				assignSimpleString(cn, "addr", func(v string) { cfg.Server.Addr = v })
			}
		}
	}

	return cfg, nil
}

// parseSource reads one child of the sources block:
//
//	database "names" { driver "mysql"; host "db"; user "bot"; query "PERSON" "SELECT name FROM people" }
//	luis "app.json"
//	wordlist "CITY" "lists/**/*.txt" { canonical "city" }
//	synonyms "synonyms.toml"
func parseSource(n *document.Node) SourceConfig {
	sc := SourceConfig{Kind: SourceKind(nodeName(n))}
	args := collectStringArgs(n)

	switch sc.Kind {
	case SourceDatabase:
		if len(args) > 0 {
			sc.Name = args[0]
		}
		for _, cn := range n.Children {
			switch nodeName(cn) {
			case "query":
				q := collectStringArgs(cn)
				if len(q) == 2 {
					sc.Queries = append(sc.Queries, QueryConfig{Label: q[0], SQL: q[1]})
				} else {
					log.Printf("WARNING: ignoring query in database %q: expected label and SQL, got %d arguments", sc.Name, len(q))
				}
			default:
				assignSimpleString(cn, "driver", func(v string) { sc.Driver = v })
				assignSimpleString(cn, "dsn", func(v string) { sc.DSN = v })
				assignSimpleString(cn, "host", func(v string) { sc.Host = v })
				assignSimpleString(cn, "user", func(v string) { sc.User = v })
				assignSimpleString(cn, "password", func(v string) { sc.Password = v })
				assignSimpleString(cn, "database", func(v string) { sc.Database = v })
			}
		}
	case SourceLUIS, SourceSynonyms:
		if len(args) > 0 {
			sc.Path = args[0]
		}
	case SourceWordlist:
		if len(args) > 0 {
			sc.Label = args[0]
		}
		if len(args) > 1 {
			sc.Pattern = args[1]
		}
		if len(args) > 2 {
			sc.Canonical = args[2]
		}
		for _, cn := range n.Children {
			assignSimpleString(cn, "canonical", func(v string) { sc.Canonical = v })
		}
	}
	return sc
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func collectIntArgs(n *document.Node) []int {
	out := make([]int, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		switch v := a.Value.(type) {
		case int64:
			out = append(out, int(v))
		case float64:
			out = append(out, int(v))
		}
	}
	return out
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// ToKDL renders cfg as a config file. File paths are written relative to
// the config's directory when they live below it.
func ToKDL(cfg *Config) string {
	var b strings.Builder
	dir := ""
	if cfg.Path != "" {
		dir = cfg.Dir()
	}
	rel := func(p string) string { return pathutil.ToRelative(p, dir) }

	fmt.Fprintf(&b, "min_confidence %s\n\n", formatFloat(cfg.MinConfidence))

	b.WriteString("index {\n")
	sizes := make([]string, len(cfg.Index.GramSizes))
	for i, n := range cfg.Index.GramSizes {
		sizes[i] = strconv.Itoa(n)
	}
	fmt.Fprintf(&b, "    gram_sizes %s\n", strings.Join(sizes, " "))
	fmt.Fprintf(&b, "    min_similarity %s\n", formatFloat(cfg.Index.MinSimilarity))
	fmt.Fprintf(&b, "    normalize %s\n", quote(cfg.Index.Normalize))
	fmt.Fprintf(&b, "    rerank %s\n", quote(cfg.Index.Rerank))
	fmt.Fprintf(&b, "    rerank_depth %d\n", cfg.Index.RerankDepth)
	fmt.Fprintf(&b, "    best_only %t\n", cfg.Index.BestOnly)
	fmt.Fprintf(&b, "    cache_size %d\n", cfg.Index.CacheSize)
	b.WriteString("}\n\n")

	b.WriteString("sources {\n")
	for _, s := range cfg.Sources {
		switch s.Kind {
		case SourceDatabase:
			fmt.Fprintf(&b, "    database %s {\n", quote(s.Name))
			writeOptional(&b, "driver", s.Driver)
			dsn := s.DSN
			if s.Driver == "sqlite" && isSQLiteFilePath(dsn) {
				dsn = rel(dsn)
			}
			writeOptional(&b, "dsn", dsn)
			writeOptional(&b, "host", s.Host)
			writeOptional(&b, "user", s.User)
			writeOptional(&b, "password", s.Password)
			writeOptional(&b, "database", s.Database)
			for _, q := range s.Queries {
				fmt.Fprintf(&b, "        query %s %s\n", quote(q.Label), quote(q.SQL))
			}
			b.WriteString("    }\n")
		case SourceWordlist:
			fmt.Fprintf(&b, "    wordlist %s %s", quote(s.Label), quote(rel(s.Pattern)))
			if s.Canonical != "" {
				fmt.Fprintf(&b, " %s", quote(s.Canonical))
			}
			b.WriteString("\n")
		default:
			fmt.Fprintf(&b, "    %s %s\n", s.Kind, quote(rel(s.Path)))
		}
	}
	b.WriteString("}\n\n")

	b.WriteString("loading {\n")
	fmt.Fprintf(&b, "    strict %t\n", cfg.Loading.Strict)
	fmt.Fprintf(&b, "    parallel %d\n", cfg.Loading.Parallel)
	b.WriteString("}\n\n")

	b.WriteString("watch {\n")
	fmt.Fprintf(&b, "    enabled %t\n", cfg.Watch.Enabled)
	fmt.Fprintf(&b, "    debounce_ms %d\n", cfg.Watch.DebounceMs)
	b.WriteString("}\n\n")

	b.WriteString("server {\n")
	fmt.Fprintf(&b, "    addr %s\n", quote(cfg.Server.Addr))
	b.WriteString("}\n")

	return b.String()
}

func writeOptional(b *strings.Builder, name, value string) {
	if value != "" {
		fmt.Fprintf(b, "        %s %s\n", name, quote(value))
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var kdlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func quote(s string) string {
	return `"` + kdlEscaper.Replace(s) + `"`
}
