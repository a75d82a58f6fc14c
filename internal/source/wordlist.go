package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/lexmatch/internal/vocabulary"
)

// WordlistSource builds one group from every file matching a glob, one
// member per line. Blank lines and lines starting with '#' are skipped.
type WordlistSource struct {
	Label     string
	Pattern   string
	Canonical string
}

func (s *WordlistSource) Name() string            { return "wordlist:" + s.Label }
func (s *WordlistSource) WatchPatterns() []string { return []string{s.Pattern} }

func (s *WordlistSource) Load(ctx context.Context) ([]vocabulary.Definition, error) {
	files, err := doublestar.FilepathGlob(s.Pattern)
	if err != nil {
		return nil, loadError(s.Name(), fmt.Errorf("bad pattern %q: %w", s.Pattern, err))
	}
	if len(files) == 0 {
		return nil, loadError(s.Name(), fmt.Errorf("pattern %q matched no files", s.Pattern))
	}
	sort.Strings(files)

	var members []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, loadError(s.Name(), err)
		}
		lines, err := readWordlist(f)
		if err != nil {
			return nil, loadError(s.Name(), err)
		}
		members = append(members, lines...)
	}
	return []vocabulary.Definition{{
		Label:     s.Label,
		Canonical: s.Canonical,
		Members:   members,
		Source:    s.Name(),
	}}, nil
}

func readWordlist(path string) ([]string, error) {
	if err := fileCheck.Validate(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
