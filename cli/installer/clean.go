package installer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/rs/zerolog/log"
)

// Clean removes every path under dir matching one of patterns. Patterns are
// relative to dir. It returns the removed paths relative to dir, sorted.
func Clean(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid clean pattern: %w", err)
	}

	var matched []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return filepath.SkipDir
			}
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return nil
		}
		rel = filepath.ToSlash(rel)

		ok, err := matcher.MatchesOrParentMatches(rel)
		if err != nil {
			return fmt.Errorf("match %s: %w", rel, err)
		}
		if !ok {
			return nil
		}
		matched = append(matched, rel)
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(matched)
	for _, rel := range matched {
		if err := os.RemoveAll(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", rel, err)
		}
		log.Trace().Str("dir", dir).Str("path", rel).Msg("Removed")
	}
	return matched, nil
}
