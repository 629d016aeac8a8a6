// Package entries resolves the source files that feed a layer's bundle.
package entries

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/layerpack/cli/config"
)

// Skip reasons
const (
	ReasonImage        = "image-based functions are not supported"
	ReasonOptedOut     = "shouldLayer is false"
	ReasonBadHandler   = "no source path can be derived from the handler"
	ReasonNoSourceFile = "no source file matches the handler"
	ReasonBadPattern   = "invalid entry pattern"
)

// Entry is one resolved bundle entry point
type Entry struct {
	Function string `json:"function"`
	Key      string `json:"key"`
	Path     string `json:"path"`
}

// Skip records a function or pattern that contributed no entry
type Skip struct {
	Function string `json:"function"`
	Detail   string `json:"detail,omitempty"`
	Reason   string `json:"reason"`
}

// Resolution is the outcome of resolving a layer's entries
type Resolution struct {
	// Entries maps entry key to absolute source path; later keys overwrite earlier ones
	Entries map[string]string `json:"entries"`
	Matched []Entry           `json:"matched"`
	Skipped []Skip            `json:"skipped,omitempty"`
}

// Keys returns the entry keys in sorted order
func (r *Resolution) Keys() []string {
	keys := make([]string, 0, len(r.Entries))
	for k := range r.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Resolution) add(fn, key, path string) {
	r.Entries[key] = path
	r.Matched = append(r.Matched, Entry{Function: fn, Key: key, Path: path})
}

func (r *Resolution) skip(fn, detail, reason string) {
	r.Skipped = append(r.Skipped, Skip{Function: fn, Detail: detail, Reason: reason})
}

// Resolver finds the entry points of the functions attached to a layer
type Resolver struct {
	// Dir is the project root that handlers and patterns are relative to
	Dir string
	// BackupFileType is the extension used when several files share a handler prefix
	BackupFileType string
}

// NewResolver creates a resolver rooted at dir
func NewResolver(dir, backupFileType string) *Resolver {
	return &Resolver{Dir: dir, BackupFileType: backupFileType}
}

// Resolve returns every entry point needed to discover the external
// dependencies of the layer referenced as layerRefName.
func (r *Resolver) Resolve(ctx context.Context, functions config.FunctionList, layerRefName string) (*Resolution, error) {
	res := &Resolution{Entries: map[string]string{}}

	for _, fn := range functions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if fn.IsImage() {
			log.Info().Str("function", fn.Key).Msg("Functions with an image are not supported, skipping")
			res.skip(fn.Key, "", ReasonImage)
			continue
		}
		if !fn.References(layerRefName) {
			continue
		}
		if !fn.Layered() {
			res.skip(fn.Key, "", ReasonOptedOut)
			continue
		}

		for _, pattern := range fn.Entry {
			matches, err := r.glob(pattern)
			if err != nil {
				log.Warn().Err(err).Str("function", fn.Key).Str("pattern", pattern).Msg("Ignoring entry pattern")
				res.skip(fn.Key, pattern, ReasonBadPattern)
				continue
			}
			for _, match := range matches {
				res.add(fn.Key, match, r.abs(match))
			}
		}

		handler, ok := ParseHandler(fn.Handler)
		if !ok {
			log.Debug().Str("function", fn.Key).Str("handler", fn.Handler).Msg("Handler has no derivable source path")
			res.skip(fn.Key, fn.Handler, ReasonBadHandler)
			continue
		}

		dirEntries, err := os.ReadDir(r.abs(handler.Dir()))
		if err != nil {
			return nil, fmt.Errorf("failed to list handler folder for %s: %w", fn.Key, err)
		}

		fileName, ok := handler.SelectFile(dirEntries, r.BackupFileType)
		if !ok {
			log.Warn().Str("function", fn.Key).Str("handler", fn.Handler).Msg("No source file matches handler")
			res.skip(fn.Key, fn.Handler, ReasonNoSourceFile)
			continue
		}

		path := r.abs(filepath.Join(handler.Folder, fileName))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("function", fn.Key).Str("path", path).Msg("Resolved handler file does not exist")
		}
		log.Trace().Str("function", fn.Key).Str("key", handler.Key).Str("path", path).Msg("Resolved handler entry")
		res.add(fn.Key, handler.Key, path)
	}

	return res, nil
}

// glob expands one entry pattern. Relative patterns are matched under Dir and
// returned relative to it.
func (r *Resolver) glob(pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return nil, doublestar.ErrBadPattern
	}
	matches, err := doublestar.Glob(os.DirFS(r.root()), filepath.ToSlash(filepath.Clean(pattern)), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = filepath.FromSlash(m)
	}
	return matches, nil
}

func (r *Resolver) root() string {
	if r.Dir == "" {
		return "."
	}
	return r.Dir
}

func (r *Resolver) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	abs, err := filepath.Abs(filepath.Join(r.root(), path))
	if err != nil {
		return filepath.Join(r.root(), path)
	}
	return abs
}
