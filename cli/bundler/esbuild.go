package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// EsbuildCompiler compiles layer entries with esbuild and reads the module
// graph from its metafile. Nothing is written to disk.
type EsbuildCompiler struct {
	// Dir is the project root used as the working directory
	Dir string
	// Define is merged into every build's define map
	Define map[string]string
}

// NewEsbuildCompiler creates a compiler rooted at dir
func NewEsbuildCompiler(dir string, define map[string]string) *EsbuildCompiler {
	return &EsbuildCompiler{Dir: dir, Define: define}
}

// Compile implements Compiler
func (c *EsbuildCompiler) Compile(ctx context.Context, cfg *BuildConfig, entries map[string]string) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultBuildConfig()
	}

	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	outdir := filepath.Join(dir, ".layerpack", "out")

	opts := cfg.buildOptions(dir, outdir, entries, c.Define)
	log.Trace().Int("entries", len(opts.EntryPointsAdvanced)).Str("dir", dir).Msg("Running esbuild")

	result := api.Build(opts)

	if len(result.Errors) > 0 {
		var errMsgs []string
		for _, msg := range result.Errors {
			errMsgs = append(errMsgs, formatMessage(msg))
		}
		return nil, fmt.Errorf("compilation failed: %s", strings.Join(errMsgs, "; "))
	}

	var meta Metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	stats := NewMetafileStats(&meta, dir)
	for _, msg := range result.Warnings {
		stats.WarningList = append(stats.WarningList, formatMessage(msg))
	}
	return stats, nil
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

// MetafileStats exposes an esbuild metafile as a module graph. Every output
// is a chunk; its bundled inputs and its external imports are its modules.
type MetafileStats struct {
	Meta        *Metafile
	Dir         string
	WarningList []string
}

// NewMetafileStats wraps a parsed metafile
func NewMetafileStats(meta *Metafile, dir string) *MetafileStats {
	return &MetafileStats{Meta: meta, Dir: dir}
}

// Chunks implements Stats
func (s *MetafileStats) Chunks() []Chunk {
	names := make([]string, 0, len(s.Meta.Outputs))
	for name := range s.Meta.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	chunks := make([]Chunk, 0, len(names))
	for _, name := range names {
		output := s.Meta.Outputs[name]
		chunk := &StaticChunk{ChunkName: name}

		inputs := make([]string, 0, len(output.Inputs))
		for input := range output.Inputs {
			inputs = append(inputs, input)
		}
		sort.Strings(inputs)
		for _, input := range inputs {
			chunk.ChunkModules = append(chunk.ChunkModules, ModuleID(input))
		}

		for _, imp := range output.Imports {
			if imp.External {
				chunk.ChunkModules = append(chunk.ChunkModules, ExternalModuleID(imp.Path))
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Warnings implements Stats
func (s *MetafileStats) Warnings() []string { return s.WarningList }

// Analyze returns the size breakdown of every output for display
func (s *MetafileStats) Analyze(name string) *AnalysisResult {
	return analyzeMetafile(s.Meta, name, s.Dir)
}

// sortedEntryKeys returns entry keys in a stable order
func sortedEntryKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// outputPath turns an entry key into a relative esbuild output path
func outputPath(dir, key string) string {
	if filepath.IsAbs(key) {
		if rel, err := filepath.Rel(dir, key); err == nil {
			key = rel
		} else {
			key = filepath.Base(key)
		}
	}
	key = filepath.ToSlash(filepath.Clean(key))
	key = strings.ReplaceAll(key, "../", "__/")
	return strings.TrimPrefix(key, "/")
}
