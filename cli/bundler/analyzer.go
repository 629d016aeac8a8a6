package bundler

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/layerpack/cli/config"
	"github.com/fluxbase-eu/layerpack/cli/entries"
	"github.com/fluxbase-eu/layerpack/cli/manifest"
)

// PackagingLabelsDefine is the build-time constant carrying the packagingLabels setting
const PackagingLabelsDefine = "PACKAGING_LABELS"

// Analyzer decides which external packages a layer's bundle needs installed
type Analyzer struct {
	// Dir is the project root holding package.json and the sources
	Dir string
	// Bundle is the bundle section of the layer config
	Bundle config.BundleConfig
	// Source loads the build configuration
	Source BuildConfigSource
	// Compiler compiles the resolved entries into a module graph
	Compiler Compiler
	// Resolver finds the entries of a layer
	Resolver *entries.Resolver
}

// NewAnalyzer creates an analyzer with the file build config source and the
// esbuild compiler.
func NewAnalyzer(dir string, cfg *config.LayerConfig) *Analyzer {
	bundle := cfg.Bundle.BundleConfig
	define := map[string]string{
		PackagingLabelsDefine: strconv.FormatBool(cfg.PackagingLabels),
	}

	configPath := bundle.ConfigPath
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(dir, configPath)
	}

	return &Analyzer{
		Dir:      dir,
		Bundle:   bundle,
		Source:   FileSource{Path: configPath},
		Compiler: NewEsbuildCompiler(dir, define),
		Resolver: entries.NewResolver(dir, bundle.BackupFileType),
	}
}

// ForceModules are the manual overrides collected for one layer
type ForceModules struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// CollectForceModules concatenates the config-level overrides with those of
// every handler function that references the layer. shouldLayer only governs
// entry selection, so opted-out functions still contribute their overrides.
func CollectForceModules(bundle config.BundleConfig, functions config.FunctionList, layerRefName string) ForceModules {
	force := ForceModules{
		Include: append([]string{}, bundle.ForceInclude...),
		Exclude: append([]string{}, bundle.ForceExclude...),
	}
	for _, fn := range functions {
		if fn.IsImage() || !fn.References(layerRefName) {
			continue
		}
		force.Include = append(force.Include, fn.ForceInclude...)
		force.Exclude = append(force.Exclude, fn.ForceExclude...)
	}
	return force
}

// Result is the outcome of analyzing one layer
type Result struct {
	Layer      string              `json:"layer"`
	Discovered []string            `json:"discovered"`
	Force      ForceModules        `json:"force"`
	Names      []string            `json:"names"`
	Specifiers []string            `json:"specifiers"`
	Entries    *entries.Resolution `json:"entries"`
	Stats      Stats               `json:"-"`
}

// Analysis returns the bundle size breakdown when the compiler produced a
// metafile
func (r *Result) Analysis() (*AnalysisResult, bool) {
	ms, ok := r.Stats.(*MetafileStats)
	if !ok {
		return nil, false
	}
	analysis := ms.Analyze(r.Layer)
	analysis.Warnings = ms.Warnings()
	return analysis, true
}

// ExternalModules computes the install specifiers for the layer referenced as
// layerRefName. Build configuration, compile, and manifest failures are
// logged and returned.
func (a *Analyzer) ExternalModules(ctx context.Context, functions config.FunctionList, layerRefName string) (*Result, error) {
	result, err := a.externalModules(ctx, functions, layerRefName)
	if err != nil {
		log.Error().Err(err).Str("layer", layerRefName).Msg("Failed to compute external modules")
		return nil, err
	}
	return result, nil
}

func (a *Analyzer) externalModules(ctx context.Context, functions config.FunctionList, layerRefName string) (*Result, error) {
	buildConfig, err := a.Source.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Layer: layerRefName,
		Force: CollectForceModules(a.Bundle, functions, layerRefName),
	}

	result.Entries, err = a.Resolver.Resolve(ctx, functions, layerRefName)
	if err != nil {
		return nil, err
	}

	pkg, err := manifest.Load(a.Dir)
	if err != nil {
		return nil, err
	}

	if a.Bundle.DiscoverModules {
		if len(result.Entries.Entries) == 0 {
			log.Debug().Str("layer", layerRefName).Msg("No entries resolved, skipping compilation")
		} else {
			stats, err := a.Compiler.Compile(ctx, buildConfig, result.Entries.Entries)
			if err != nil {
				return nil, err
			}
			for _, warning := range stats.Warnings() {
				log.Debug().Str("layer", layerRefName).Msg(warning)
			}
			result.Stats = stats
			result.Discovered = ExternalModules(stats)
		}
	}

	result.Names = ApplyOverrides(result.Discovered, result.Force.Include, result.Force.Exclude)
	result.Specifiers = pkg.Specifiers(result.Names)

	log.Debug().
		Str("layer", layerRefName).
		Int("entries", len(result.Entries.Entries)).
		Strs("discovered", result.Discovered).
		Strs("specifiers", result.Specifiers).
		Msg("Computed external modules")

	return result, nil
}
