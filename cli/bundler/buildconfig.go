package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"gopkg.in/yaml.v3"
)

// ErrBuildConfigNotFound is returned when the build configuration file is missing
var ErrBuildConfigNotFound = errors.New("build configuration not found")

// BuildConfig is the subset of esbuild options a layer build can set
type BuildConfig struct {
	Platform          string            `yaml:"platform,omitempty" json:"platform,omitempty"`
	Target            StringList        `yaml:"target,omitempty" json:"target,omitempty"`
	Format            string            `yaml:"format,omitempty" json:"format,omitempty"`
	Packages          string            `yaml:"packages,omitempty" json:"packages,omitempty"`
	External          []string          `yaml:"external,omitempty" json:"external,omitempty"`
	MainFields        []string          `yaml:"mainFields,omitempty" json:"mainFields,omitempty"`
	Conditions        []string          `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	ResolveExtensions []string          `yaml:"resolveExtensions,omitempty" json:"resolveExtensions,omitempty"`
	NodePaths         []string          `yaml:"nodePaths,omitempty" json:"nodePaths,omitempty"`
	Tsconfig          string            `yaml:"tsconfig,omitempty" json:"tsconfig,omitempty"`
	Define            map[string]string `yaml:"define,omitempty" json:"define,omitempty"`
	Alias             map[string]string `yaml:"alias,omitempty" json:"alias,omitempty"`
	Loader            map[string]string `yaml:"loader,omitempty" json:"loader,omitempty"`
}

// StringList decodes from a single string or a list of strings
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = StringList{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

// DefaultBuildConfig returns the options used for keys a config file leaves unset
func DefaultBuildConfig() *BuildConfig {
	return &BuildConfig{
		Platform: "node",
		Format:   "cjs",
		Packages: "external",
	}
}

// BuildConfigSource produces the build configuration for a layer
type BuildConfigSource interface {
	Load(ctx context.Context) (*BuildConfig, error)
}

// BuildConfigFunc adapts a function to a BuildConfigSource
type BuildConfigFunc func(ctx context.Context) (*BuildConfig, error)

// Load implements BuildConfigSource
func (f BuildConfigFunc) Load(ctx context.Context) (*BuildConfig, error) {
	return f(ctx)
}

// FileSource reads a YAML or JSON build configuration from disk
type FileSource struct {
	Path string
}

// Load implements BuildConfigSource
func (s FileSource) Load(ctx context.Context) (*BuildConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBuildConfigNotFound, s.Path)
		}
		return nil, fmt.Errorf("failed to read build configuration: %w", err)
	}

	cfg := DefaultBuildConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse build configuration %s: %w", s.Path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid build configuration %s: %w", s.Path, err)
	}
	return cfg, nil
}

var platforms = map[string]api.Platform{
	"node":    api.PlatformNode,
	"neutral": api.PlatformNeutral,
	"browser": api.PlatformBrowser,
}

var formats = map[string]api.Format{
	"cjs":  api.FormatCommonJS,
	"esm":  api.FormatESModule,
	"iife": api.FormatIIFE,
}

var packageModes = map[string]api.Packages{
	"external": api.PackagesExternal,
	"bundle":   api.PackagesBundle,
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var loaders = map[string]api.Loader{
	"js":      api.LoaderJS,
	"jsx":     api.LoaderJSX,
	"ts":      api.LoaderTS,
	"tsx":     api.LoaderTSX,
	"json":    api.LoaderJSON,
	"text":    api.LoaderText,
	"base64":  api.LoaderBase64,
	"dataurl": api.LoaderDataURL,
	"binary":  api.LoaderBinary,
	"file":    api.LoaderFile,
	"copy":    api.LoaderCopy,
	"empty":   api.LoaderEmpty,
	"css":     api.LoaderCSS,
}

// Validate checks every enumerated option against what esbuild accepts
func (c *BuildConfig) Validate() error {
	if _, ok := platforms[c.Platform]; !ok {
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	if _, ok := formats[c.Format]; !ok {
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if _, ok := packageModes[c.Packages]; !ok {
		return fmt.Errorf("unknown packages mode %q (expected external or bundle)", c.Packages)
	}
	for _, t := range c.Target {
		if _, _, err := parseTarget(t); err != nil {
			return err
		}
	}
	for ext, loader := range c.Loader {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("loader key %q must start with a dot", ext)
		}
		if _, ok := loaders[loader]; !ok {
			return fmt.Errorf("unknown loader %q for %s", loader, ext)
		}
	}
	return nil
}

// parseTarget accepts an ES version ("es2020") or an engine with a version ("node18")
func parseTarget(t string) (*api.Target, *api.Engine, error) {
	t = strings.ToLower(strings.TrimSpace(t))
	if target, ok := targets[t]; ok {
		return &target, nil, nil
	}
	engines := map[string]api.EngineName{
		"node":    api.EngineNode,
		"chrome":  api.EngineChrome,
		"firefox": api.EngineFirefox,
		"safari":  api.EngineSafari,
		"edge":    api.EngineEdge,
		"deno":    api.EngineDeno,
	}
	for prefix, name := range engines {
		if strings.HasPrefix(t, prefix) && len(t) > len(prefix) {
			return nil, &api.Engine{Name: name, Version: t[len(prefix):]}, nil
		}
	}
	return nil, nil, fmt.Errorf("unknown target %q", t)
}

// buildOptions converts the config into esbuild options for the given entries
func (c *BuildConfig) buildOptions(dir, outdir string, entries map[string]string, define map[string]string) api.BuildOptions {
	opts := api.BuildOptions{
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		AbsWorkingDir:     dir,
		Outdir:            outdir,
		Platform:          platforms[c.Platform],
		Format:            formats[c.Format],
		Packages:          packageModes[c.Packages],
		External:          c.External,
		MainFields:        c.MainFields,
		Conditions:        c.Conditions,
		ResolveExtensions: c.ResolveExtensions,
		NodePaths:         c.NodePaths,
		Tsconfig:          c.Tsconfig,
		Alias:             c.Alias,
		Define:            map[string]string{},
	}

	for _, t := range c.Target {
		target, engine, err := parseTarget(t)
		if err != nil {
			continue
		}
		if target != nil {
			opts.Target = *target
		}
		if engine != nil {
			opts.Engines = append(opts.Engines, *engine)
		}
	}

	if len(c.Loader) > 0 {
		opts.Loader = make(map[string]api.Loader, len(c.Loader))
		for ext, loader := range c.Loader {
			opts.Loader[ext] = loaders[loader]
		}
	}

	for k, v := range c.Define {
		opts.Define[k] = v
	}
	for k, v := range define {
		opts.Define[k] = v
	}

	for _, key := range sortedEntryKeys(entries) {
		opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, api.EntryPoint{
			InputPath:  entries[key],
			OutputPath: outputPath(dir, key),
		})
	}

	return opts
}
