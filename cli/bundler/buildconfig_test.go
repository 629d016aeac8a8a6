package bundler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "esbuild.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target: node18
format: esm
external: ["sharp"]
loader:
  .sql: text
`), 0644))

	cfg, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "node", cfg.Platform)
	assert.Equal(t, "esm", cfg.Format)
	assert.Equal(t, "external", cfg.Packages)
	assert.Equal(t, StringList{"node18"}, cfg.Target)
	assert.Equal(t, []string{"sharp"}, cfg.External)
	assert.Equal(t, map[string]string{".sql": "text"}, cfg.Loader)
}

func TestFileSource_Load_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "esbuild.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"target": ["es2020", "node20"], "packages": "bundle"}`), 0644))

	cfg, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StringList{"es2020", "node20"}, cfg.Target)
	assert.Equal(t, "bundle", cfg.Packages)
}

func TestFileSource_Load_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := FileSource{Path: filepath.Join(dir, "missing.yaml")}.Load(context.Background())
	assert.ErrorIs(t, err, ErrBuildConfigNotFound)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("platform: deno\n"), 0644))
	_, err = FileSource{Path: bad}.Load(context.Background())
	assert.ErrorContains(t, err, "unknown platform")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Path: bad}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *BuildConfig)
		wantErr string
	}{
		{"defaults", func(c *BuildConfig) {}, ""},
		{"bad format", func(c *BuildConfig) { c.Format = "umd" }, "unknown format"},
		{"bad packages", func(c *BuildConfig) { c.Packages = "none" }, "unknown packages mode"},
		{"bad target", func(c *BuildConfig) { c.Target = StringList{"ie11"} }, "unknown target"},
		{"loader without dot", func(c *BuildConfig) { c.Loader = map[string]string{"sql": "text"} }, "must start with a dot"},
		{"unknown loader", func(c *BuildConfig) { c.Loader = map[string]string{".sql": "sql"} }, "unknown loader"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBuildConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuildConfig_buildOptions(t *testing.T) {
	cfg := DefaultBuildConfig()
	cfg.Target = StringList{"es2020", "node18"}
	cfg.Define = map[string]string{"DEBUG": "false", "PACKAGING_LABELS": "false"}
	cfg.Loader = map[string]string{".sql": "text"}

	entries := map[string]string{
		"src/b/handler": "/proj/src/b/handler.js",
		"src/a/handler": "/proj/src/a/handler.ts",
	}
	opts := cfg.buildOptions("/proj", "/proj/.layerpack/out", entries, map[string]string{"PACKAGING_LABELS": "true"})

	assert.True(t, opts.Bundle)
	assert.False(t, opts.Write)
	assert.True(t, opts.Metafile)
	assert.Equal(t, api.PlatformNode, opts.Platform)
	assert.Equal(t, api.FormatCommonJS, opts.Format)
	assert.Equal(t, api.PackagesExternal, opts.Packages)
	assert.Equal(t, api.ES2020, opts.Target)
	assert.Equal(t, []api.Engine{{Name: api.EngineNode, Version: "18"}}, opts.Engines)
	assert.Equal(t, api.LoaderText, opts.Loader[".sql"])
	assert.Equal(t, map[string]string{"DEBUG": "false", "PACKAGING_LABELS": "true"}, opts.Define)
	assert.Equal(t, []api.EntryPoint{
		{InputPath: "/proj/src/a/handler.ts", OutputPath: "src/a/handler"},
		{InputPath: "/proj/src/b/handler.js", OutputPath: "src/b/handler"},
	}, opts.EntryPointsAdvanced)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "src/handler", outputPath("/proj", "src/handler"))
	assert.Equal(t, "src/handler", outputPath("/proj", "/proj/src/handler"))
	assert.Equal(t, "__/shared/x.js", outputPath("/proj", "../shared/x.js"))
}
