package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/layerpack/cli/config"
	"github.com/fluxbase-eu/layerpack/cli/entries"
)

type fakeCompiler struct {
	stats   Stats
	err     error
	calls   int
	entries map[string]string
}

func (f *fakeCompiler) Compile(_ context.Context, _ *BuildConfig, entries map[string]string) (Stats, error) {
	f.calls++
	f.entries = entries
	return f.stats, f.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestProject(t *testing.T, pkg string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), pkg)
	writeFile(t, filepath.Join(dir, "src", "a", "handler.js"), "module.exports.main = () => {}\n")
	writeFile(t, filepath.Join(dir, "src", "b", "handler.js"), "module.exports.main = () => {}\n")
	return dir
}

func staticBuildConfig() BuildConfigSource {
	return BuildConfigFunc(func(ctx context.Context) (*BuildConfig, error) {
		return DefaultBuildConfig(), nil
	})
}

func sharedFunctions() config.FunctionList {
	ref := []config.LayerReference{{Ref: "SharedLambdaLayer"}}
	return config.FunctionList{
		{Key: "a", Handler: "src/a/handler.main", Layers: ref},
		{Key: "b", Handler: "src/b/handler.main", Layers: ref},
	}
}

func newTestAnalyzer(dir string, bundle config.BundleConfig, compiler Compiler) *Analyzer {
	return &Analyzer{
		Dir:      dir,
		Bundle:   bundle,
		Source:   staticBuildConfig(),
		Compiler: compiler,
		Resolver: entries.NewResolver(dir, bundle.BackupFileType),
	}
}

func chunkStats(ids ...string) *StaticStats {
	modules := make([]Module, 0, len(ids))
	for _, id := range ids {
		modules = append(modules, ModuleID(id))
	}
	return &StaticStats{ChunkList: []Chunk{&StaticChunk{ChunkName: "main", ChunkModules: modules}}}
}

func TestAnalyzer_ExternalModules(t *testing.T) {
	dir := newTestProject(t, `{
		"dependencies": {"lodash": "^4.17.21", "@aws-sdk/client-s3": "3.400.0"},
		"devDependencies": {"lodash": "4.0.0"}
	}`)

	compiler := &fakeCompiler{stats: chunkStats(
		`external "lodash/fp"`,
		`external "@aws-sdk/client-s3/dist/index.js"`,
		`external "fs"`,
		`external "node:path"`,
		"./src/a/handler.js",
	)}

	analyzer := newTestAnalyzer(dir, config.DefaultBundleConfig(), compiler)
	result, err := analyzer.ExternalModules(context.Background(), sharedFunctions(), "SharedLambdaLayer")
	require.NoError(t, err)

	assert.Equal(t, 1, compiler.calls)
	assert.Len(t, compiler.entries, 2)
	assert.Equal(t, []string{"@aws-sdk/client-s3", "lodash"}, result.Discovered)
	assert.Equal(t, []string{"@aws-sdk/client-s3@3.400.0", "lodash@^4.17.21"}, result.Specifiers)
}

func TestAnalyzer_ExternalModules_ForceOverrides(t *testing.T) {
	dir := newTestProject(t, `{"dependencies": {"pg": "8.11.0"}}`)
	compiler := &fakeCompiler{stats: chunkStats(`external "aws-sdk"`, `external "lodash"`)}

	bundle := config.DefaultBundleConfig()
	bundle.ForceInclude = []string{"pg", "lodash"}
	bundle.ForceExclude = []string{"aws-sdk"}

	functions := sharedFunctions()
	functions[0].ForceExclude = []string{"lodash"}
	functions[1].ForceInclude = []string{"uuid"}

	analyzer := newTestAnalyzer(dir, bundle, compiler)
	result, err := analyzer.ExternalModules(context.Background(), functions, "SharedLambdaLayer")
	require.NoError(t, err)

	assert.Equal(t, []string{"pg", "uuid"}, result.Names)
	assert.Equal(t, []string{"pg@8.11.0", "uuid"}, result.Specifiers)
}

func TestAnalyzer_ExternalModules_DiscoveryDisabled(t *testing.T) {
	dir := newTestProject(t, `{"dependencies": {"pg": "8.11.0"}}`)
	compiler := &fakeCompiler{stats: chunkStats(`external "lodash"`)}

	bundle := config.DefaultBundleConfig()
	bundle.DiscoverModules = false
	bundle.ForceInclude = []string{"pg"}

	analyzer := newTestAnalyzer(dir, bundle, compiler)
	result, err := analyzer.ExternalModules(context.Background(), sharedFunctions(), "SharedLambdaLayer")
	require.NoError(t, err)

	assert.Equal(t, 0, compiler.calls)
	assert.Empty(t, result.Discovered)
	assert.Equal(t, []string{"pg@8.11.0"}, result.Specifiers)
}

func TestAnalyzer_ExternalModules_NoEntries(t *testing.T) {
	dir := newTestProject(t, `{}`)
	compiler := &fakeCompiler{stats: chunkStats(`external "lodash"`)}

	analyzer := newTestAnalyzer(dir, config.DefaultBundleConfig(), compiler)
	result, err := analyzer.ExternalModules(context.Background(), sharedFunctions(), "OtherLambdaLayer")
	require.NoError(t, err)

	assert.Equal(t, 0, compiler.calls)
	assert.Empty(t, result.Specifiers)
}

func TestAnalyzer_ExternalModules_Errors(t *testing.T) {
	t.Run("compile failure", func(t *testing.T) {
		dir := newTestProject(t, `{}`)
		compiler := &fakeCompiler{err: errors.New("boom")}
		analyzer := newTestAnalyzer(dir, config.DefaultBundleConfig(), compiler)

		_, err := analyzer.ExternalModules(context.Background(), sharedFunctions(), "SharedLambdaLayer")
		assert.EqualError(t, err, "boom")
	})

	t.Run("missing build config", func(t *testing.T) {
		dir := newTestProject(t, `{}`)
		analyzer := newTestAnalyzer(dir, config.DefaultBundleConfig(), &fakeCompiler{})
		analyzer.Source = FileSource{Path: filepath.Join(dir, "esbuild.config.yaml")}

		_, err := analyzer.ExternalModules(context.Background(), sharedFunctions(), "SharedLambdaLayer")
		assert.ErrorIs(t, err, ErrBuildConfigNotFound)
	})

	t.Run("missing manifest", func(t *testing.T) {
		dir := newTestProject(t, `{}`)
		require.NoError(t, os.Remove(filepath.Join(dir, "package.json")))
		analyzer := newTestAnalyzer(dir, config.DefaultBundleConfig(), &fakeCompiler{stats: chunkStats()})

		_, err := analyzer.ExternalModules(context.Background(), sharedFunctions(), "SharedLambdaLayer")
		assert.Error(t, err)
	})
}

func TestCollectForceModules(t *testing.T) {
	no := false
	bundle := config.DefaultBundleConfig()
	bundle.ForceInclude = []string{"pg"}

	functions := config.FunctionList{
		{Key: "a", Handler: "a.main", Layers: []config.LayerReference{{Ref: "SharedLambdaLayer"}}, ForceInclude: []string{"uuid"}},
		{Key: "b", Handler: "b.main", Layers: []config.LayerReference{{Ref: "OtherLambdaLayer"}}, ForceInclude: []string{"other"}},
		{Key: "c", Handler: "c.main", Layers: []config.LayerReference{{Ref: "SharedLambdaLayer"}}, ShouldLayer: &no, ForceInclude: []string{"optout"}},
		{Key: "d", Image: "repo/img:latest", Layers: []config.LayerReference{{Ref: "SharedLambdaLayer"}}, ForceExclude: []string{"image"}},
		{Key: "e", Handler: "e.main", Layers: []config.LayerReference{{Ref: "SharedLambdaLayer"}}, ForceExclude: []string{"aws-sdk"}},
	}

	force := CollectForceModules(bundle, functions, "SharedLambdaLayer")
	assert.Equal(t, []string{"pg", "uuid", "optout"}, force.Include)
	assert.Equal(t, []string{"aws-sdk"}, force.Exclude)
	assert.Equal(t, []string{"pg"}, bundle.ForceInclude)
}

func TestAnalyzer_EsbuildProject(t *testing.T) {
	dir := newTestProject(t, `{"dependencies": {"lodash": "^4.17.21", "@aws-sdk/client-s3": "3.400.0"}}`)
	writeFile(t, filepath.Join(dir, "src", "a", "handler.js"), `
const path = require("path");
const get = require("lodash/get");
const { S3Client } = require("@aws-sdk/client-s3");
const { helper } = require("../lib/helper");
module.exports.main = () => helper(get, S3Client, path.sep);
`)
	writeFile(t, filepath.Join(dir, "src", "lib", "helper.js"), `
module.exports.helper = (...args) => PACKAGING_LABELS ? args : [];
`)
	writeFile(t, filepath.Join(dir, "esbuild.config.yaml"), "platform: node\ntarget: node18\n")

	cfg := config.Default()
	analyzer := NewAnalyzer(dir, cfg)

	result, err := analyzer.ExternalModules(context.Background(), sharedFunctions(), "SharedLambdaLayer")
	require.NoError(t, err)

	assert.Equal(t, []string{"@aws-sdk/client-s3", "lodash"}, result.Discovered)
	assert.Equal(t, []string{"@aws-sdk/client-s3@3.400.0", "lodash@^4.17.21"}, result.Specifiers)

	analysis, ok := result.Analysis()
	require.True(t, ok)
	assert.Equal(t, "SharedLambdaLayer", analysis.Name)
	assert.Equal(t, 2, analysis.Outputs)
	assert.Positive(t, analysis.TotalBytes)
	assert.Contains(t, analysis.ExternalImports, "lodash/get")
}
