package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/layerpack/cli/config"
)

const testService = `
service: demo
provider:
  name: aws
layers:
  shared:
    path: layers/shared
  media:
    path: layers/media
functions:
  hello:
    handler: src/hello.main
    layers:
      - Ref: SharedLambdaLayer
`

func withProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "serverless.yml"), []byte(testService), 0644))

	oldDir, oldService, oldSvc := workDir, serviceFile, svc
	workDir, serviceFile = dir, ""
	t.Cleanup(func() {
		workDir, serviceFile, svc = oldDir, oldService, oldSvc
	})
	return dir
}

func TestLoadService(t *testing.T) {
	dir := withProject(t)

	require.NoError(t, loadService(installCmd, nil))
	assert.Equal(t, "demo", svc.Name)
	assert.Equal(t, dir, svc.Dir)
	assert.Equal(t, config.PackagerNPM, svc.Custom.LayerConfig.Packager)
	assert.NotNil(t, GetFormatter())
}

func TestLoadService_EnvOverrides(t *testing.T) {
	withProject(t)
	t.Setenv("LAYERPACK_PACKAGER", "yarn")
	t.Setenv("LAYERPACK_PRODUCTION_MODE", "false")

	require.NoError(t, loadService(installCmd, nil))
	assert.Equal(t, config.PackagerYarn, svc.Custom.LayerConfig.Packager)
	assert.False(t, svc.Custom.LayerConfig.ProductionMode)
}

func TestLoadService_DotEnv(t *testing.T) {
	dir := withProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LAYERPACK_EXPORT_PREFIX=prod-\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("LAYERPACK_EXPORT_PREFIX") })

	require.NoError(t, loadService(installCmd, nil))
	assert.Equal(t, "prod-", svc.Custom.LayerConfig.ExportPrefix)
}

func TestLoadService_InvalidPackager(t *testing.T) {
	withProject(t)
	t.Setenv("LAYERPACK_PACKAGER", "pnpm")

	err := loadService(installCmd, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadService_Missing(t *testing.T) {
	withProject(t)
	serviceFile = "missing.yml"

	err := loadService(installCmd, nil)
	assert.ErrorIs(t, err, config.ErrServiceNotFound)
}

func TestSelectLayers(t *testing.T) {
	withProject(t)
	require.NoError(t, loadService(installCmd, nil))

	all, err := selectLayers(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := selectLayers([]string{"media"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "MediaLambdaLayer", one[0].RefName())

	_, err = selectLayers([]string{"unknown"})
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { viper.Set("log_level", nil) })

	viper.Set("log_level", "verbose")
	assert.NoError(t, setupLogging())

	viper.Set("log_level", "loud")
	assert.Error(t, setupLogging())
}
