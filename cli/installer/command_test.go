package installer

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/layerpack/cli/config"
)

func TestBuildCommand(t *testing.T) {
	specs := []string{"pg@8.11.0", "@aws-sdk/client-s3@3.400.0"}

	tests := []struct {
		name         string
		packager     string
		production   bool
		options      string
		fullManifest bool
		want         string
	}{
		{"npm production", "npm", true, "", false, "NODE_ENV=production npm install pg@8.11.0 @aws-sdk/client-s3@3.400.0"},
		{"yarn production", "yarn", true, "", false, "NODE_ENV=production yarn add pg@8.11.0 @aws-sdk/client-s3@3.400.0"},
		{"npm development", "npm", false, "", false, "npm install pg@8.11.0 @aws-sdk/client-s3@3.400.0"},
		{"npm options", "npm", false, `--no-audit --registry "https://registry.example.com"`, false, "npm install --no-audit --registry https://registry.example.com pg@8.11.0 @aws-sdk/client-s3@3.400.0"},
		{"npm full manifest", "npm", true, "", true, "NODE_ENV=production npm install"},
		{"yarn full manifest", "yarn", false, "--frozen-lockfile", true, "yarn install --frozen-lockfile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Packager = tt.packager
			cfg.ProductionMode = tt.production
			cfg.PackagerOptions = tt.options

			cmd, err := BuildCommand(cfg, "/layer/nodejs", specs, tt.fullManifest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.String())
			assert.Equal(t, "/layer/nodejs", cmd.Dir)
		})
	}
}

func TestBuildCommand_UnsupportedPackager(t *testing.T) {
	cfg := config.Default()
	cfg.Packager = "pnpm"

	_, err := BuildCommand(cfg, "/layer/nodejs", nil, false)
	assert.ErrorIs(t, err, ErrUnsupportedPackager)
}

func TestFilterEnvVars(t *testing.T) {
	env := []string{"HOME=/root", "NODE_ENV=development", "NODE_ENV_EXTRA=1"}
	assert.Equal(t, []string{"HOME=/root", "NODE_ENV_EXTRA=1"}, filterEnvVars(env, "NODE_ENV"))
}

func TestExecRunner(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()

	var stdout bytes.Buffer
	runner := &ExecRunner{Stdout: &stdout, Stderr: &stdout}

	t.Setenv("NODE_ENV", "development")
	err = runner.Run(context.Background(), Command{
		Name: sh,
		Args: []string{"-c", "echo $NODE_ENV; pwd"},
		Env:  []string{ProductionEnv},
		Dir:  dir,
	})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "production\n")
	assert.Contains(t, stdout.String(), resolved)

	err = runner.Run(context.Background(), Command{Name: sh, Args: []string{"-c", "exit 3"}, Dir: dir})
	assert.ErrorIs(t, err, ErrInstallFailed)
	assert.ErrorContains(t, err, "exited with code 3")

	err = runner.Run(context.Background(), Command{Name: filepath.Join(dir, "missing-packager"), Dir: dir})
	assert.ErrorIs(t, err, ErrInstallFailed)
}
