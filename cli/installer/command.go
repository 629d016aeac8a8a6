package installer

import (
	"errors"
	"fmt"

	"github.com/mattn/go-shellwords"

	"github.com/fluxbase-eu/layerpack/cli/config"
)

// ErrUnsupportedPackager is returned for a packager other than npm or yarn
var ErrUnsupportedPackager = errors.New("unsupported packager")

// ProductionEnv is set on the install command in production mode
const ProductionEnv = "NODE_ENV=production"

// BuildCommand returns the install command for a layer's nodejs folder. With
// specifiers it adds exactly those packages (npm install / yarn add); with
// fullManifest it installs from the copied manifest.
func BuildCommand(cfg *config.LayerConfig, dir string, specifiers []string, fullManifest bool) (Command, error) {
	var verb string
	switch cfg.Packager {
	case config.PackagerNPM:
		verb = "install"
	case config.PackagerYarn:
		verb = "add"
		if fullManifest {
			verb = "install"
		}
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnsupportedPackager, cfg.Packager)
	}

	args := []string{verb}
	if cfg.PackagerOptions != "" {
		opts, err := shellwords.Parse(cfg.PackagerOptions)
		if err != nil {
			return Command{}, fmt.Errorf("parse packagerOptions: %w", err)
		}
		args = append(args, opts...)
	}
	if !fullManifest {
		args = append(args, specifiers...)
	}

	cmd := Command{Name: cfg.Packager, Args: args, Dir: dir}
	if cfg.ProductionMode {
		cmd.Env = []string{ProductionEnv}
	}
	return cmd, nil
}
