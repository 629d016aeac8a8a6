// Package installer materializes the nodejs folder of every declared layer.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fluxbase-eu/layerpack/cli/bundler"
	"github.com/fluxbase-eu/layerpack/cli/config"
	"github.com/fluxbase-eu/layerpack/cli/manifest"
)

// NodeFolder is the runtime folder inside a layer that the packager installs into
const NodeFolder = "nodejs"

// State is a step of a layer's install
type State string

// Layer install states
const (
	StateSkip         State = "skip"
	StateManagedReset State = "managed-reset"
	StatePopulate     State = "populate"
	StateInstalled    State = "installed"
	StateCleaned      State = "cleaned"
)

// Skip reasons
const (
	ReasonDisabled     = "installLayers is disabled"
	ReasonNoNodeFolder = "no nodejs folder and manageNodeFolder is off"
)

// ModuleAnalyzer computes the install specifiers of a layer
type ModuleAnalyzer interface {
	ExternalModules(ctx context.Context, functions config.FunctionList, layerRefName string) (*bundler.Result, error)
}

// LayerResult records what happened to one layer
type LayerResult struct {
	Layer      string          `json:"layer"`
	RefName    string          `json:"refName"`
	Path       string          `json:"path"`
	States     []State         `json:"states"`
	Reason     string          `json:"reason,omitempty"`
	Specifiers []string        `json:"specifiers,omitempty"`
	Command    *Command        `json:"command,omitempty"`
	Removed    []string        `json:"removed,omitempty"`
	Analysis   *bundler.Result `json:"-"`
}

// State returns the last state the layer reached
func (r *LayerResult) State() State {
	if len(r.States) == 0 {
		return StateSkip
	}
	return r.States[len(r.States)-1]
}

func (r *LayerResult) enter(s State) {
	r.States = append(r.States, s)
}

// Report aggregates every layer of one install run
type Report struct {
	Installed []*LayerResult `json:"installed"`
	Skipped   []*LayerResult `json:"skipped"`
}

// Installer runs the install state machine for each layer
type Installer struct {
	// Dir is the project root holding package.json and its lockfile
	Dir      string
	Config   *config.LayerConfig
	Package  config.PackageConfig
	Analyzer ModuleAnalyzer
	Runner   Runner
}

// New creates an installer for the service using esbuild analysis and real
// child processes.
func New(svc *config.Service) *Installer {
	cfg := svc.Custom.LayerConfig
	return &Installer{
		Dir:      svc.Dir,
		Config:   cfg,
		Package:  svc.Package,
		Analyzer: bundler.NewAnalyzer(svc.Dir, cfg),
		Runner:   &ExecRunner{},
	}
}

// InstallLayers installs every layer in declaration order, then cleans the
// installed ones concurrently. Any install or clean failure aborts the run.
func (i *Installer) InstallLayers(ctx context.Context, layers config.LayerList, functions config.FunctionList) (*Report, error) {
	report := &Report{Installed: []*LayerResult{}, Skipped: []*LayerResult{}}

	if !i.Config.InstallLayers {
		log.Debug().Msg("Skipping installation of layers as per config")
		for _, layer := range layers {
			report.Skipped = append(report.Skipped, &LayerResult{
				Layer:   layer.Key,
				RefName: layer.RefName(),
				Path:    nodeFolder(layer),
				States:  []State{StateSkip},
				Reason:  ReasonDisabled,
			})
		}
		return report, nil
	}

	for _, layer := range layers {
		result, err := i.InstallLayer(ctx, layer, functions)
		if err != nil {
			return report, fmt.Errorf("layer %s: %w", layer.Key, err)
		}
		if result.State() == StateSkip {
			report.Skipped = append(report.Skipped, result)
			continue
		}
		report.Installed = append(report.Installed, result)
	}

	var g errgroup.Group
	for _, result := range report.Installed {
		result := result
		g.Go(func() error {
			return i.clean(result)
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	log.Info().Int("installed", len(report.Installed)).Int("skipped", len(report.Skipped)).Msg("Installed layers")
	return report, nil
}

// InstallLayer runs one layer up to the Installed state. Cleaning is left to
// InstallLayers.
func (i *Installer) InstallLayer(ctx context.Context, layer *config.Layer, functions config.FunctionList) (*LayerResult, error) {
	nodeDir := nodeFolder(layer)
	result := &LayerResult{
		Layer:   layer.Key,
		RefName: layer.RefName(),
		Path:    nodeDir,
	}
	logger := log.With().Str("layer", layer.Key).Str("path", nodeDir).Logger()

	if !i.Config.ManageNodeFolder {
		if _, err := os.Stat(nodeDir); errors.Is(err, os.ErrNotExist) {
			logger.Debug().Msg("No nodejs folder, skipping layer")
			result.enter(StateSkip)
			result.Reason = ReasonNoNodeFolder
			return result, nil
		}
	} else {
		result.enter(StateManagedReset)
		if err := os.RemoveAll(nodeDir); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", nodeDir, err)
		}
		if err := os.MkdirAll(nodeDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", nodeDir, err)
		}
	}

	result.enter(StatePopulate)
	fullManifest := !i.Config.Bundle.Enabled
	if fullManifest {
		if err := i.copyManifest(nodeDir); err != nil {
			return nil, err
		}
	} else {
		if i.Config.ManageNodeFolder {
			if err := os.WriteFile(filepath.Join(nodeDir, manifest.FileName), []byte("{}"), 0644); err != nil {
				return nil, fmt.Errorf("failed to write empty manifest: %w", err)
			}
		}

		analysis, err := i.Analyzer.ExternalModules(ctx, functions, result.RefName)
		if err != nil {
			return nil, err
		}
		result.Analysis = analysis
		result.Specifiers = analysis.Specifiers

		if len(result.Specifiers) == 0 {
			logger.Info().Msg("No external modules, skipping install command")
			result.enter(StateInstalled)
			return result, nil
		}
	}

	cmd, err := BuildCommand(i.Config, nodeDir, result.Specifiers, fullManifest)
	if err != nil {
		return nil, err
	}
	result.Command = &cmd

	logger.Info().Str("packager", i.Config.Packager).Str("command", cmd.String()).Msg("Running command")
	if err := i.Runner.Run(ctx, cmd); err != nil {
		return nil, err
	}

	result.enter(StateInstalled)
	return result, nil
}

// copyManifest copies package.json and the packager's lockfile into nodeDir.
// A missing lockfile is logged and tolerated.
func (i *Installer) copyManifest(nodeDir string) error {
	src := filepath.Join(i.Dir, manifest.FileName)
	if err := copyFile(src, filepath.Join(nodeDir, manifest.FileName)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", manifest.ErrManifestNotFound, src)
		}
		return err
	}

	lock := manifest.LockFile(i.Config.Packager)
	if lock == "" {
		return nil
	}
	if err := copyFile(filepath.Join(i.Dir, lock), filepath.Join(nodeDir, lock)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("lockfile", lock).Msg("Lockfile not found, installing without it")
			return nil
		}
		return err
	}
	return nil
}

// clean only runs in bundle mode; a full-manifest install keeps what the
// packager wrote.
func (i *Installer) clean(result *LayerResult) error {
	if !i.Config.Bundle.Enabled || !i.Config.Bundle.Clean {
		return nil
	}
	patterns := i.Package.CleanPatterns()
	log.Debug().Str("layer", result.Layer).Strs("patterns", patterns).Msg("Cleaning layer")

	removed, err := Clean(result.Path, patterns)
	if err != nil {
		return fmt.Errorf("clean layer %s: %w", result.Layer, err)
	}
	result.Removed = removed
	result.enter(StateCleaned)
	return nil
}

func nodeFolder(layer *config.Layer) string {
	return filepath.Join(layer.Path, NodeFolder)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
