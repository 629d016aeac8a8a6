// Package plugin binds the layer components to the deployment lifecycle.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/layerpack/cli/config"
	"github.com/fluxbase-eu/layerpack/cli/installer"
	"github.com/fluxbase-eu/layerpack/cli/stack"
)

// Lifecycle hooks
const (
	HookPackageInitialize = "package:initialize"
	HookBeforeDeploy      = "before:deploy:deploy"
)

// ErrUnknownHook is returned by Run for a hook the plugin does not handle
var ErrUnknownHook = errors.New("unknown hook")

// Hook is a lifecycle callback
type Hook func(ctx context.Context) error

// TemplateOptions controls where the transform reads and writes the template
type TemplateOptions struct {
	// Path is the template to transform, relative to the service dir
	Path string
	// Out is where the rewritten template goes; empty means Path
	Out string
	// DryRun skips writing
	DryRun bool
}

// Plugin runs the layer install and template transform for one service
type Plugin struct {
	Service   *config.Service
	Installer *installer.Installer
	Template  TemplateOptions
}

// New creates a plugin for svc with the default template location
func New(svc *config.Service) *Plugin {
	log.Debug().Interface("config", svc.Custom.LayerConfig).Msg("Config")
	return &Plugin{
		Service:   svc,
		Installer: installer.New(svc),
		Template:  TemplateOptions{Path: stack.DefaultTemplatePath},
	}
}

// Config returns the layer config of the service
func (p *Plugin) Config() *config.LayerConfig {
	return p.Service.Custom.LayerConfig
}

// Hooks maps lifecycle event names to their handlers
func (p *Plugin) Hooks() map[string]Hook {
	return map[string]Hook{
		HookPackageInitialize: func(ctx context.Context) error {
			_, err := p.InstallLayers(ctx)
			return err
		},
		HookBeforeDeploy: func(ctx context.Context) error {
			_, err := p.TransformLayerResources(ctx)
			return err
		},
	}
}

// HookNames returns the handled hook names, sorted
func (p *Plugin) HookNames() []string {
	hooks := p.Hooks()
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run invokes the named hook
func (p *Plugin) Run(ctx context.Context, name string) error {
	hook, ok := p.Hooks()[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHook, name)
	}
	log.Debug().Str("hook", name).Msg("Running hook")
	return hook(ctx)
}

// InstallLayers installs the dependencies of every declared layer
func (p *Plugin) InstallLayers(ctx context.Context) (*installer.Report, error) {
	return p.Installer.InstallLayers(ctx, p.Service.Layers, p.Service.Functions)
}

// TransformLayerResources rewrites the generated template once and writes it
// back unless DryRun is set.
func (p *Plugin) TransformLayerResources(ctx context.Context) (*stack.TransformedLayerResources, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := p.resolve(p.Template.Path)
	tpl, format, err := stack.LoadTemplate(path)
	if err != nil {
		return nil, err
	}

	result := stack.TransformLayerResources(tpl, p.Service.Layers, p.Config())
	log.Info().
		Int("exported", len(result.ExportedLayers)).
		Int("upgraded", len(result.UpgradedLayerReferences)).
		Int("skipped", len(result.Skipped)).
		Msg("Transformed layer resources")

	if p.Template.DryRun {
		return result, nil
	}

	out := path
	if p.Template.Out != "" {
		out = p.resolve(p.Template.Out)
	}
	if err := tpl.Save(out, stack.FormatFromPath(out)); err != nil {
		return nil, err
	}
	if stack.FormatFromPath(out) != format {
		log.Debug().Str("from", string(format)).Str("to", string(stack.FormatFromPath(out))).Msg("Converted template format")
	}
	log.Debug().Str("path", out).Msg("Template written")
	return result, nil
}

func (p *Plugin) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Service.Dir, path)
}
