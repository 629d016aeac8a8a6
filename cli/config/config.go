// Package config provides configuration management for the layerpack CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Supported packagers
const (
	PackagerNPM  = "npm"
	PackagerYarn = "yarn"
)

// DefaultExportPrefix is prepended to every exported layer output name
const DefaultExportPrefix = "${AWS::StackName}-"

// ErrInvalidConfig is returned when the layer config fails validation
var ErrInvalidConfig = errors.New("invalid layer config")

// validBackupFileTypes lists the extensions accepted for handler disambiguation
var validBackupFileTypes = []string{"js", "ts", "cjs", "mjs", "jsx", "tsx"}

// LayerConfig is the plugin configuration read from custom.layerConfig
type LayerConfig struct {
	// InstallLayers gates the whole install phase
	InstallLayers bool `yaml:"installLayers" json:"installLayers"`

	// ExportLayers attaches an Export clause to each layer's qualified ARN output
	ExportLayers bool `yaml:"exportLayers" json:"exportLayers"`

	// UpgradeLayerReferences repoints functions at the versioned layer resource
	UpgradeLayerReferences bool `yaml:"upgradeLayerReferences" json:"upgradeLayerReferences"`

	// ExportPrefix is a Fn::Sub template prepended to export names
	ExportPrefix string `yaml:"exportPrefix" json:"exportPrefix"`

	// ManageNodeFolder clears and recreates <layer>/nodejs before installing
	ManageNodeFolder bool `yaml:"manageNodeFolder" json:"manageNodeFolder"`

	// Packager is npm or yarn
	Packager string `yaml:"packager" json:"packager"`

	// PackagerOptions are extra shell-style arguments appended to the install command
	PackagerOptions string `yaml:"packagerOptions,omitempty" json:"packagerOptions,omitempty"`

	// ProductionMode runs the packager with NODE_ENV=production
	ProductionMode bool `yaml:"productionMode" json:"productionMode"`

	// PackagingLabels is passed to the compiler as the PACKAGING_LABELS define
	PackagingLabels bool `yaml:"packagingLabels" json:"packagingLabels"`

	// Bundle configures module graph analysis. Disabled means full-manifest installs.
	Bundle BundleSetting `yaml:"bundle" json:"bundle"`
}

// BundleConfig configures the module graph analysis of a layer
type BundleConfig struct {
	Clean           bool     `yaml:"clean" json:"clean"`
	BackupFileType  string   `yaml:"backupFileType" json:"backupFileType"`
	ConfigPath      string   `yaml:"configPath" json:"configPath"`
	DiscoverModules bool     `yaml:"discoverModules" json:"discoverModules"`
	ForceInclude    []string `yaml:"forceInclude" json:"forceInclude"`
	ForceExclude    []string `yaml:"forceExclude" json:"forceExclude"`
}

// BundleSetting is either disabled (`bundle: false`) or a BundleConfig
type BundleSetting struct {
	Enabled bool
	BundleConfig
}

// DefaultBundleConfig returns the documented bundle defaults
func DefaultBundleConfig() BundleConfig {
	return BundleConfig{
		Clean:           true,
		BackupFileType:  "js",
		ConfigPath:      "./esbuild.config.yaml",
		DiscoverModules: true,
		ForceInclude:    []string{},
		ForceExclude:    []string{},
	}
}

// Default returns the layer config with every documented default applied
func Default() *LayerConfig {
	return &LayerConfig{
		InstallLayers:          true,
		ExportLayers:           true,
		UpgradeLayerReferences: true,
		ExportPrefix:           DefaultExportPrefix,
		ManageNodeFolder:       false,
		Packager:               PackagerNPM,
		ProductionMode:         true,
		PackagingLabels:        true,
		Bundle: BundleSetting{
			Enabled:      true,
			BundleConfig: DefaultBundleConfig(),
		},
	}
}

// UnmarshalYAML accepts `false`/`true` or a mapping merged over the defaults
func (b *BundleSetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!bool" {
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return err
		}
		b.Enabled = enabled
		if enabled && b.ConfigPath == "" {
			b.BundleConfig = DefaultBundleConfig()
		}
		return nil
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("bundle: expected a boolean or a mapping (line %d)", node.Line)
	}

	cfg := b.BundleConfig
	if cfg.ConfigPath == "" {
		cfg = DefaultBundleConfig()
	}
	if err := node.Decode(&cfg); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	b.Enabled = true
	b.BundleConfig = cfg
	return nil
}

// MarshalYAML writes `false` for a disabled setting
func (b BundleSetting) MarshalYAML() (interface{}, error) {
	if !b.Enabled {
		return false, nil
	}
	return b.BundleConfig, nil
}

// UnmarshalYAML decodes custom.layerConfig over the defaults. The legacy key
// `webpack` is an alias of `bundle`.
func (c *LayerConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain LayerConfig
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "webpack" && !hasKey(node, "bundle") {
				node.Content[i].Value = "bundle"
			}
		}
	}
	return node.Decode((*plain)(c))
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Validate validates the layer configuration
func (c *LayerConfig) Validate() error {
	if c.Packager != PackagerNPM && c.Packager != PackagerYarn {
		return fmt.Errorf("%w: packager must be '%s' or '%s', got '%s'", ErrInvalidConfig, PackagerNPM, PackagerYarn, c.Packager)
	}

	if c.Bundle.Enabled {
		valid := false
		for _, ext := range validBackupFileTypes {
			if c.Bundle.BackupFileType == ext {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: backupFileType must be one of %v, got '%s'", ErrInvalidConfig, validBackupFileTypes, c.Bundle.BackupFileType)
		}
		if c.Bundle.ConfigPath == "" {
			return fmt.Errorf("%w: bundle configPath cannot be empty", ErrInvalidConfig)
		}
	}

	return nil
}

// BindEnv registers the LAYERPACK_* environment overrides on v
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("LAYERPACK")
	_ = v.BindEnv("packager")           // LAYERPACK_PACKAGER
	_ = v.BindEnv("production_mode")    // LAYERPACK_PRODUCTION_MODE
	_ = v.BindEnv("export_prefix")      // LAYERPACK_EXPORT_PREFIX
	_ = v.BindEnv("manage_node_folder") // LAYERPACK_MANAGE_NODE_FOLDER
	_ = v.BindEnv("install_layers")     // LAYERPACK_INSTALL_LAYERS
	_ = v.BindEnv("packager_options")   // LAYERPACK_PACKAGER_OPTIONS
	_ = v.BindEnv("log_level", "LAYERPACK_LOG_LEVEL", "LOG_LEVEL")
}

// ApplyEnv overrides config values with any environment variables bound on v
func (c *LayerConfig) ApplyEnv(v *viper.Viper) {
	if v.IsSet("packager") {
		c.Packager = v.GetString("packager")
	}
	if v.IsSet("production_mode") {
		c.ProductionMode = v.GetBool("production_mode")
	}
	if v.IsSet("export_prefix") {
		c.ExportPrefix = v.GetString("export_prefix")
	}
	if v.IsSet("manage_node_folder") {
		c.ManageNodeFolder = v.GetBool("manage_node_folder")
	}
	if v.IsSet("install_layers") {
		c.InstallLayers = v.GetBool("install_layers")
	}
	if v.IsSet("packager_options") {
		c.PackagerOptions = v.GetString("packager_options")
	}
}

// LoadEnvFiles loads the first .env file found in dir, for local development
func LoadEnvFiles(dir string) error {
	locations := []string{
		filepath.Join(dir, ".env"),
		filepath.Join(dir, ".env.local"),
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}
