package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrServiceNotFound is returned when the service declaration file is missing
var ErrServiceNotFound = errors.New("service file not found")

// DefaultServiceFiles are tried in order when no service file is given
var DefaultServiceFiles = []string{"serverless.yml", "serverless.yaml", "serverless.json"}

// Service is the deployment declaration: layers, functions, and packaging rules
type Service struct {
	Name      string        `yaml:"service"`
	Provider  Provider      `yaml:"provider"`
	Layers    LayerList     `yaml:"layers"`
	Functions FunctionList  `yaml:"functions"`
	Package   PackageConfig `yaml:"package"`
	Custom    Custom        `yaml:"custom"`

	// Dir is the directory the service file was loaded from
	Dir string `yaml:"-"`
}

// Provider carries the provider settings the CLI cares about
type Provider struct {
	Name    string `yaml:"name"`
	Runtime string `yaml:"runtime"`
	Stage   string `yaml:"stage,omitempty"`
	Region  string `yaml:"region,omitempty"`
}

// Custom holds the custom section; only layerConfig is interpreted
type Custom struct {
	LayerConfig *LayerConfig `yaml:"layerConfig"`
}

// PackageConfig holds the service-level packaging patterns
type PackageConfig struct {
	Exclude  []string `yaml:"exclude,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// CleanPatterns returns the patterns whose matches are removed from an
// installed layer: every exclude plus every negated pattern.
func (p PackageConfig) CleanPatterns() []string {
	patterns := make([]string, 0, len(p.Exclude)+len(p.Patterns))
	patterns = append(patterns, p.Exclude...)
	for _, pattern := range p.Patterns {
		if strings.HasPrefix(pattern, "!") && len(pattern) > 1 {
			patterns = append(patterns, pattern[1:])
		}
	}
	return patterns
}

// Layer is a declared layer
type Layer struct {
	// Key is the logical layer name from the layers mapping
	Key         string `yaml:"-"`
	Path        string `yaml:"path"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Retain      bool   `yaml:"retain,omitempty"`
}

// RefName is the unversioned logical reference for this layer
func (l *Layer) RefName() string {
	return LayerRefName(l.Key)
}

// LayerList is the layers mapping in declaration order
type LayerList []*Layer

// UnmarshalYAML decodes a mapping of layer name to layer, preserving order
func (l *LayerList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("layers: expected a mapping (line %d)", node.Line)
	}
	layers := make(LayerList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		layer := &Layer{}
		if err := node.Content[i+1].Decode(layer); err != nil {
			return fmt.Errorf("layer %s: %w", node.Content[i].Value, err)
		}
		layer.Key = node.Content[i].Value
		layers = append(layers, layer)
	}
	*l = layers
	return nil
}

// Get returns the layer with the given key
func (l LayerList) Get(key string) (*Layer, bool) {
	for _, layer := range l {
		if layer.Key == key {
			return layer, true
		}
	}
	return nil, false
}

// Function is a declared function
type Function struct {
	// Key is the logical function name from the functions mapping
	Key          string           `yaml:"-"`
	Handler      string           `yaml:"handler,omitempty"`
	Image        interface{}      `yaml:"image,omitempty"`
	Layers       []LayerReference `yaml:"layers,omitempty"`
	Entry        EntryPatterns    `yaml:"entry,omitempty"`
	ShouldLayer  *bool            `yaml:"shouldLayer,omitempty"`
	ForceInclude []string         `yaml:"forceInclude,omitempty"`
	ForceExclude []string         `yaml:"forceExclude,omitempty"`
}

// IsImage reports whether the function is image-based (no handler)
func (f *Function) IsImage() bool {
	return f.Handler == ""
}

// Layered reports whether the function takes part in layer bundling
func (f *Function) Layered() bool {
	return f.ShouldLayer == nil || *f.ShouldLayer
}

// References reports whether the function consumes the layer with the given
// logical reference name.
func (f *Function) References(refName string) bool {
	for _, ref := range f.Layers {
		if ref.Matches(refName) {
			return true
		}
	}
	return false
}

// FunctionList is the functions mapping in declaration order
type FunctionList []*Function

// UnmarshalYAML decodes a mapping of function name to function, preserving order
func (f *FunctionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("functions: expected a mapping (line %d)", node.Line)
	}
	functions := make(FunctionList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		fn := &Function{}
		if err := node.Content[i+1].Decode(fn); err != nil {
			return fmt.Errorf("function %s: %w", node.Content[i].Value, err)
		}
		fn.Key = node.Content[i].Value
		functions = append(functions, fn)
	}
	*f = functions
	return nil
}

// LayerReference points a function at a layer, either by logical name
// (`{Ref: SharedLambdaLayer}`) or by a literal layer version ARN.
type LayerReference struct {
	Ref string `yaml:"Ref,omitempty" json:"Ref,omitempty"`
	ARN string `yaml:"-" json:"-"`
}

// Matches compares the reference by logical name. ARN references never match
// a locally declared layer.
func (r LayerReference) Matches(refName string) bool {
	return r.ARN == "" && r.Ref != "" && r.Ref == refName
}

// UnmarshalYAML accepts a {Ref: name} mapping or an ARN string
func (r *LayerReference) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if !arn.IsARN(node.Value) {
			return fmt.Errorf("layer reference %q is neither a {Ref} nor an ARN (line %d)", node.Value, node.Line)
		}
		parsed, err := arn.Parse(node.Value)
		if err != nil {
			return fmt.Errorf("layer reference %q: %w", node.Value, err)
		}
		if parsed.Service != "lambda" {
			log.Warn().Str("arn", node.Value).Str("service", parsed.Service).Msg("Layer ARN does not point at a lambda resource")
		}
		r.ARN = node.Value
		return nil
	}
	type plain LayerReference
	return node.Decode((*plain)(r))
}

// MarshalYAML writes ARN references back as plain strings
func (r LayerReference) MarshalYAML() (interface{}, error) {
	if r.ARN != "" {
		return r.ARN, nil
	}
	return map[string]string{"Ref": r.Ref}, nil
}

// EntryPatterns are extra entry globs; a single string or a list of strings.
// Any other shape decodes to no patterns.
type EntryPatterns []string

// UnmarshalYAML accepts a string or a list of strings
func (e *EntryPatterns) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag != "!!str" {
			*e = nil
			return nil
		}
		*e = EntryPatterns{node.Value}
	case yaml.SequenceNode:
		patterns := make(EntryPatterns, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode && item.Tag == "!!str" {
				patterns = append(patterns, item.Value)
			}
		}
		*e = patterns
	default:
		*e = nil
	}
	return nil
}

// FindServiceFile returns the service file path, trying the defaults in dir
// when explicit is empty.
func FindServiceFile(dir, explicit string) (string, error) {
	if explicit != "" {
		if !filepath.IsAbs(explicit) {
			explicit = filepath.Join(dir, explicit)
		}
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrServiceNotFound, explicit)
		}
		return explicit, nil
	}
	for _, name := range DefaultServiceFiles {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w in %s (tried %s)", ErrServiceNotFound, dir, strings.Join(DefaultServiceFiles, ", "))
}

// LoadService reads a service declaration. The layer config defaults are
// applied before custom.layerConfig is decoded over them.
func LoadService(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, path)
		}
		return nil, fmt.Errorf("failed to read service file: %w", err)
	}
	return ParseService(data, filepath.Dir(path))
}

// ParseService decodes a service declaration from YAML or JSON
func ParseService(data []byte, dir string) (*Service, error) {
	svc := &Service{
		Custom: Custom{LayerConfig: Default()},
	}
	if err := yaml.Unmarshal(data, svc); err != nil {
		return nil, fmt.Errorf("failed to parse service file: %w", err)
	}
	if svc.Custom.LayerConfig == nil {
		svc.Custom.LayerConfig = Default()
	}
	if err := svc.Custom.LayerConfig.Validate(); err != nil {
		return nil, err
	}

	svc.Dir = dir
	for _, layer := range svc.Layers {
		if layer.Path != "" && !filepath.IsAbs(layer.Path) {
			layer.Path = filepath.Join(dir, layer.Path)
		}
	}

	return svc, nil
}
