// Package stack rewrites the generated CloudFormation template so functions
// consume versioned layers and layer versions are exported.
package stack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTemplatePath is where the framework writes the update template
const DefaultTemplatePath = ".serverless/cloudformation-template-update-stack.json"

// ErrTemplateNotFound is returned when the template file does not exist
var ErrTemplateNotFound = errors.New("template not found")

// Format is the serialization of a template file
type Format string

// Template formats
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format by file extension, defaulting to JSON
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Template is a CloudFormation template as a mutable document tree
type Template map[string]interface{}

// LoadTemplate reads a JSON or YAML template
func LoadTemplate(path string) (Template, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, "", fmt.Errorf("failed to read template: %w", err)
	}

	format := FormatFromPath(path)
	tpl, err := ParseTemplate(data, format)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return tpl, format, nil
}

// ParseTemplate decodes a template document
func ParseTemplate(data []byte, format Format) (Template, error) {
	tpl := Template{}
	switch format {
	case FormatYAML:
		return parseYAMLTemplate(data)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&tpl); err != nil {
			return nil, err
		}
	}
	return tpl, nil
}

// ErrUnsupportedTag is returned for YAML tags that are not CloudFormation
// intrinsic functions
var ErrUnsupportedTag = errors.New("unsupported YAML tag")

// intrinsics maps short-form tags to their long-form keys
var intrinsics = map[string]string{
	"!Ref":         "Ref",
	"!Condition":   "Condition",
	"!And":         "Fn::And",
	"!Base64":      "Fn::Base64",
	"!Cidr":        "Fn::Cidr",
	"!Equals":      "Fn::Equals",
	"!FindInMap":   "Fn::FindInMap",
	"!GetAZs":      "Fn::GetAZs",
	"!GetAtt":      "Fn::GetAtt",
	"!If":          "Fn::If",
	"!ImportValue": "Fn::ImportValue",
	"!Join":        "Fn::Join",
	"!Not":         "Fn::Not",
	"!Or":          "Fn::Or",
	"!Select":      "Fn::Select",
	"!Split":       "Fn::Split",
	"!Sub":         "Fn::Sub",
	"!Transform":   "Fn::Transform",
}

func parseYAMLTemplate(data []byte) (Template, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return Template{}, nil
	}

	v, err := yamlValue(&doc)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("template root must be a mapping, got line %d", doc.Line)
	}
	return Template(m), nil
}

// yamlValue converts a node into plain maps, slices and scalars, expanding
// short-form intrinsic functions into their long form.
func yamlValue(n *yaml.Node) (interface{}, error) {
	if strings.HasPrefix(n.Tag, "!") && !strings.HasPrefix(n.Tag, "!!") {
		key, ok := intrinsics[n.Tag]
		if !ok {
			return nil, fmt.Errorf("%w %s at line %d", ErrUnsupportedTag, n.Tag, n.Line)
		}
		plain := *n
		plain.Tag = ""
		if plain.Kind == yaml.ScalarNode {
			plain.Tag = "!!str"
		}
		v, err := yamlValue(&plain)
		if err != nil {
			return nil, err
		}
		if s, isString := v.(string); isString && n.Tag == "!GetAtt" {
			if i := strings.Index(s, "."); i > 0 {
				v = []interface{}{s[:i], s[i+1:]}
			}
		}
		return map[string]interface{}{key: v}, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]interface{}, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Marshal encodes the template in the given format
func (t Template) Marshal(format Format) ([]byte, error) {
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]interface{}(t)); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(map[string]interface{}(t), "", "  ")
}

// Save writes the template to path in the given format
func (t Template) Save(path string, format Format) error {
	data, err := t.Marshal(format)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

// section returns the named top-level mapping, or nil
func (t Template) section(name string) map[string]interface{} {
	m, _ := t[name].(map[string]interface{})
	return m
}

// Outputs returns the Outputs section, or nil
func (t Template) Outputs() map[string]interface{} { return t.section("Outputs") }

// Resources returns the Resources section, or nil
func (t Template) Resources() map[string]interface{} { return t.section("Resources") }
