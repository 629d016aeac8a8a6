// Package manifest reads the project's package.json and turns package names
// into install specifiers.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// FileName is the manifest file read from the project root
const FileName = "package.json"

// ErrManifestNotFound is returned when package.json does not exist
var ErrManifestNotFound = errors.New("package manifest not found")

// Manifest is the subset of package.json used to pin versions
type Manifest struct {
	Name            string            `json:"name,omitempty"`
	Version         string            `json:"version,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`

	// Path is where the manifest was read from
	Path string `json:"-"`
}

// Load reads package.json from dir
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse decodes a package.json document
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	if m.DevDependencies == nil {
		m.DevDependencies = map[string]string{}
	}
	return &m, nil
}

// DependencyVersion returns the declared version of name. Production
// dependencies win over development dependencies.
func (m *Manifest) DependencyVersion(name string) (string, bool) {
	if v, ok := m.Dependencies[name]; ok && v != "" {
		return v, true
	}
	if v, ok := m.DevDependencies[name]; ok && v != "" {
		return v, true
	}
	return "", false
}

// Specifier returns `name@version` when name is declared, else the bare name
func (m *Manifest) Specifier(name string) string {
	if v, ok := m.DependencyVersion(name); ok {
		return name + "@" + v
	}
	return name
}

// Specifiers maps every name to its install specifier, preserving order
func (m *Manifest) Specifiers(names []string) []string {
	specs := make([]string, 0, len(names))
	for _, name := range names {
		specs = append(specs, m.Specifier(name))
	}
	return specs
}

// LockFile returns the lockfile name written by the given packager
func LockFile(packager string) string {
	switch packager {
	case "npm":
		return "package-lock.json"
	case "yarn":
		return "yarn.lock"
	default:
		return ""
	}
}

// VersionKind classifies a declared version string
type VersionKind string

const (
	KindNone  VersionKind = "none"
	KindExact VersionKind = "exact"
	KindRange VersionKind = "range"
	KindTag   VersionKind = "tag"
	KindURL   VersionKind = "url"
)

// urlPrefixes mark versions that point outside the registry
var urlPrefixes = []string{
	"file:", "link:", "workspace:", "git+", "git:", "github:", "http:", "https:", "npm:", "portal:",
}

// Classify reports what kind of version a specifier pins
func Classify(version string) VersionKind {
	version = strings.TrimSpace(version)
	if version == "" {
		return KindNone
	}
	for _, prefix := range urlPrefixes {
		if strings.HasPrefix(version, prefix) {
			return KindURL
		}
	}
	if strings.Contains(version, "/") {
		return KindURL
	}
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v")); err == nil {
		return KindExact
	}
	if _, err := semver.NewConstraint(version); err == nil {
		return KindRange
	}
	return KindTag
}

// SplitSpecifier splits `name@version` into its parts. Scoped names keep
// their leading @.
func SplitSpecifier(spec string) (name, version string) {
	if len(spec) < 2 {
		return spec, ""
	}
	idx := strings.Index(spec[1:], "@")
	if idx < 0 {
		return spec, ""
	}
	idx++
	return spec[:idx], spec[idx+1:]
}
