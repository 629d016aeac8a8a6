package bundler

import (
	"regexp"
	"sort"
	"strings"
)

// externalPrefix marks a module resolved outside the bundle
const externalPrefix = "external "

var externalRegex = regexp.MustCompile(`^external "(.*)"$`)

// ExternalImportPath returns the import path of an external module identifier
func ExternalImportPath(id string) (string, bool) {
	match := externalRegex.FindStringSubmatch(id)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// PackageName returns the package an import path comes from: the first path
// segment, or the first two for scoped packages.
// "lodash/fp" -> "lodash", "@aws-sdk/client-s3/dist" -> "@aws-sdk/client-s3".
func PackageName(importPath string) (string, bool) {
	if importPath == "" {
		return "", false
	}
	parts := strings.Split(importPath, "/")
	if strings.HasPrefix(parts[0], "@") {
		if len(parts) < 2 || parts[0] == "@" || parts[1] == "" {
			return "", false
		}
		return parts[0] + "/" + parts[1], true
	}
	if parts[0] == "" || parts[0] == "." || parts[0] == ".." {
		return "", false
	}
	return parts[0], true
}

// ExternalModuleName returns the package name of an external module. It
// returns false for bundled modules, runtime built-ins, and identifiers that
// do not follow the external marker convention.
func ExternalModuleName(m Module) (string, bool) {
	id := m.Identifier()
	if !strings.HasPrefix(id, externalPrefix) {
		return "", false
	}
	importPath, ok := ExternalImportPath(id)
	if !ok || IsBuiltin(importPath) {
		return "", false
	}
	return PackageName(importPath)
}

// IsExternal reports whether m is an external, non built-in module
func IsExternal(m Module) bool {
	_, ok := ExternalModuleName(m)
	return ok
}

// ExternalModules returns the deduplicated package names of every external
// module across all chunks, sorted.
func ExternalModules(stats Stats) []string {
	if stats == nil {
		return nil
	}
	seen := map[string]bool{}
	for _, chunk := range stats.Chunks() {
		for _, m := range chunk.Modules() {
			if name, ok := ExternalModuleName(m); ok {
				seen[name] = true
			}
		}
	}
	return sortedKeys(seen)
}

// ApplyOverrides adds every forced include and then removes every forced
// exclude, so an exclude always wins.
func ApplyOverrides(names []string, include, exclude []string) []string {
	set := make(map[string]bool, len(names)+len(include))
	for _, n := range names {
		set[n] = true
	}
	for _, n := range include {
		if n != "" {
			set[n] = true
		}
	}
	for _, n := range exclude {
		delete(set, n)
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
