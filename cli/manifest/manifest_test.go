package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrManifestNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{
		"name": "orders",
		"version": "3.1.0",
		"dependencies": {"lodash": "^4.17.21", "shared": "1.0.0"},
		"devDependencies": {"shared": "2.0.0", "jest": "29.7.0"}
	}`), 0600))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "orders", m.Name)
	assert.Equal(t, "3.1.0", m.Version)
	assert.Equal(t, filepath.Join(dir, FileName), m.Path)

	v, ok := m.DependencyVersion("shared")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", v, "production version wins over development")

	v, ok = m.DependencyVersion("jest")
	require.True(t, ok)
	assert.Equal(t, "29.7.0", v)

	_, ok = m.DependencyVersion("left-pad")
	assert.False(t, ok)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{not json`), 0600))

	_, err := Load(dir)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrManifestNotFound)
}

func TestSpecifiers(t *testing.T) {
	m, err := Parse([]byte(`{"dependencies": {"@aws-sdk/client-s3": "^3.400.0", "pg": ""}}`))
	require.NoError(t, err)

	specs := m.Specifiers([]string{"@aws-sdk/client-s3", "pg", "uuid"})
	assert.Equal(t, []string{"@aws-sdk/client-s3@^3.400.0", "pg", "uuid"}, specs)
}

func TestLockFile(t *testing.T) {
	assert.Equal(t, "package-lock.json", LockFile("npm"))
	assert.Equal(t, "yarn.lock", LockFile("yarn"))
	assert.Equal(t, "", LockFile("bower"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		version  string
		expected VersionKind
	}{
		{"", KindNone},
		{"1.2.3", KindExact},
		{"v1.2.3", KindExact},
		{"^1.2.3", KindRange},
		{"~4.17", KindRange},
		{">=1.0.0 <2.0.0", KindRange},
		{"*", KindRange},
		{"latest", KindTag},
		{"next", KindTag},
		{"file:../shared", KindURL},
		{"workspace:*", KindURL},
		{"github:user/repo", KindURL},
		{"user/repo#main", KindURL},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.version))
		})
	}
}

func TestSplitSpecifier(t *testing.T) {
	tests := []struct {
		spec, name, version string
	}{
		{"lodash", "lodash", ""},
		{"lodash@^4.0.0", "lodash", "^4.0.0"},
		{"@scope/pkg", "@scope/pkg", ""},
		{"@scope/pkg@1.2.3", "@scope/pkg", "1.2.3"},
		{"alias@npm:real@1.0.0", "alias", "npm:real@1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			name, version := SplitSpecifier(tt.spec)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.version, version)
		})
	}
}
