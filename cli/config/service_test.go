package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleService = `
service: orders
provider:
  name: aws
  runtime: nodejs18.x
layers:
  shared:
    path: layers/shared
    description: shared deps
  tools:
    path: /opt/tools
    retain: true
functions:
  create:
    handler: src/handlers/create.main
    layers:
      - Ref: SharedLambdaLayer
    entry: src/workers/*.ts
    forceInclude: [pg]
  list:
    handler: src/handlers/list.main
    layers:
      - Ref: SharedLambdaLayer
      - arn:aws:lambda:us-east-1:123456789012:layer:insights:14
    entry:
      - src/a.ts
      - 7
    shouldLayer: false
  render:
    image: 123456789012.dkr.ecr.us-east-1.amazonaws.com/render:latest
package:
  exclude:
    - "**/*.md"
  patterns:
    - "!**/test/**"
    - "src/**"
custom:
  layerConfig:
    packager: yarn
    bundle:
      forceExclude: [aws-sdk]
`

func TestParseService(t *testing.T) {
	svc, err := ParseService([]byte(sampleService), "/project")
	require.NoError(t, err)

	assert.Equal(t, "orders", svc.Name)
	assert.Equal(t, "/project", svc.Dir)

	require.Len(t, svc.Layers, 2)
	assert.Equal(t, "shared", svc.Layers[0].Key)
	assert.Equal(t, filepath.Join("/project", "layers/shared"), svc.Layers[0].Path)
	assert.Equal(t, "SharedLambdaLayer", svc.Layers[0].RefName())
	assert.Equal(t, "/opt/tools", svc.Layers[1].Path)
	assert.True(t, svc.Layers[1].Retain)

	require.Len(t, svc.Functions, 3)
	create := svc.Functions[0]
	assert.Equal(t, "create", create.Key)
	assert.Equal(t, EntryPatterns{"src/workers/*.ts"}, create.Entry)
	assert.True(t, create.Layered())
	assert.True(t, create.References("SharedLambdaLayer"))
	assert.False(t, create.References("ToolsLambdaLayer"))

	list := svc.Functions[1]
	assert.Equal(t, EntryPatterns{"src/a.ts"}, list.Entry)
	assert.False(t, list.Layered())
	require.Len(t, list.Layers, 2)
	assert.Equal(t, "arn:aws:lambda:us-east-1:123456789012:layer:insights:14", list.Layers[1].ARN)
	assert.False(t, list.Layers[1].Matches("InsightsLambdaLayer"))

	assert.True(t, svc.Functions[2].IsImage())

	cfg := svc.Custom.LayerConfig
	assert.Equal(t, PackagerYarn, cfg.Packager)
	assert.Equal(t, []string{"aws-sdk"}, cfg.Bundle.ForceExclude)
	assert.True(t, cfg.Bundle.DiscoverModules)

	assert.Equal(t, []string{"**/*.md", "**/test/**"}, svc.Package.CleanPatterns())
}

func TestParseService_Defaults(t *testing.T) {
	svc, err := ParseService([]byte("service: bare\n"), "/p")
	require.NoError(t, err)
	assert.Equal(t, Default(), svc.Custom.LayerConfig)
	assert.Empty(t, svc.Layers)
	assert.Empty(t, svc.Functions)
}

func TestParseService_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad packager", input: "custom:\n  layerConfig:\n    packager: bower\n"},
		{name: "bad layer ref", input: "functions:\n  a:\n    handler: a.main\n    layers: [not-an-arn]\n"},
		{name: "layers not a mapping", input: "layers: [a, b]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseService([]byte(tt.input), "/p")
			assert.Error(t, err)
		})
	}
}

func TestEntryPatterns_Shapes(t *testing.T) {
	svc, err := ParseService([]byte("functions:\n  a:\n    handler: a.main\n    entry: {nested: true}\n"), "/p")
	require.NoError(t, err)
	assert.Empty(t, svc.Functions[0].Entry)
}

func TestFindServiceFile(t *testing.T) {
	dir := t.TempDir()

	_, err := FindServiceFile(dir, "")
	assert.ErrorIs(t, err, ErrServiceNotFound)

	path := filepath.Join(dir, "serverless.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service: x\n"), 0600))

	found, err := FindServiceFile(dir, "")
	require.NoError(t, err)
	assert.Equal(t, path, found)

	found, err = FindServiceFile(dir, "serverless.yaml")
	require.NoError(t, err)
	assert.Equal(t, path, found)

	_, err = FindServiceFile(dir, "missing.yml")
	assert.ErrorIs(t, err, ErrServiceNotFound)

	svc, err := LoadService(path)
	require.NoError(t, err)
	assert.Equal(t, "x", svc.Name)
}
