package config

import "github.com/ettle/strcase"

// Suffixes of the logical ids generated for a layer
const (
	layerRefSuffix     = "LambdaLayer"
	qualifiedArnSuffix = "LambdaLayerQualifiedArn"
)

// LayerLogicalName normalizes a layer key into the PascalCase form used in
// every generated logical id. All cross-references go through this function.
func LayerLogicalName(key string) string {
	return strcase.ToPascal(key)
}

// LayerRefName is the unversioned logical reference of a layer, e.g.
// "shared" -> "SharedLambdaLayer".
func LayerRefName(key string) string {
	return LayerLogicalName(key) + layerRefSuffix
}

// LayerOutputName is the output holding a layer's versioned reference, e.g.
// "shared" -> "SharedLambdaLayerQualifiedArn".
func LayerOutputName(key string) string {
	return LayerLogicalName(key) + qualifiedArnSuffix
}
