package stack

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/layerpack/cli/config"
)

// FunctionResourceType is the resource type whose layer references are upgraded
const FunctionResourceType = "AWS::Lambda::Function"

// Skip reasons
const (
	ReasonNoConfig    = "layer config unavailable"
	ReasonNoOutput    = "no qualified ARN output"
	ReasonNoVersioned = "output has no versioned reference"
)

// ExportedLayer records an export clause attached to a layer output
type ExportedLayer struct {
	Layer      string `json:"layer"`
	OutputName string `json:"outputName"`
	ExportName string `json:"exportName"`
}

// UpgradedLayerReference records one function layer reference repointed at
// a versioned layer
type UpgradedLayerReference struct {
	Layer    string `json:"layer"`
	Resource string `json:"resource"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// SkippedLayer records a layer the transformer left untouched
type SkippedLayer struct {
	Layer  string `json:"layer"`
	Reason string `json:"reason"`
}

// TransformedLayerResources is the record of one transform pass
type TransformedLayerResources struct {
	ExportedLayers          []ExportedLayer          `json:"exportedLayers"`
	UpgradedLayerReferences []UpgradedLayerReference `json:"upgradedLayerReferences"`
	Skipped                 []SkippedLayer           `json:"skipped,omitempty"`
}

// TransformLayerResources exports each layer's qualified ARN output and
// repoints function layer references from the unversioned layer to its
// versioned resource. The template is mutated in place; run it once per
// template, before the template is submitted.
func TransformLayerResources(tpl Template, layers config.LayerList, cfg *config.LayerConfig) *TransformedLayerResources {
	result := &TransformedLayerResources{
		ExportedLayers:          []ExportedLayer{},
		UpgradedLayerReferences: []UpgradedLayerReference{},
	}

	if cfg == nil {
		log.Warn().Msg("Unable to transform layer resources, layer config unavailable")
		for _, layer := range layers {
			result.Skipped = append(result.Skipped, SkippedLayer{Layer: layer.Key, Reason: ReasonNoConfig})
		}
		return result
	}

	outputs := tpl.Outputs()
	for _, layer := range layers {
		outputName := config.LayerOutputName(layer.Key)
		output, ok := outputs[outputName].(map[string]interface{})
		if !ok {
			log.Debug().Str("layer", layer.Key).Str("output", outputName).Msg("No qualified ARN output, skipping layer")
			result.Skipped = append(result.Skipped, SkippedLayer{Layer: layer.Key, Reason: ReasonNoOutput})
			continue
		}

		if cfg.ExportLayers {
			exportName := cfg.ExportPrefix + outputName
			output["Export"] = map[string]interface{}{
				"Name": map[string]interface{}{
					"Fn::Sub": exportName,
				},
			}
			result.ExportedLayers = append(result.ExportedLayers, ExportedLayer{
				Layer:      layer.Key,
				OutputName: outputName,
				ExportName: exportName,
			})
		}

		if cfg.UpgradeLayerReferences {
			versioned := refOf(output["Value"])
			if versioned == "" {
				log.Warn().Str("layer", layer.Key).Str("output", outputName).Msg("Output has no versioned reference")
				result.Skipped = append(result.Skipped, SkippedLayer{Layer: layer.Key, Reason: ReasonNoVersioned})
				continue
			}
			upgraded := upgradeReferences(tpl.Resources(), layer.Key, config.LayerRefName(layer.Key), versioned)
			result.UpgradedLayerReferences = append(result.UpgradedLayerReferences, upgraded...)
		}
	}

	return result
}

// upgradeReferences rewrites every {Ref: refName} in function layer lists to
// {Ref: versioned}, visiting resources in logical id order.
func upgradeReferences(resources map[string]interface{}, layer, refName, versioned string) []UpgradedLayerReference {
	if refName == versioned {
		return nil
	}
	log.Info().Str("from", refName).Str("to", versioned).Msg("Replacing layer references")

	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var upgraded []UpgradedLayerReference
	for _, id := range ids {
		resource, ok := resources[id].(map[string]interface{})
		if !ok || resource["Type"] != FunctionResourceType {
			continue
		}
		props, _ := resource["Properties"].(map[string]interface{})
		refs, _ := props["Layers"].([]interface{})
		for _, item := range refs {
			ref, ok := item.(map[string]interface{})
			if !ok || ref["Ref"] != refName {
				continue
			}
			ref["Ref"] = versioned
			log.Debug().Str("resource", id).Str("to", versioned).Msg("Updated reference to layer version")
			upgraded = append(upgraded, UpgradedLayerReference{
				Layer:    layer,
				Resource: id,
				From:     refName,
				To:       versioned,
			})
		}
	}
	return upgraded
}

func refOf(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	ref, _ := m["Ref"].(string)
	return ref
}
