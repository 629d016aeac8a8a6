package bundler

import (
	"path/filepath"
	"sort"
	"strings"
)

// analyzeMetafile processes the metafile and returns analysis aggregated over
// every output
func analyzeMetafile(meta *Metafile, name string, dir string) *AnalysisResult {
	result := &AnalysisResult{
		Name: name,
	}

	contrib := map[string]int{}
	externals := map[string]bool{}

	for _, output := range meta.Outputs {
		result.TotalBytes += output.Bytes
		result.Outputs++

		for _, imp := range output.Imports {
			if imp.External {
				externals[imp.Path] = true
			}
		}

		for inputPath, c := range output.Inputs {
			contrib[inputPath] += c.BytesInOutput
		}
	}

	for inputPath, bytesInOutput := range contrib {
		inputInfo, ok := meta.Inputs[inputPath]
		if !ok {
			continue
		}

		percentage := 0.0
		if result.TotalBytes > 0 {
			percentage = float64(bytesInOutput) / float64(result.TotalBytes) * 100
		}

		result.InputFiles = append(result.InputFiles, FileAnalysis{
			Path:          displayPath(inputPath, dir),
			Bytes:         inputInfo.Bytes,
			BytesInOutput: bytesInOutput,
			Percentage:    percentage,
			ImportCount:   len(inputInfo.Imports),
		})
	}

	// Sort by bytes in output (largest first)
	sort.Slice(result.InputFiles, func(i, j int) bool {
		if result.InputFiles[i].BytesInOutput == result.InputFiles[j].BytesInOutput {
			return result.InputFiles[i].Path < result.InputFiles[j].Path
		}
		return result.InputFiles[i].BytesInOutput > result.InputFiles[j].BytesInOutput
	})

	result.ExternalImports = sortedKeys(externals)

	return result
}

// displayPath strips the project directory from metafile input paths
func displayPath(inputPath, dir string) string {
	if dir == "" {
		return inputPath
	}
	if rel, err := filepath.Rel(dir, inputPath); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return inputPath
}
