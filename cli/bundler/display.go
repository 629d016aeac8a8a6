package bundler

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// breakdownLimit is how many input files are listed without --details
const breakdownLimit = 10

// Package sources reported by Result.Source
const (
	SourceDiscovered = "discovered"
	SourceForced     = "forced"
)

// Source reports whether name was found in the compiled graph or added by a
// force-include list.
func (r *Result) Source(name string) string {
	for _, d := range r.Discovered {
		if d == name {
			return SourceDiscovered
		}
	}
	return SourceForced
}

// importsByPackage groups the external import paths of the analysis under
// their package name, leaving out bare package imports.
func importsByPackage(analysis *AnalysisResult) map[string][]string {
	grouped := map[string][]string{}
	if analysis == nil {
		return grouped
	}
	for _, imp := range analysis.ExternalImports {
		name, ok := PackageName(imp)
		if !ok || name == imp {
			continue
		}
		grouped[name] = append(grouped[name], imp)
	}
	return grouped
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// DisplayLayer prints the packages a layer installs and, when the layer was
// compiled, the size breakdown of its bundle.
func DisplayLayer(w io.Writer, result *Result, showDetails bool) {
	_, _ = fmt.Fprintf(w, "\n=== Layer %s ===\n", result.Layer)

	analysis, analyzed := result.Analysis()
	if len(result.Specifiers) == 0 {
		_, _ = fmt.Fprintln(w, "No external packages, install will be skipped")
	} else {
		imports := importsByPackage(analysis)
		table := newTable(w, "PACKAGE", "SPECIFIER", "IMPORTED AS", "SOURCE")
		for i, name := range result.Names {
			spec := name
			if i < len(result.Specifiers) {
				spec = result.Specifiers[i]
			}
			table.Append([]string{name, spec, strings.Join(imports[name], ", "), result.Source(name)})
		}
		table.Render()
	}

	if !analyzed {
		return
	}

	_, _ = fmt.Fprintf(w, "\nBundle size: %s across %d output(s)\n", formatBytesHuman(analysis.TotalBytes), analysis.Outputs)
	if len(analysis.InputFiles) > 0 {
		files := analysis.InputFiles
		if !showDetails && len(files) > breakdownLimit {
			files = files[:breakdownLimit]
		}
		table := newTable(w, "FILE", "IN BUNDLE", "SHARE")
		for _, file := range files {
			table.Append([]string{
				truncatePath(file.Path, 50),
				formatBytesHuman(file.BytesInOutput),
				fmt.Sprintf("%.1f%%", file.Percentage),
			})
		}
		table.Render()
		if hidden := len(analysis.InputFiles) - len(files); hidden > 0 {
			_, _ = fmt.Fprintf(w, "... and %d more files (use --details)\n", hidden)
		}
	}

	for _, warn := range analysis.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

// DisplaySummary prints one row per layer, largest bundle first. Layers that
// were not compiled sort last and show no size.
func DisplaySummary(w io.Writer, results []*Result) {
	if len(results) == 0 {
		return
	}

	type row struct {
		result   *Result
		analysis *AnalysisResult
	}
	rows := make([]row, 0, len(results))
	for _, r := range results {
		a, _ := r.Analysis()
		rows = append(rows, row{result: r, analysis: a})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return bundleBytes(rows[i].analysis) > bundleBytes(rows[j].analysis)
	})

	_, _ = fmt.Fprintln(w, "\n=== Summary ===")
	table := newTable(w, "LAYER", "BUNDLE SIZE", "FILES", "PACKAGES")
	var total, packages int
	for _, r := range rows {
		size, files := "-", "-"
		if r.analysis != nil {
			size = formatBytesHuman(r.analysis.TotalBytes)
			files = fmt.Sprint(len(r.analysis.InputFiles))
			total += r.analysis.TotalBytes
		}
		packages += len(r.result.Specifiers)
		table.Append([]string{r.result.Layer, size, files, fmt.Sprint(len(r.result.Specifiers))})
	}
	table.Append([]string{"TOTAL", formatBytesHuman(total), "", fmt.Sprint(packages)})
	table.Render()
}

func bundleBytes(a *AnalysisResult) int {
	if a == nil {
		return -1
	}
	return a.TotalBytes
}

func formatBytesHuman(bytes int) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// truncatePath keeps the tail of long paths
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}
