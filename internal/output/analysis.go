package output

import (
	"fmt"
	"strings"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

type analysisSection struct {
	Title string
	Lines []string
}

func diagnosticsSections(diag *core.Diagnostics, tried []string) []analysisSection {
	var sections []analysisSection

	if len(tried) > 0 {
		sections = append(sections, analysisSection{Title: "Tried variants", Lines: tried})
	}
	if diag == nil {
		return sections
	}

	lines := []string{
		fmt.Sprintf("reason: %s", diag.Reason),
		fmt.Sprintf("domain %s has captures: %t", diag.Domain, diag.DomainHasCaptures),
	}
	lines = append(lines, diag.Hints...)
	sections = append(sections, analysisSection{Title: "Diagnostics", Lines: lines})

	if len(diag.SampleArchivedPaths) > 0 {
		samples := make([]string, 0, len(diag.SampleArchivedPaths))
		for _, p := range diag.SampleArchivedPaths {
			samples = append(samples, fmt.Sprintf("%s (last captured %s)", p.Path, p.LastCaptured))
		}
		sections = append(sections, analysisSection{Title: "Archived paths on this domain", Lines: samples})
	}
	return sections
}

func searchSections(result *core.SearchResult) []analysisSection {
	if result.Message == "" && len(result.Hints) == 0 {
		return nil
	}
	var lines []string
	if result.Message != "" {
		lines = append(lines, result.Message)
	}
	lines = append(lines, result.Hints...)
	return []analysisSection{{Title: "Notes", Lines: lines}}
}

func renderAnalysisSections(sections []analysisSection, markdown bool) string {
	if len(sections) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, section := range sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		if markdown {
			sb.WriteString(fmt.Sprintf("\n\n### %s\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("- %s\n", line))
			}
		} else {
			sb.WriteString(fmt.Sprintf("\n\n%s:\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("  %s\n", line))
			}
		}
	}
	return sb.String()
}
