package output

import (
	"fmt"
	"strings"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// MarkdownFormatter renders results as Markdown.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatSnapshot(result *core.SnapshotResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Snapshot of %s\n\n", escapeMarkdownCell(result.URL)))
	for _, line := range snapshotSummary(result) {
		sb.WriteString(fmt.Sprintf("- %s\n", line))
	}

	if !result.Found {
		sb.WriteString(renderAnalysisSections(diagnosticsSections(result.Diagnostics, result.TriedVariants), true))
		return sb.String(), nil
	}
	if strings.TrimSpace(result.Content) != "" {
		sb.WriteString("\n---\n\n")
		sb.WriteString(result.Content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatList(result *core.ListResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Snapshots of %s\n\n", escapeMarkdownCell(listTarget(result))))

	if len(result.SnapshotsByYear) > 0 {
		for _, year := range yearKeys(result.SnapshotsByYear) {
			sb.WriteString(fmt.Sprintf("### %s\n\n", year))
			writeSnapshotRows(&sb, result.SnapshotsByYear[year])
			sb.WriteString("\n")
		}
	} else {
		writeSnapshotRows(&sb, result.Snapshots)
	}

	sb.WriteString(fmt.Sprintf("\n**Total found**: %d\n", result.TotalFound))
	sb.WriteString(renderAnalysisSections(diagnosticsSections(result.Diagnostics, emptyTried(result)), true))
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatSearch(result *core.SearchResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Archived paths on %s\n\n", escapeMarkdownCell(result.Domain)))
	sb.WriteString("| Path | Host | Last captured | Archive URL |\n")
	sb.WriteString("|------|------|---------------|-------------|\n")
	for _, p := range result.Paths {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(p.Path),
			escapeMarkdownCell(p.Host),
			p.LastCaptured,
			escapeMarkdownCell(p.ArchiveURL),
		))
	}
	sb.WriteString(fmt.Sprintf("\n**Total found**: %d\n", result.TotalFound))
	sb.WriteString(renderAnalysisSections(searchSections(result), true))
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatStatus(status core.GovernorStatus) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Bucket | Rate | Max wait | Issued | Last second |\n")
	sb.WriteString("|--------|------|----------|--------|-------------|\n")
	for _, b := range status.Buckets {
		sb.WriteString(fmt.Sprintf("| %s | %s | %gs | %s | %d |\n",
			escapeMarkdownCell(string(b.Bucket)),
			rateLabel(b.MaxRequestsPerSecond),
			b.MaxWaitSeconds,
			issuedLabel(b),
			b.CallsLastSecond,
		))
	}
	return sb.String(), nil
}

func writeSnapshotRows(sb *strings.Builder, rows []core.SnapshotEntry) {
	sb.WriteString("| Captured | Bucket | Archive URL |\n")
	sb.WriteString("|----------|--------|-------------|\n")
	for _, s := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", s.CaptureDate, s.Bucket, escapeMarkdownCell(s.ArchiveURL)))
	}
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
