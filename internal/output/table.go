package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// TableFormatter renders results as ASCII tables.
type TableFormatter struct{}

// FormatSnapshot renders a summary header followed by the page text.
func (f *TableFormatter) FormatSnapshot(result *core.SnapshotResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"URL", result.URL})
	t.AppendRow(table.Row{"Target date", result.TargetDate})
	t.AppendRow(table.Row{"Status", foundLabel(result.Found)})
	if result.MatchedURL != "" && result.MatchedURL != result.URL {
		t.AppendRow(table.Row{"Matched URL", result.MatchedURL})
	}
	if result.CaptureDate != "" {
		t.AppendRow(table.Row{"Captured", result.CaptureDate})
	}
	if result.ArchiveURL != "" {
		t.AppendRow(table.Row{"Archive URL", result.ArchiveURL})
	}
	if result.Truncated {
		t.AppendRow(table.Row{"Truncated", "yes"})
	}

	rendered := t.Render()
	if !result.Found {
		rendered += renderAnalysisSections(diagnosticsSections(result.Diagnostics, result.TriedVariants), false)
		return rendered, nil
	}
	if strings.TrimSpace(result.Content) != "" {
		rendered += "\n\n" + result.Content
	}
	return rendered, nil
}

func (f *TableFormatter) FormatList(result *core.ListResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := newTable()
	t.SetTitle(listTarget(result))
	if len(result.SnapshotsByYear) > 0 {
		t.AppendHeader(table.Row{"Year", "Captured", "Bucket", "Archive URL"})
		for _, year := range yearKeys(result.SnapshotsByYear) {
			for _, s := range result.SnapshotsByYear[year] {
				t.AppendRow(table.Row{year, s.CaptureDate, s.Bucket, s.ArchiveURL})
			}
		}
	} else {
		t.AppendHeader(table.Row{"Captured", "Bucket", "Archive URL"})
		for _, s := range result.Snapshots {
			t.AppendRow(table.Row{s.CaptureDate, s.Bucket, s.ArchiveURL})
		}
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d found", result.TotalFound)})

	rendered := t.Render()
	rendered += renderAnalysisSections(diagnosticsSections(result.Diagnostics, emptyTried(result)), false)
	return rendered, nil
}

func (f *TableFormatter) FormatSearch(result *core.SearchResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := newTable()
	t.SetTitle(strings.Join(result.DomainsSearched, ", "))
	t.AppendHeader(table.Row{"Path", "Host", "Last captured", "Archive URL"})
	for _, p := range result.Paths {
		t.AppendRow(table.Row{p.Path, p.Host, p.LastCaptured, p.ArchiveURL})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d paths", result.TotalFound)})

	return t.Render() + renderAnalysisSections(searchSections(result), false), nil
}

func (f *TableFormatter) FormatStatus(status core.GovernorStatus) (string, error) {
	t := newTable()
	t.AppendHeader(table.Row{"Bucket", "Rate", "Max wait", "Issued", "Last second"})
	for _, b := range status.Buckets {
		t.AppendRow(table.Row{
			string(b.Bucket),
			rateLabel(b.MaxRequestsPerSecond),
			fmt.Sprintf("%gs", b.MaxWaitSeconds),
			issuedLabel(b),
			b.CallsLastSecond,
		})
	}
	return t.Render(), nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// emptyTried only surfaces variants when nothing was found.
func emptyTried(result *core.ListResult) []string {
	if result.TotalFound > 0 {
		return nil
	}
	return result.TriedVariants
}
