package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)

	require.Equal(t, "md", Extension(FormatMarkdown))
}

func foundSnapshot() *core.SnapshotResult {
	return &core.SnapshotResult{
		Found:       true,
		URL:         "example.com/about",
		MatchedURL:  "www.example.com/about",
		TargetDate:  "2024-01-01",
		CaptureDate: "2023-12-30",
		ArchiveURL:  "https://web.archive.org/web/20231230101010/http://www.example.com/about",
		Content:     "About us",
	}
}

func missingSnapshot() *core.SnapshotResult {
	return &core.SnapshotResult{
		URL:           "example.com/team",
		TargetDate:    "2024-01-01",
		TriedVariants: []string{"example.com/team", "www.example.com/team"},
		Diagnostics: &core.Diagnostics{
			Domain:            "example.com",
			Path:              "/team",
			Reason:            core.ReasonPathNotArchived,
			DomainHasCaptures: true,
			Hints:             []string{"Try /team-members"},
			SampleArchivedPaths: []core.ArchivedPath{
				{Path: "/team-members", LastCaptured: "2023-06-01"},
			},
		},
	}
}

func TestFormatSnapshot(t *testing.T) {
	tableRendered, err := NewFormatter(FormatTable).FormatSnapshot(foundSnapshot())
	require.NoError(t, err)
	require.Contains(t, tableRendered, "FIELD")
	require.Contains(t, tableRendered, "www.example.com/about")
	require.Contains(t, tableRendered, "About us")

	jsonRendered, err := NewFormatter(FormatJSON).FormatSnapshot(foundSnapshot())
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"capture_date\": \"2023-12-30\"")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatSnapshot(foundSnapshot())
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "- Captured: 2023-12-30")
	require.Contains(t, markdownRendered, "---\n\nAbout us")
}

func TestFormatSnapshotDiagnostics(t *testing.T) {
	tableRendered, err := NewFormatter(FormatTable).FormatSnapshot(missingSnapshot())
	require.NoError(t, err)
	require.Contains(t, tableRendered, "Tried variants:")
	require.Contains(t, tableRendered, "reason: path_not_archived")
	require.Contains(t, tableRendered, "/team-members (last captured 2023-06-01)")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatSnapshot(missingSnapshot())
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "### Diagnostics")
	require.Contains(t, markdownRendered, "- Try /team-members")
}

func TestFormatListByYear(t *testing.T) {
	result := &core.ListResult{
		URL:          "example.com",
		YearsQueried: []int{2022, 2021},
		TotalFound:   2,
		SnapshotsByYear: map[string][]core.SnapshotEntry{
			"2022": {{CaptureDate: "2022-12-31", Bucket: "2022", ArchiveURL: "a2022"}},
			"2021": {{CaptureDate: "2021-06-01", Bucket: "2021", ArchiveURL: "a2021"}},
		},
		TriedVariants: []string{"example.com"},
	}

	rendered, err := NewFormatter(FormatMarkdown).FormatList(result)
	require.NoError(t, err)
	require.Less(t, strings.Index(rendered, "### 2021"), strings.Index(rendered, "### 2022"))
	require.Contains(t, rendered, "**Total found**: 2")
	require.NotContains(t, rendered, "Tried variants")

	tableRendered, err := NewFormatter(FormatTable).FormatList(result)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "a2021")
	require.Contains(t, tableRendered, "2 found")
}

func TestFormatSearchAndStatus(t *testing.T) {
	search := &core.SearchResult{
		Domain:          "example.com",
		DomainsSearched: []string{"example.com", "www.example.com"},
		TotalFound:      1,
		Paths: []core.SiteArchivePath{
			{Path: "/a|b", Host: "example.com", LastCaptured: "2023-01-01", ArchiveURL: "x"},
		},
		Hints: []string{"Narrow the pattern"},
	}

	rendered, err := NewFormatter(FormatMarkdown).FormatSearch(search)
	require.NoError(t, err)
	require.Contains(t, rendered, "/a\\|b")
	require.Contains(t, rendered, "### Notes")

	limit := 5
	status := core.GovernorStatus{Buckets: []core.BucketStatus{
		{Bucket: core.GlobalBucket, MaxRequestsPerSecond: 10, MaxWaitSeconds: 30, Issued: 4},
		{Bucket: core.ToolBucket(core.ToolSearchSite), MaxRequestsPerSecond: 0.5, HardLimit: &limit, Issued: 2},
	}}

	tableRendered, err := NewFormatter(FormatTable).FormatStatus(status)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "0.5/s")
	require.Contains(t, tableRendered, "2/5")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatStatus(status)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "| global | 10/s | 30s | 4 | 0 |")
}
