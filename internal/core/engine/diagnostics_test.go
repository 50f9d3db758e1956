package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

func TestDiagnosticsCapsSamplesMostRecentFirst(t *testing.T) {
	archive := newFakeArchive()
	for i := 1; i <= 14; i++ {
		archive.add(fmt.Sprintf("example.com/page-%02d", i), fmt.Sprintf("2022%02d01000000", (i-1)%12+1))
	}
	archive.add("example.com/page-01", "20230101000000")

	diag, err := (&DiagnosticsBuilder{Archive: archive}).Build(context.Background(), core.ToolGetSnapshot, "example.com/contact", cutoffOf(t, "2023-06-01"))
	require.NoError(t, err)
	require.Equal(t, core.ReasonPathNotArchived, diag.Reason)
	require.Len(t, diag.SampleArchivedPaths, maxSamplePaths)
	require.Equal(t, core.ArchivedPath{Path: "/page-01", LastCaptured: "2023-01-01"}, diag.SampleArchivedPaths[0])
	require.Contains(t, diag.Hints[1], "Try one of these archived paths")

	for _, q := range archive.lists {
		require.Empty(t, q.Collapse)
		require.Equal(t, diagnosticsRowBudget, q.Limit)
	}
}

func TestDiagnosticsReportsLatestCapturePerPath(t *testing.T) {
	archive := newFakeArchive()
	archive.add("example.com/page-01", "20220101000000", "20230101000000")
	archive.add("example.com/page-02", "20220601000000")

	diag, err := (&DiagnosticsBuilder{Archive: archive}).Build(context.Background(), core.ToolGetSnapshot, "example.com/contact", cutoffOf(t, "2023-06-01"))
	require.NoError(t, err)
	require.Equal(t, []core.ArchivedPath{
		{Path: "/page-01", LastCaptured: "2023-01-01"},
		{Path: "/page-02", LastCaptured: "2022-06-01"},
	}, diag.SampleArchivedPaths)
}

func TestDropPartialURL(t *testing.T) {
	archive := newFakeArchive()
	archive.add("example.com/a", "20220101000000", "20220201000000")
	archive.add("example.com/b", "20220301000000", "20220401000000")
	rows, err := archive.ListRange(context.Background(), core.ToolGetSnapshot, core.RangeQuery{URL: "example.com/*", Limit: 3})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	kept := dropPartialURL(rows)
	require.Len(t, kept, 2)
	for _, snap := range kept {
		require.Equal(t, "http://example.com/a", snap.Original)
	}

	single := rows[:2]
	require.Len(t, dropPartialURL(single), 2)
}

func TestDiagnosticsPropagatesErrors(t *testing.T) {
	archive := newFakeArchive()
	archive.listErr = core.Unavailable(fmt.Errorf("timeout"))

	_, err := (&DiagnosticsBuilder{Archive: archive}).Build(context.Background(), core.ToolGetSnapshot, "example.com/x", cutoffOf(t, "2023-06-01"))
	require.ErrorIs(t, err, core.ErrUpstreamUnavailable)
}

func TestPathKeywords(t *testing.T) {
	require.Equal(t, []string{"our", "team"}, pathKeywords("/our-team.html"))
	require.Equal(t, []string{"about"}, pathKeywords("/en/about/index.php"))
	require.Empty(t, pathKeywords("/"))
}
