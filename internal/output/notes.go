package output

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

func foundLabel(found bool) string {
	if found {
		return "found"
	}
	return "not found"
}

func hardLimitLabel(limit *int) string {
	if limit == nil {
		return "-"
	}
	return strconv.Itoa(*limit)
}

func rateLabel(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64) + "/s"
}

func issuedLabel(b core.BucketStatus) string {
	if b.HardLimit == nil {
		return strconv.Itoa(b.Issued)
	}
	return fmt.Sprintf("%d/%d", b.Issued, *b.HardLimit)
}

// yearKeys returns the keys of a per-year listing in ascending order.
func yearKeys(byYear map[string][]core.SnapshotEntry) []string {
	keys := make([]string, 0, len(byYear))
	for k := range byYear {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listTarget(result *core.ListResult) string {
	if result.MatchedURL != "" && result.MatchedURL != result.URL {
		return fmt.Sprintf("%s (matched %s)", result.URL, result.MatchedURL)
	}
	return result.URL
}

func snapshotSummary(result *core.SnapshotResult) []string {
	lines := []string{
		"URL: " + result.URL,
		"Target date: " + result.TargetDate,
		"Status: " + foundLabel(result.Found),
	}
	if result.MatchedURL != "" && result.MatchedURL != result.URL {
		lines = append(lines, "Matched URL: "+result.MatchedURL)
	}
	if result.CaptureDate != "" {
		lines = append(lines, "Captured: "+result.CaptureDate)
	}
	if result.ArchiveURL != "" {
		lines = append(lines, "Archive URL: "+result.ArchiveURL)
	}
	if result.Truncated {
		lines = append(lines, "Content truncated")
	}
	return lines
}
