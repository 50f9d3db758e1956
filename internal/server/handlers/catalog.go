package handlers

import (
	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// Tool tags.
const (
	TagBacktesting = "backtesting_supported"
)

// ToolDescriptor describes one callable tool. Parameters is a JSON schema
// for the argument object; the cutoff date is never part of it.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	WhenToUse   string         `json:"when_to_use,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// HasTag reports whether the descriptor carries tag.
func (d ToolDescriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func dateParam(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
		"pattern":     `^\d{4}-\d{2}-\d{2}$`,
	}
}

func intParam(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Catalog returns the descriptors for every tool, in a stable order.
func Catalog() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:  core.ToolGetSnapshot,
			Title: "Get Archived Snapshot",
			Description: `Fetch the content of a webpage from the Internet Archive Wayback Machine at or before a specified date.

Finds the closest available snapshot on or before the target date and returns its content as readable text.
Automatically tries www/non-www variants and common extensions (.html, .htm, /).

Tip: if unsure whether a page is archived, call webarchive_list_snapshots first and pick a date from its results.`,
			Tags: []string{TagBacktesting, "output:high", "format:text"},
			WhenToUse: `Use when a question requires verifying historical webpage content.

"Will company X change its leadership by Q2 2025?"
-> webarchive_get_snapshot(url="company.com/team", target_date="2024-12-01")

"Has product pricing changed over the past year?"
-> webarchive_get_snapshot(url="store.com/pricing", target_date="2023-01-15")`,
			Parameters: objectSchema(map[string]any{
				"url":         stringParam("The URL to fetch from the archive (e.g. 'example.com/page' or 'https://example.com/page')"),
				"target_date": dateParam("Return the latest snapshot on or before this date (YYYY-MM-DD)"),
			}, "url", "target_date"),
		},
		{
			Name:  core.ToolListSnapshots,
			Title: "List Available Snapshots",
			Description: `List available snapshots for a URL within a date range from the Internet Archive Wayback Machine.

Workflow:
1. Call webarchive_list_snapshots to see which dates have archived versions
2. Pick a date from the results
3. Call webarchive_get_snapshot with that date as target_date

Supports multi-year queries via years and snapshot selection via pick:
closest_to_end, closest_to_start, closest_to_date, monthly, yearly.`,
			Tags: []string{TagBacktesting, "output:medium", "format:json"},
			WhenToUse: `Use to discover available archive dates before fetching specific snapshots.

"Has a website changed over the past 3 years?"
-> webarchive_list_snapshots(url="example.com", years=[2022, 2023, 2024], pick="yearly")

"Is a website still being maintained?"
-> webarchive_list_snapshots(url="startup.io", limit=10)`,
			Parameters: objectSchema(map[string]any{
				"url":        stringParam("The URL to check for snapshots"),
				"start_date": dateParam("Start of the date range (YYYY-MM-DD, optional)"),
				"end_date":   dateParam("End of the date range (YYYY-MM-DD, optional)"),
				"years": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"description": "Years to query (e.g. [2022, 2023]). Overrides start_date/end_date.",
				},
				"pick": map[string]any{
					"type":        "string",
					"description": "Snapshot selection policy",
					"enum": []string{
						string(core.PickClosestToEnd),
						string(core.PickClosestToStart),
						string(core.PickClosestToDate),
						string(core.PickMonthly),
						string(core.PickYearly),
					},
				},
				"target_date": dateParam("Target date for pick=closest_to_date (YYYY-MM-DD)"),
				"limit":       intParam("Maximum number of snapshots to return (default 20, max 50)"),
			}, "url"),
		},
		{
			Name:  core.ToolSearchSite,
			Title: "Search Site Archives",
			Description: `Search for archived pages on a domain that match a path pattern.

Use when the target URL has no captures, when the exact path is unknown
(a team page could be /team, /about-us or /people), or to see which pages exist on a domain.
Supports wildcard patterns ('*team*', '/blog/*'). Searches both www and non-www hosts.`,
			Tags: []string{TagBacktesting, "output:medium", "format:json"},
			WhenToUse: `Use when a specific URL has no captures or you need to discover pages on a domain.

"Will nonprofit X expand its programs?"
-> webarchive_search_site(domain="nonprofit.org", path_pattern="*program*")`,
			Parameters: objectSchema(map[string]any{
				"domain":       stringParam("Domain to search (e.g. 'example.com' or 'www.example.com')"),
				"path_pattern": stringParam("Path pattern with wildcards (e.g. '*team*', '/blog/*')"),
				"limit":        intParam("Maximum number of unique paths to return (default 30, max 100)"),
			}, "domain"),
		},
	}
}

// LookupTool returns the descriptor for name.
func LookupTool(name string) (ToolDescriptor, bool) {
	for _, d := range Catalog() {
		if d.Name == name {
			return d, true
		}
	}
	return ToolDescriptor{}, false
}
