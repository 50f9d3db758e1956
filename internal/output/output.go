package output

import (
	"fmt"
	"strings"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders tool results for the CLI.
type Formatter interface {
	FormatSnapshot(result *core.SnapshotResult) (string, error)
	FormatList(result *core.ListResult) (string, error)
	FormatSearch(result *core.SearchResult) (string, error)
	FormatStatus(status core.GovernorStatus) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Extension returns the file extension used when writing a format to disk.
func Extension(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}
