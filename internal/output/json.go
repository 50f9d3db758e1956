package output

import (
	"encoding/json"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// JSONFormatter renders results exactly as the HTTP transport returns them.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatSnapshot(result *core.SnapshotResult) (string, error) {
	return f.encode(result)
}

func (f *JSONFormatter) FormatList(result *core.ListResult) (string, error) {
	return f.encode(result)
}

func (f *JSONFormatter) FormatSearch(result *core.SearchResult) (string, error) {
	return f.encode(result)
}

func (f *JSONFormatter) FormatStatus(status core.GovernorStatus) (string, error) {
	return f.encode(status)
}

func (f *JSONFormatter) encode(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
