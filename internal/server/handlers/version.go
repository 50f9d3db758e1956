package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
)

// Build identity, set from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
	appName      string
)

func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// SetAppName overrides the executable name in /version.
func SetAppName(name string) {
	appName = name
}

// VersionResponse is the /version body. Tools lists the catalog so callers
// can confirm which tool surface a deployment exposes.
type VersionResponse struct {
	App          AppInfo  `json:"app"`
	Tools        []string `json:"tools"`
	CutoffHeader string   `json:"cutoff_header"`
	Dependencies DepInfo  `json:"dependencies"`
	Platform     string   `json:"platform"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	name := appName
	if name == "" && len(os.Args) > 0 {
		name = filepath.Base(os.Args[0])
	}

	catalog := Catalog()
	tools := make([]string, 0, len(catalog))
	for _, d := range catalog {
		tools = append(tools, d.Name)
	}

	deps := crucible.GetVersion()
	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      name,
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		Tools:        tools,
		CutoffHeader: CutoffHeader,
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
	})
}
