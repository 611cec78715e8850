package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
)

// Build metadata, set once from main.
var (
	AppName      = "hibp-mcp"
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

// SetVersionInfo records the build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion, AppCommit, AppBuildDate = version, commit, buildDate
}

// MCPInfo describes the MCP endpoint advertised to clients.
type MCPInfo struct {
	ServerName string   `json:"server_name"`
	Endpoint   string   `json:"endpoint"`
	Stateless  bool     `json:"stateless"`
	Tools      []string `json:"tools"`
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App struct {
		Name      string `json:"name"`
		Version   string `json:"version"`
		Commit    string `json:"git_commit"`
		BuildDate string `json:"build_date"`
	} `json:"app"`
	MCP          MCPInfo           `json:"mcp"`
	Dependencies map[string]string `json:"dependencies"`
	Runtime      map[string]any    `json:"runtime"`
}

func newVersionResponse(mcp MCPInfo) VersionResponse {
	var resp VersionResponse
	resp.App.Name = AppName
	resp.App.Version = AppVersion
	resp.App.Commit = AppCommit
	resp.App.BuildDate = AppBuildDate
	resp.MCP = mcp

	deps := crucible.GetVersion()
	resp.Dependencies = map[string]string{
		"gofulmen": deps.Gofulmen,
		"crucible": deps.Crucible,
	}
	resp.Runtime = map[string]any{
		"go_version":     runtime.Version(),
		"platform":       runtime.GOOS + "/" + runtime.GOARCH,
		"num_cpu":        runtime.NumCPU(),
		"num_goroutines": runtime.NumGoroutine(),
	}
	return resp
}

// VersionHandler reports build, MCP and runtime details.
func VersionHandler(mcp MCPInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, newVersionResponse(mcp))
	}
}
