package main

import (
	"github.com/hibp-mcp/hibp-mcp/internal/cmd"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/server/handlers"
)

// Populated with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	err := cmd.Execute()
	observability.Sync()
	if err != nil {
		cmd.ExitWithCodeStderr(cmd.ExitCodeFor(err), "hibp-mcp failed", err)
	}
}
