package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used for one-shot CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used while serving MCP (STRUCTURED profile). It always
	// writes to stderr so the stdio transport keeps stdout to itself.
	ServerLogger *logging.Logger

	fallbackOnce sync.Once
)

// InitCLILogger initializes the CLI logger with SIMPLE profile
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
}

// InitServerLogger initializes the server logger with STRUCTURED profile.
// staticFields are attached to every record (transport, plan, ...).
func InitServerLogger(serviceName string, logLevel string, staticFields map[string]any) {
	logger, err := logging.New(serverLoggerConfig(serviceName, logLevel, staticFields))
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}

	ServerLogger = logger
}

// Logger returns the most specific initialized logger, creating a CLI logger
// on first use when neither has been set up.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	if CLILogger == nil {
		fallbackOnce.Do(func() {
			if CLILogger == nil {
				InitCLILogger("hibp-mcp", false)
			}
		})
	}
	return CLILogger
}

// Sync flushes any buffered log entries.
func Sync() {
	if ServerLogger != nil {
		_ = ServerLogger.Sync()
	}
	if CLILogger != nil {
		_ = CLILogger.Sync()
	}
}

func serverLoggerConfig(serviceName, logLevel string, staticFields map[string]any) *logging.LoggerConfig {
	fields := make(map[string]any, len(staticFields))
	for key, value := range staticFields {
		fields[key] = value
	}

	// stdout belongs to the stdio transport
	stderrJSON := logging.SinkConfig{
		Type:    "console",
		Format:  "json",
		Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
	}
	correlation := logging.MiddlewareConfig{
		Name:    "correlation",
		Enabled: true,
		Order:   100,
		Config:  map[string]any{},
	}

	return &logging.LoggerConfig{
		Profile:          logging.ProfileStructured,
		DefaultLevel:     parseLogLevel(logLevel),
		Service:          serviceName,
		Environment:      "production",
		StaticFields:     fields,
		Middleware:       []logging.MiddlewareConfig{correlation},
		Sinks:            []logging.SinkConfig{stderrJSON},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

var logLevels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// parseLogLevel maps a config log level onto a gofulmen severity; unknown
// values log at INFO.
func parseLogLevel(level string) string {
	if severity, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return severity
	}
	return "INFO"
}

// exitWithCodeStderr is used when a logger cannot be built, so it writes
// straight to stderr.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	line := "FATAL: " + msg
	if err != nil {
		line += ": " + err.Error()
	}
	fmt.Fprintln(os.Stderr, line)

	code := int(exitCode)
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		code = info.Code
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	}
	os.Exit(code)
}
