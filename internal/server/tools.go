package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/core/hibp"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	servermw "github.com/hibp-mcp/hibp-mcp/internal/server/middleware"
)

// MCP server and tool names.
const (
	MCPServerName     = "HIBP-MCP"
	ToolBreaches      = "HIBP-Breaches"
	ToolPastes        = "HIBP-Pastes"
	ToolPwnedPassword = "HIBP-PwnedPasswords"
)

const serverInstructions = "Query the Have I Been Pwned API. Account and paste lookups " +
	"count against the configured subscription plan; password checks use k-anonymity " +
	"and only send the first five characters of the SHA-1 hash."

// Lookup is the HIBP surface the tools call. *hibp.Client implements it.
type Lookup interface {
	Breaches(ctx context.Context, query hibp.BreachQuery) (*core.LookupResult, error)
	Pastes(ctx context.Context, account string) (*core.LookupResult, error)
	PasswordExposure(ctx context.Context, password string) (*core.LookupResult, error)
}

type toolset struct {
	lookup Lookup
}

// NewMCPServer builds the MCP server exposing the HIBP tools.
func NewMCPServer(version string, lookup Lookup) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(MCPServerName, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(serverInstructions),
		mcpserver.WithRecovery(),
	)

	t := &toolset{lookup: lookup}
	s.AddTool(breachesTool(), t.handleBreaches)
	s.AddTool(pastesTool(), t.handlePastes)
	s.AddTool(passwordTool(), t.handlePassword)

	return s
}

func breachesTool() mcp.Tool {
	operations := make([]string, 0, len(core.BreachOperations))
	for _, op := range core.BreachOperations {
		operations = append(operations, string(op))
	}

	return mcp.NewTool(ToolBreaches,
		mcp.WithDescription("Tool to query breached accounts and breaches from the Have I Been Pwned API"),
		mcp.WithTitleAnnotation("Have I Been Pwned breaches"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Enum(operations...),
			mcp.Description("The HIBP operation to perform"),
		),
		mcp.WithString("account", mcp.Description("Email address to check for breaches")),
		mcp.WithString("domain", mcp.Description("Domain to filter breaches by")),
		mcp.WithString("name", mcp.Description("Breach name to get details for")),
		mcp.WithBoolean("includeUnverified", mcp.Description("Whether to include unverified breaches")),
		mcp.WithBoolean("truncateResponse", mcp.Description("Whether to truncate the response")),
	)
}

func pastesTool() mcp.Tool {
	return mcp.NewTool(ToolPastes,
		mcp.WithDescription("Tool to query pastes containing account data from the Have I Been Pwned API"),
		mcp.WithTitleAnnotation("Have I Been Pwned pastes"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("account",
			mcp.Required(),
			mcp.Description("Email address to check for pastes"),
		),
	)
}

func passwordTool() mcp.Tool {
	return mcp.NewTool(ToolPwnedPassword,
		mcp.WithDescription("Tool to check if a password has been exposed in data breaches using the Pwned Passwords API"),
		mcp.WithTitleAnnotation("Pwned Passwords"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Password to check (will be hashed locally before sending)"),
		),
	)
}

func (t *toolset) handleBreaches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withCorrelation(ctx)

	operation, err := req.RequireString("operation")
	if err != nil {
		return t.fail(ctx, ToolBreaches, apperrors.NewInvalidInputError("Operation parameter is required"))
	}

	query := hibp.BreachQuery{
		Operation: core.Operation(operation),
		Account:   req.GetString("account", ""),
		Domain:    req.GetString("domain", ""),
		Name:      req.GetString("name", ""),
	}

	args := req.GetArguments()
	if _, ok := args["includeUnverified"]; ok {
		v := req.GetBool("includeUnverified", false)
		query.IncludeUnverified = &v
	}
	if _, ok := args["truncateResponse"]; ok {
		v := req.GetBool("truncateResponse", true)
		query.TruncateResponse = &v
	}

	result, err := t.lookup.Breaches(ctx, query)
	if err != nil {
		return t.fail(ctx, ToolBreaches, err)
	}
	return t.ok(ToolBreaches, result)
}

func (t *toolset) handlePastes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withCorrelation(ctx)

	account, err := req.RequireString("account")
	if err != nil {
		return t.fail(ctx, ToolPastes, apperrors.NewInvalidInputError("Account parameter is required for pastes lookup"))
	}

	result, err := t.lookup.Pastes(ctx, account)
	if err != nil {
		return t.fail(ctx, ToolPastes, err)
	}
	return t.ok(ToolPastes, result)
}

func (t *toolset) handlePassword(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = withCorrelation(ctx)

	password, err := req.RequireString("password")
	if err != nil {
		return t.fail(ctx, ToolPwnedPassword, apperrors.NewInvalidInputError("Password parameter is required"))
	}

	result, err := t.lookup.PasswordExposure(ctx, password)
	if err != nil {
		return t.fail(ctx, ToolPwnedPassword, err)
	}
	return t.ok(ToolPwnedPassword, result)
}

func (t *toolset) ok(tool string, result *core.LookupResult) (*mcp.CallToolResult, error) {
	metrics.RecordToolCall(tool, false)
	return mcp.NewToolResultText(hibp.Text(result)), nil
}

// fail converts err into an isError tool result. Tool failures are reported
// to the client, never returned as protocol errors.
func (t *toolset) fail(ctx context.Context, tool string, err error) (*mcp.CallToolResult, error) {
	code := apperrors.CodeOf(err)
	message := apperrors.Message(err)

	observability.Logger().Error("Error in "+tool+" tool",
		zap.String("tool", tool),
		zap.String("error_code", code),
		zap.String("error", message),
		zap.String("request_id", servermw.GetRequestID(ctx)))

	metrics.RecordToolCall(tool, true)
	metrics.RecordErrorByEndpoint(tool, code)

	return mcp.NewToolResultError("Error: " + message), nil
}

// withCorrelation makes sure every tool invocation carries a request ID. HTTP
// calls inherit the one set by the RequestID middleware.
func withCorrelation(ctx context.Context) context.Context {
	if servermw.GetRequestID(ctx) != "" {
		return ctx
	}
	return servermw.WithRequestID(ctx, uuid.New().String())
}
