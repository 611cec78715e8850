package hibp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

// Text renders result as the message returned to MCP clients.
func Text(result *core.LookupResult) string {
	if result == nil {
		return ""
	}

	switch result.Operation {
	case core.OperationPasswordRange:
		if result.Found {
			return fmt.Sprintf("Password found in %s data breaches!", GroupThousands(result.Count))
		}
		return "Good news! Password wasn't found in any known data breaches."
	case core.OperationPastesForAccount:
		if !result.Found {
			return "Good news! No pastes found for account: " + result.Subject
		}
		return fmt.Sprintf("Pastes containing the account %s:\n\n%s", result.Subject, IndentJSON(result.Data))
	case core.OperationBreachesForAccount:
		if !result.Found {
			return "Good news! No breaches found for account: " + result.Subject
		}
	}

	return fmt.Sprintf("Result for %s:\n\n%s", result.Operation, IndentJSON(result.Data))
}

// IndentJSON pretty-prints data with two-space indentation. Empty input
// renders as {}.
func IndentJSON(data json.RawMessage) string {
	if len(bytes.TrimSpace(data)) == 0 {
		return "{}"
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// GroupThousands formats n with comma separators (1234567 -> 1,234,567).
func GroupThousands(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
