// Package output renders lookup batches and the plan registry for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

// Format names a rendering.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders lookup batches and the plan table.
type Formatter interface {
	FormatBatch(result *core.BatchResult) (string, error)
	FormatPlans(plans []core.RateLimitConfig, active string) (string, error)
}

var formatAliases = map[string]Format{
	"":         FormatTable,
	"table":    FormatTable,
	"json":     FormatJSON,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
}

// Formats lists the canonical format names for flag help.
func Formats() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatMarkdown)}
}

// ParseFormat maps a user-supplied name or alias to a Format.
func ParseFormat(value string) (Format, error) {
	if f, ok := formatAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want one of %s)", value, strings.Join(Formats(), ", "))
}

// NewFormatter returns the formatter for format; unknown formats get a table.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	}
	return &TableFormatter{}
}

// FormatBatchList renders several batches. JSON yields one array; the other
// formats render each batch and separate them with a blank line.
func FormatBatchList(format Format, results []*core.BatchResult) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		return string(data), err
	}

	f := NewFormatter(format)
	var sb strings.Builder
	for _, result := range results {
		if result == nil {
			continue
		}
		rendered, err := f.FormatBatch(result)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(rendered) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(rendered)
	}
	return sb.String(), nil
}

// PlanRows returns the registry's plans ordered by quota.
func PlanRows(registry core.PlanRegistry) []core.RateLimitConfig {
	var rows []core.RateLimitConfig
	for _, name := range registry.Names() {
		rows = append(rows, registry[name])
	}
	return rows
}
