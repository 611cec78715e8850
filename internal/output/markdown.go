package output

import (
	"fmt"
	"strings"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatBatch renders a batch result as Markdown.
func (f *MarkdownFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(string(result.Operation))))
	sb.WriteString("| Subject | Status | Notes |\n")
	sb.WriteString("|---------|--------|-------|\n")

	for _, r := range result.Results {
		if r == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(displaySubject(r)),
			escapeMarkdownCell(statusLabel(r)),
			escapeMarkdownCell(formatNotes(r)),
		))
	}

	if result.Total > 1 {
		sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summaryLine(result)))
	}

	sb.WriteString(renderDetailSections(detailSections(result), true))
	return sb.String(), nil
}

// FormatPlans renders the subscription plans as Markdown.
func (f *MarkdownFormatter) FormatPlans(plans []core.RateLimitConfig, active string) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Plan | Requests/min | Active |\n")
	sb.WriteString("|------|--------------|--------|\n")
	for _, p := range plans {
		marker := ""
		if p.Plan == active {
			marker = "yes"
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", escapeMarkdownCell(p.Plan), p.RequestsPerMinute, marker))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
