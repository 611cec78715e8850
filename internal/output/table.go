package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatBatch renders a batch result as a table.
func (f *TableFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(string(result.Operation))
	t.AppendHeader(table.Row{"Subject", "Status", "Notes"})

	for _, r := range result.Results {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			displaySubject(r),
			statusLabel(r),
			formatNotes(r),
		})
	}

	if result.Total > 1 {
		t.AppendFooter(table.Row{"", summaryLine(result), ""})
	}

	rendered := t.Render()
	rendered += renderDetailSections(detailSections(result), false)
	return rendered, nil
}

// FormatPlans renders the subscription plans as a table.
func (f *TableFormatter) FormatPlans(plans []core.RateLimitConfig, active string) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Plan", "Requests/min", "Active"})

	for _, p := range plans {
		marker := ""
		if p.Plan == active {
			marker = "*"
		}
		t.AppendRow(table.Row{p.Plan, fmt.Sprintf("%d", p.RequestsPerMinute), marker})
	}

	return t.Render(), nil
}
