package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/core/hibp"
)

const maxListedNames = 5

// breach is the subset of the HIBP breach model shown in CLI output.
type breach struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	Domain      string   `json:"Domain"`
	BreachDate  string   `json:"BreachDate"`
	PwnCount    int64    `json:"PwnCount"`
	DataClasses []string `json:"DataClasses"`
	IsVerified  *bool    `json:"IsVerified"`
}

type paste struct {
	Source     string `json:"Source"`
	ID         string `json:"Id"`
	Title      string `json:"Title"`
	Date       string `json:"Date"`
	EmailCount int64  `json:"EmailCount"`
}

func displaySubject(result *core.LookupResult) string {
	if result == nil {
		return ""
	}
	switch {
	case result.Operation == core.OperationPasswordRange:
		return "(password)"
	case strings.TrimSpace(result.Subject) != "":
		return result.Subject
	default:
		return "-"
	}
}

func statusLabel(result *core.LookupResult) string {
	if result == nil {
		return "unknown"
	}
	if result.Error != "" {
		return "error"
	}

	switch result.Operation {
	case core.OperationPasswordRange:
		if result.Found {
			return "pwned"
		}
		return "not found"
	case core.OperationBreachesForAccount, core.OperationPastesForAccount:
		if result.Found {
			return "pwned"
		}
		return "clean"
	default:
		return "ok"
	}
}

func formatNotes(result *core.LookupResult) string {
	if result == nil {
		return ""
	}
	if result.Error != "" {
		return result.Error
	}

	parts := []string{}
	switch result.Operation {
	case core.OperationPasswordRange:
		if result.Found {
			parts = append(parts, fmt.Sprintf("seen %s times", hibp.GroupThousands(result.Count)))
		}
	case core.OperationPastesForAccount:
		parts = append(parts, pasteNotes(result.Data)...)
	case core.OperationDataClasses:
		parts = append(parts, dataClassNotes(result.Data)...)
	case core.OperationBreachByName:
		parts = append(parts, singleBreachNotes(result.Data)...)
	default:
		parts = append(parts, breachListNotes(result.Data)...)
	}

	if result.Provenance.FromCache {
		parts = append(parts, "cached")
	}

	return strings.Join(parts, "; ")
}

func breachListNotes(data json.RawMessage) []string {
	breaches, ok := decodeBreaches(data)
	if !ok || len(breaches) == 0 {
		return nil
	}
	names := make([]string, 0, len(breaches))
	for _, b := range breaches {
		names = append(names, b.Name)
	}
	return []string{fmt.Sprintf("%d %s: %s", len(breaches), plural(len(breaches), "breach", "breaches"), listNames(names))}
}

func singleBreachNotes(data json.RawMessage) []string {
	var b breach
	if err := json.Unmarshal(data, &b); err != nil || b.Name == "" {
		return nil
	}
	notes := []string{b.Name}
	if b.Domain != "" {
		notes = append(notes, "domain: "+b.Domain)
	}
	if b.BreachDate != "" {
		notes = append(notes, "date: "+b.BreachDate)
	}
	if b.PwnCount > 0 {
		notes = append(notes, fmt.Sprintf("%s accounts", hibp.GroupThousands(b.PwnCount)))
	}
	return notes
}

func pasteNotes(data json.RawMessage) []string {
	var pastes []paste
	if err := json.Unmarshal(data, &pastes); err != nil || len(pastes) == 0 {
		return nil
	}
	sources := make([]string, 0, len(pastes))
	for _, p := range pastes {
		sources = append(sources, p.Source)
	}
	return []string{fmt.Sprintf("%d %s: %s", len(pastes), plural(len(pastes), "paste", "pastes"), listNames(sources))}
}

func dataClassNotes(data json.RawMessage) []string {
	var classes []string
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil
	}
	return []string{fmt.Sprintf("%d data classes", len(classes))}
}

func decodeBreaches(data json.RawMessage) ([]breach, bool) {
	var breaches []breach
	if err := json.Unmarshal(data, &breaches); err != nil {
		return nil, false
	}
	return breaches, true
}

func listNames(names []string) string {
	if len(names) <= maxListedNames {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:maxListedNames], ", ") + fmt.Sprintf(" (+%d more)", len(names)-maxListedNames)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func summaryLine(result *core.BatchResult) string {
	summary := fmt.Sprintf("%d/%d found", result.Found, result.Total)
	if result.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", result.Failed)
	}
	return summary
}
