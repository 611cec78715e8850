package output

import (
	"fmt"
	"strings"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/core/hibp"
)

type detailSection struct {
	Title string
	Lines []string
}

// detailSections expands untruncated breach payloads, one section per
// subject. Truncated responses only carry names and produce no sections.
func detailSections(result *core.BatchResult) []detailSection {
	if result == nil {
		return nil
	}

	sections := []detailSection{}
	for _, r := range result.Results {
		if r == nil || r.Error != "" || len(r.Data) == 0 {
			continue
		}
		switch r.Operation {
		case core.OperationBreachesForAccount, core.OperationBreachedSites:
		default:
			continue
		}

		breaches, ok := decodeBreaches(r.Data)
		if !ok {
			continue
		}

		lines := []string{}
		for _, b := range breaches {
			if line, ok := breachLine(b); ok {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}

		title := "Breach details"
		if r.Subject != "" {
			title += " for " + r.Subject
		}
		sections = append(sections, detailSection{Title: title, Lines: lines})
	}
	return sections
}

func breachLine(b breach) (string, bool) {
	if b.BreachDate == "" && b.Domain == "" && b.PwnCount == 0 {
		return "", false
	}

	parts := []string{}
	if b.Domain != "" {
		parts = append(parts, b.Domain)
	}
	if b.BreachDate != "" {
		parts = append(parts, b.BreachDate)
	}
	if b.PwnCount > 0 {
		parts = append(parts, hibp.GroupThousands(b.PwnCount)+" accounts")
	}
	if b.IsVerified != nil && !*b.IsVerified {
		parts = append(parts, "unverified")
	}

	line := fmt.Sprintf("%s: %s", b.Name, strings.Join(parts, ", "))
	if len(b.DataClasses) > 0 {
		line += " [" + strings.Join(b.DataClasses, ", ") + "]"
	}
	return line, true
}

func renderDetailSections(sections []detailSection, markdown bool) string {
	if len(sections) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, section := range sections {
		sb.WriteString("\n\n")
		if markdown {
			sb.WriteString("### " + escapeMarkdownCell(section.Title) + "\n\n")
			for _, line := range section.Lines {
				sb.WriteString("- " + line + "\n")
			}
			continue
		}
		sb.WriteString(section.Title + "\n")
		for _, line := range section.Lines {
			sb.WriteString("  " + line + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
