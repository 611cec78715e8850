package output

import (
	"encoding/json"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatBatch renders a batch result as JSON.
func (f *JSONFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(result)
}

type planJSON struct {
	Plan              string `json:"plan"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	Active            bool   `json:"active"`
}

// FormatPlans renders the plan list as JSON.
func (f *JSONFormatter) FormatPlans(plans []core.RateLimitConfig, active string) (string, error) {
	rows := make([]planJSON, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, planJSON{
			Plan:              p.Plan,
			RequestsPerMinute: p.RequestsPerMinute,
			Active:            p.Plan == active,
		})
	}
	return f.marshal(rows)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
