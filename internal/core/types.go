package core

import (
	"encoding/json"
	"time"
)

// Operation identifies an HIBP lookup.
type Operation string

const (
	OperationBreachesForAccount Operation = "getAllBreachesForAccount"
	OperationBreachedSites      Operation = "getAllBreachedSites"
	OperationBreachByName       Operation = "getBreachByName"
	OperationDataClasses        Operation = "getDataClasses"
	OperationPastesForAccount   Operation = "getPastesForAccount"
	OperationPasswordRange      Operation = "getPasswordExposure"
)

// BreachOperations lists the operations served by the breaches tool.
var BreachOperations = []Operation{
	OperationBreachesForAccount,
	OperationBreachedSites,
	OperationBreachByName,
	OperationDataClasses,
}

// ParseBreachOperation validates a breaches-tool operation name.
func ParseBreachOperation(value string) (Operation, bool) {
	for _, op := range BreachOperations {
		if string(op) == value {
			return op, true
		}
	}
	return "", false
}

// Metered reports whether the operation counts against the subscription quota.
func (o Operation) Metered() bool {
	return o != OperationPasswordRange
}

// Provenance captures metadata about how a lookup was resolved.
type Provenance struct {
	LookupID       string     `json:"lookup_id"`
	RequestedAt    time.Time  `json:"requested_at"`
	ResolvedAt     time.Time  `json:"resolved_at"`
	Source         string     `json:"source"`
	URL            string     `json:"url,omitempty"`
	FromCache      bool       `json:"from_cache"`
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
	ToolVersion    string     `json:"tool_version"`
}

// LookupResult reports the outcome of a single HIBP lookup.
//
// Found is false when HIBP answered "not found" for an account, or when a
// password suffix is absent from its range. Data holds the decoded response
// body for breach and paste lookups. Error is only set by batch runs, where
// one failed subject must not abort the others.
type LookupResult struct {
	Operation  Operation       `json:"operation"`
	Subject    string          `json:"subject,omitempty"`
	Found      bool            `json:"found"`
	Count      int64           `json:"count,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Provenance Provenance      `json:"provenance"`
}

// CachedResponse is a stored upstream response body.
type CachedResponse struct {
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	ExpiresAt  time.Time
}

// BatchResult aggregates lookups of one operation across several subjects.
type BatchResult struct {
	Operation Operation       `json:"operation"`
	Results   []*LookupResult `json:"results"`
	Total     int             `json:"total"`
	Found     int             `json:"found"`
	Failed    int             `json:"failed"`
}

// NewBatchResult builds a BatchResult and its tallies from results.
func NewBatchResult(op Operation, results []*LookupResult) *BatchResult {
	batch := &BatchResult{Operation: op, Results: make([]*LookupResult, 0, len(results))}
	for _, r := range results {
		if r == nil {
			continue
		}
		batch.Results = append(batch.Results, r)
		batch.Total++
		switch {
		case r.Error != "":
			batch.Failed++
		case r.Found:
			batch.Found++
		}
	}
	return batch
}
