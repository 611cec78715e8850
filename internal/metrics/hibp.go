package metrics

import (
	"strconv"
	"time"
)

// RecordAdmission records one governor admission and, when the caller was
// suspended, how long it waited.
func RecordAdmission(plan string, waited time.Duration) {
	inc(GovernorAdmissionsTotal, labels{"plan": plan, "waited": strconv.FormatBool(waited > 0)})
	if waited > 0 {
		observe(GovernorWaitMs, waited, labels{"plan": plan})
	}
}

// RecordRequest records a completed upstream call. status is 0 when no
// response was received.
func RecordRequest(operation string, status int, duration time.Duration) {
	inc(RequestsTotal, labels{"operation": operation, "status": strconv.Itoa(status)})
	observe(RequestDurationMs, duration, labels{"operation": operation})
}

// RecordCacheLookup records a response cache hit or miss.
func RecordCacheLookup(operation string, hit bool) {
	inc(CacheLookupsTotal, labels{"operation": operation, "result": pick(hit, "hit", "miss")})
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(name, from, to string) {
	inc(BreakerTransitionsTotal, labels{"breaker": name, "from": from, "to": to})
}

// RecordToolCall records an MCP tool invocation outcome.
func RecordToolCall(tool string, isError bool) {
	inc(ToolCallsTotal, labels{"tool": tool, "outcome": pick(isError, "error", "success")})
}
