package metrics

import "time"

// Archive and governor metrics
const (
	ArchiveRequestsTotal     = "archive_requests_total"
	ArchiveRequestDurationMs = "archive_request_duration_ms"
	GovernorDecisionsTotal   = "governor_decisions_total"
	GovernorWaitMs           = "governor_wait_ms"
	ToolInvocationsTotal     = "tool_invocations_total"
)

// RecordArchiveRequest records one upstream archive call.
// outcome is one of ok, retry, error.
func RecordArchiveRequest(endpoint, outcome string, duration time.Duration) {
	counter(ArchiveRequestsTotal, map[string]string{"endpoint": endpoint, "outcome": outcome})
	histogram(ArchiveRequestDurationMs, duration, map[string]string{"endpoint": endpoint})
}

// RecordGovernorDecision records a governor outcome for a bucket.
func RecordGovernorDecision(bucket, outcome string, wait time.Duration) {
	counter(GovernorDecisionsTotal, map[string]string{"bucket": bucket, "outcome": outcome})
	if outcome == "granted" {
		histogram(GovernorWaitMs, wait, map[string]string{"bucket": bucket})
	}
}

// RecordToolInvocation records a completed tool call.
func RecordToolInvocation(tool string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	counter(ToolInvocationsTotal, map[string]string{"tool": tool, "status": status})
}
