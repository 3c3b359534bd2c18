package internaldefs

import (
	refreshguard "github.com/MrEthical07/refreshguard"
)

// CounterDef defines a public type used by refreshguard APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   refreshguard.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by refreshguard APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   refreshguard.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session core.
var CounterDefs = []CounterDef{
	{ID: refreshguard.MetricIssueSuccess, Name: "refreshguard_issue_success_total", Help: "Successful session issuances."},
	{ID: refreshguard.MetricIssueFailure, Name: "refreshguard_issue_failure_total", Help: "Failed session issuances."},
	{ID: refreshguard.MetricRefreshSuccess, Name: "refreshguard_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: refreshguard.MetricRefreshFailure, Name: "refreshguard_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: refreshguard.MetricRefreshReuseDetected, Name: "refreshguard_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: refreshguard.MetricSessionRevoked, Name: "refreshguard_session_revoked_total", Help: "Revoked sessions, explicit and cascading."},
	{ID: refreshguard.MetricValidateSuccess, Name: "refreshguard_validate_success_total", Help: "Successful access token validations."},
	{ID: refreshguard.MetricValidateFailure, Name: "refreshguard_validate_failure_total", Help: "Failed access token validations."},
	{ID: refreshguard.MetricSweepDeleted, Name: "refreshguard_sweep_deleted_total", Help: "Expired refresh records deleted by sweep passes."},
	{ID: refreshguard.MetricSweepError, Name: "refreshguard_sweep_error_total", Help: "Sweep passes that failed."},
}

// HistogramDefs is an exported constant or variable used by the session core.
var HistogramDefs = []HistogramDef{
	{ID: refreshguard.MetricValidateLatency, Name: "refreshguard_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session core.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session core.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
