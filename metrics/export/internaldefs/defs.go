package internaldefs

import (
	goEnroll "github.com/MrEthical07/goEnroll"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goEnroll.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goEnroll.MetricID
	Name string
	Help string
}

// BucketCount is the number of latency buckets, the last one unbounded.
const BucketCount = len(goEnroll.HistogramBucketBounds) + 1

var CounterDefs = []CounterDef{
	{ID: goEnroll.MetricCodeIssued, Name: "goenroll_code_issued_total", Help: "Verification codes issued."},
	{ID: goEnroll.MetricCodeResent, Name: "goenroll_code_resent_total", Help: "Verification codes re-sent after the cooldown."},
	{ID: goEnroll.MetricResendCooldownDenied, Name: "goenroll_resend_cooldown_denied_total", Help: "Resend requests refused during the cooldown."},
	{ID: goEnroll.MetricCheckSuccess, Name: "goenroll_check_success_total", Help: "Codes that verified a phone number."},
	{ID: goEnroll.MetricCheckInvalid, Name: "goenroll_check_invalid_total", Help: "Mismatched codes that left attempts remaining."},
	{ID: goEnroll.MetricCheckExpired, Name: "goenroll_check_expired_total", Help: "Checks against an expired code."},
	{ID: goEnroll.MetricSessionLocked, Name: "goenroll_session_locked_total", Help: "Sessions locked after exhausting attempts."},
	{ID: goEnroll.MetricCheckWhileLocked, Name: "goenroll_check_while_locked_total", Help: "Checks and resends refused by an active lock."},
	{ID: goEnroll.MetricIssueRateLimited, Name: "goenroll_issue_rate_limited_total", Help: "Issuances denied by the per-phone window."},
	{ID: goEnroll.MetricDeliveryFailure, Name: "goenroll_delivery_failure_total", Help: "Codes the delivery collaborator failed to send."},
	{ID: goEnroll.MetricSessionReset, Name: "goenroll_session_reset_total", Help: "Sessions reset by editing the phone number."},
	{ID: goEnroll.MetricReceiptIssued, Name: "goenroll_receipt_issued_total", Help: "Signed phone receipts issued."},
}

var HistogramDefs = []HistogramDef{
	{ID: goEnroll.MetricCheckLatency, Name: "goenroll_check_latency_seconds", Help: "Code check latency histogram."},
}

// HistogramBounds are the Prometheus le labels, in seconds, matching
// goEnroll.HistogramBucketBounds.
var HistogramBounds = []string{
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.005",
	"0.025",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds rewritten for instrument names.
var HistogramBoundSuffix = []string{
	"0_00005",
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_005",
	"0_025",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling when a
// snapshot has no histogram.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
