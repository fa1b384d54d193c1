package internaldefs

import (
	hsAuth "github.com/MrEthical07/hsAuth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   hsAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   hsAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: hsAuth.MetricLoginSuccess, Name: "hsauth_login_success_total", Help: "Successful single-shot logins."},
	{ID: hsAuth.MetricLoginFailure, Name: "hsauth_login_failure_total", Help: "Failed single-shot logins."},
	{ID: hsAuth.MetricLoginRateLimited, Name: "hsauth_login_rate_limited_total", Help: "Logins rejected by the failed-attempt throttle."},
	{ID: hsAuth.MetricLogout, Name: "hsauth_logout_total", Help: "Device logouts."},
	{ID: hsAuth.MetricDeviceMinted, Name: "hsauth_device_minted_total", Help: "Device credentials minted."},
	{ID: hsAuth.MetricDeviceRevoked, Name: "hsauth_device_revoked_total", Help: "Devices revoked by id."},
	{ID: hsAuth.MetricAuthenticateHit, Name: "hsauth_authenticate_hit_total", Help: "Bearer tokens resolved to a live device."},
	{ID: hsAuth.MetricAuthenticateMiss, Name: "hsauth_authenticate_miss_total", Help: "Bearer tokens that resolved to nothing."},
	{ID: hsAuth.MetricUIASessionCreated, Name: "hsauth_uia_session_created_total", Help: "Interactive-auth sessions created."},
	{ID: hsAuth.MetricUIAStageSuccess, Name: "hsauth_uia_stage_success_total", Help: "Interactive-auth stages completed."},
	{ID: hsAuth.MetricUIAStageFailure, Name: "hsauth_uia_stage_failure_total", Help: "Interactive-auth stage attempts rejected."},
	{ID: hsAuth.MetricUIASatisfied, Name: "hsauth_uia_satisfied_total", Help: "Interactive-auth sessions that satisfied a flow."},
	{ID: hsAuth.MetricLoginTokenIssued, Name: "hsauth_login_token_issued_total", Help: "Single-use login tokens issued."},
	{ID: hsAuth.MetricEmailIdentityRequested, Name: "hsauth_email_identity_requested_total", Help: "Email validation codes sent."},
	{ID: hsAuth.MetricEmailIdentityValidated, Name: "hsauth_email_identity_validated_total", Help: "Email validation sessions confirmed."},
}

var HistogramDefs = []HistogramDef{
	{ID: hsAuth.MetricAuthenticateLatency, Name: "hsauth_authenticate_latency_seconds", Help: "Bearer token resolution latency."},
}

// Bound is one latency bucket boundary in its two exported spellings.
type Bound struct {
	Le     string
	Suffix string
}

// Bounds mirror the engine's latency buckets, in seconds. The last entry
// is the +Inf overflow bucket.
var Bounds = [...]Bound{
	{Le: "0.005", Suffix: "0_005"},
	{Le: "0.01", Suffix: "0_01"},
	{Le: "0.025", Suffix: "0_025"},
	{Le: "0.05", Suffix: "0_05"},
	{Le: "0.1", Suffix: "0_1"},
	{Le: "0.25", Suffix: "0_25"},
	{Le: "0.5", Suffix: "0_5"},
	{Le: "+Inf", Suffix: "inf"},
}

// BucketCount is the number of latency buckets, overflow included.
const BucketCount = len(Bounds)

// Cumulative turns raw per-bucket counts into running totals over exactly
// BucketCount buckets. Missing buckets count as zero and extras are dropped.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var (
		out     [BucketCount]uint64
		running uint64
	)
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
