package netguard

import "time"

// TelemetryCollector receives request outcomes. Implementations must be safe
// for concurrent use. A nil collector disables reporting.
type TelemetryCollector interface {
	IncRequests(method, url string)
	IncRetries(method, url string, attempt int)
	IncFailures(method, url string, kind Kind)
	ObserveLatency(method, url string, d time.Duration)
}
