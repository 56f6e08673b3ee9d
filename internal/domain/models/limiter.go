package models

import "time"

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// RateLimiterState is a read-only telemetry snapshot of the limiter.
type RateLimiterState struct {
	RequestsThisMinute int          `json:"requests_this_minute"`
	RequestsThisMonth  int          `json:"requests_this_month"`
	MonthlyBudget      int          `json:"monthly_budget"`
	PerMinuteBudget    int          `json:"per_minute_budget"`
	Utilization        float64      `json:"utilization"`
	Breaker            BreakerState `json:"breaker"`
	BreakerOpenedAt    time.Time    `json:"breaker_opened_at,omitempty"`
	ConsecutiveErrors  int          `json:"consecutive_errors"`
}
