// Package ratelimit gates every upstream call against per-minute and
// per-month budgets and sheds load through a circuit breaker before hard
// failures occur. All state is in-memory and per-process.
package ratelimit

import (
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
)

// Reason explains a non-clean admission decision.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonThrottled      Reason = "throttled"
	ReasonCircuitOpen    Reason = "circuit_open"
	ReasonBudgetExceeded Reason = "budget_exceeded"
)

// Admission is the result of TryAcquire. Admitted with ReasonThrottled means
// the call may proceed but is near the budget ceiling.
type Admission struct {
	Admitted bool
	Reason   Reason
}

const minutesPerDay = 24 * 60

// Config holds limiter thresholds. Zero values fall back to defaults.
type Config struct {
	MonthlyBudget      int
	ThrottleThreshold  float64 // utilization above which admitted calls are marked throttled
	EmergencyThreshold float64 // utilization at which the breaker opens
	ErrorThreshold     int     // consecutive upstream failures that open the breaker
	RecoveryInterval   time.Duration
}

func (c *Config) applyDefaults() {
	if c.MonthlyBudget <= 0 {
		c.MonthlyBudget = 110_000
	}
	if c.ThrottleThreshold <= 0 {
		c.ThrottleThreshold = 0.95
	}
	if c.EmergencyThreshold <= 0 {
		c.EmergencyThreshold = 0.99
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 3
	}
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = 15 * time.Second
	}
}

// Limiter tracks call budgets and breaker state. It is the single piece of
// shared mutable state touched by all concurrent symbol tasks; every method
// holds the mutex briefly and performs no I/O under it.
type Limiter struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	minuteStart     time.Time
	minuteCount     int
	monthStart      time.Time
	monthCount      int
	perMinuteBudget int
	budgetDay       time.Time // day the per-minute budget was derived for

	state        models.BreakerState
	openedAt     time.Time
	probeHeld    bool
	consecErrors int
}

// New creates a limiter in the CLOSED state.
func New(cfg Config) *Limiter {
	return newWithClock(cfg, time.Now)
}

func newWithClock(cfg Config, now func() time.Time) *Limiter {
	cfg.applyDefaults()
	l := &Limiter{cfg: cfg, now: now, state: models.BreakerClosed}
	t := now()
	l.minuteStart = t.Truncate(time.Minute)
	l.monthStart = monthOf(t)
	l.recomputeBudget(t)
	return l
}

// TryAcquire returns the admission decision for one upstream call. Admitted
// calls must be followed by exactly one RecordSuccess or RecordFailure.
func (l *Limiter) TryAcquire() Admission {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.now()
	l.rollover(t)

	if l.state == models.BreakerOpen {
		if t.Sub(l.openedAt) < l.cfg.RecoveryInterval {
			return Admission{Admitted: false, Reason: ReasonCircuitOpen}
		}
		l.state = models.BreakerHalfOpen
		l.probeHeld = false
	}

	if l.state == models.BreakerHalfOpen {
		// Exactly one probe call while half-open.
		if l.probeHeld {
			return Admission{Admitted: false, Reason: ReasonCircuitOpen}
		}
		l.probeHeld = true
		l.minuteCount++
		l.monthCount++
		return Admission{Admitted: true}
	}

	if l.monthCount >= l.cfg.MonthlyBudget || l.minuteCount >= l.perMinuteBudget {
		return Admission{Admitted: false, Reason: ReasonBudgetExceeded}
	}

	util := l.utilization()
	if util >= l.cfg.EmergencyThreshold {
		l.open(t)
		return Admission{Admitted: false, Reason: ReasonCircuitOpen}
	}

	l.minuteCount++
	l.monthCount++
	if util >= l.cfg.ThrottleThreshold {
		return Admission{Admitted: true, Reason: ReasonThrottled}
	}
	return Admission{Admitted: true}
}

// RecordSuccess reports a completed upstream call.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecErrors = 0
	if l.state == models.BreakerHalfOpen {
		l.state = models.BreakerClosed
		l.probeHeld = false
		l.openedAt = time.Time{}
	}
}

// RecordFailure reports a failed upstream call (timeout, 429, 5xx). Past the
// error threshold the breaker opens; a failed half-open probe re-opens it
// immediately and restarts the recovery timer.
func (l *Limiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.now()
	l.consecErrors++
	if l.state == models.BreakerHalfOpen {
		l.open(t)
		return
	}
	if l.state == models.BreakerClosed && l.consecErrors >= l.cfg.ErrorThreshold {
		l.open(t)
	}
}

// Snapshot returns a read-only telemetry view.
func (l *Limiter) Snapshot() models.RateLimiterState {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover(l.now())
	return models.RateLimiterState{
		RequestsThisMinute: l.minuteCount,
		RequestsThisMonth:  l.monthCount,
		MonthlyBudget:      l.cfg.MonthlyBudget,
		PerMinuteBudget:    l.perMinuteBudget,
		Utilization:        l.utilization(),
		Breaker:            l.state,
		BreakerOpenedAt:    l.openedAt,
		ConsecutiveErrors:  l.consecErrors,
	}
}

// utilization is requestsThisMinute / perMinuteBudget. Callers hold l.mu.
func (l *Limiter) utilization() float64 {
	if l.perMinuteBudget <= 0 {
		return 1
	}
	return float64(l.minuteCount) / float64(l.perMinuteBudget)
}

func (l *Limiter) open(t time.Time) {
	l.state = models.BreakerOpen
	l.openedAt = t
	l.probeHeld = false
}

// rollover resets counters on minute/month boundaries and re-derives the
// per-minute budget once per day. Callers hold l.mu.
func (l *Limiter) rollover(t time.Time) {
	if min := t.Truncate(time.Minute); min.After(l.minuteStart) {
		l.minuteStart = min
		l.minuteCount = 0
	}
	if m := monthOf(t); m.After(l.monthStart) {
		l.monthStart = m
		l.monthCount = 0
	}
	if day := t.Truncate(24 * time.Hour); day.After(l.budgetDay) {
		l.recomputeBudget(t)
	}
}

// recomputeBudget spreads the monthly budget evenly across the remaining
// minutes of the month, preventing front-loaded usage early in the billing
// cycle. Callers hold l.mu.
func (l *Limiter) recomputeBudget(t time.Time) {
	l.budgetDay = t.Truncate(24 * time.Hour)
	budget := l.cfg.MonthlyBudget / (daysLeftInMonth(t) * minutesPerDay)
	if budget < 1 {
		budget = 1
	}
	l.perMinuteBudget = budget
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func daysLeftInMonth(t time.Time) int {
	firstNext := monthOf(t).AddDate(0, 1, 0)
	days := int(firstNext.Sub(t).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}
