// Package reconnect decides when and how long to wait before reopening a
// dropped connection.
//
// A Policy is a small state machine driven by transport events:
//
//	Idle -> Connecting -> Open -> Reconnecting -> Connecting -> ...
//	                                     \-> Exhausted
//
// It holds no timers itself. The caller asks it for a Decision on every
// failure and schedules the retry through a Scheduler.
package reconnect

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/errors"
)

// State is the lifecycle state of a Policy.
type State int

const (
	// Idle means no connection is wanted.
	Idle State = iota
	// Connecting means an open is in flight.
	Connecting
	// Open means the transport is connected.
	Open
	// Reconnecting means a retry is scheduled.
	Reconnecting
	// Exhausted means retries ran out and only a manual connect restarts.
	Exhausted
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Growth selects how the delay grows with each retry.
type Growth int

const (
	// Linear waits base*attempt. Delays strictly increase and are bounded by
	// MaxAttempts alone.
	Linear Growth = iota
	// Exponential waits base*2^(attempt-1), capped by Config.MaxDelay when set.
	Exponential
)

const maxDuration = time.Duration(math.MaxInt64)

// String returns the configuration name of g.
func (g Growth) String() string {
	if g == Exponential {
		return "exponential"
	}
	return "linear"
}

// Delay returns the wait before retry number attempt (1-based). Results that
// would overflow saturate at the largest time.Duration.
func (g Growth) Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return base
	}
	if g == Exponential {
		shift := uint(min(attempt-1, 62))
		if base > maxDuration>>shift {
			return maxDuration
		}
		return base << shift
	}
	if base > maxDuration/time.Duration(attempt) {
		return maxDuration
	}
	return base * time.Duration(attempt)
}

// ParseGrowth returns the growth function for a configuration name.
func ParseGrowth(name string) (Growth, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return Linear, nil
	case "exponential":
		return Exponential, nil
	default:
		return Linear, errors.NewValidationError("growth", name, "must be linear or exponential")
	}
}

// Config holds retry parameters.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps Exponential growth. Zero disables the cap. Linear
	// delays are never capped.
	MaxDelay time.Duration
	Growth   Growth
}

// DefaultConfig returns ten linear retries starting at one second.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: constants.DefaultMaxAttempts,
		BaseDelay:   constants.DefaultBaseDelay,
		MaxDelay:    constants.DefaultMaxDelay,
		Growth:      Linear,
	}
}

// Validate checks that the configuration can drive a Policy.
func (c Config) Validate() error {
	switch {
	case c.MaxAttempts < 0:
		return errors.NewConfigError("reconnect", "max_attempts must not be negative", errors.ErrInvalidInput)
	case c.BaseDelay <= 0:
		return errors.NewConfigError("reconnect", "base_delay must be positive", errors.ErrInvalidInput)
	case c.MaxDelay < 0:
		return errors.NewConfigError("reconnect", "max_delay must not be negative", errors.ErrInvalidInput)
	}
	return nil
}

// Delay returns the wait before retry number attempt.
func (c Config) Delay(attempt int) time.Duration {
	d := c.Growth.Delay(c.BaseDelay, attempt)
	if c.Growth == Exponential && c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Outcome is what a failure leads to.
type Outcome int

const (
	// Ignored means the failure arrived in a state that does not react to it.
	Ignored Outcome = iota
	// Retry means a reconnect should be scheduled after Decision.Delay.
	Retry
	// GiveUp means retries are exhausted.
	GiveUp
)

// Decision is the policy's answer to a failure.
type Decision struct {
	Outcome Outcome
	Attempt int
	Delay   time.Duration
}

// Policy tracks reconnect attempts. It is not safe for concurrent use; the
// client drives it from a single goroutine.
type Policy struct {
	cfg     Config
	state   State
	attempt int
	lastErr error
}

// New creates a policy in the Idle state.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Config returns the policy configuration.
func (p *Policy) Config() Config { return p.cfg }

// State returns the current state.
func (p *Policy) State() State { return p.state }

// Attempt returns the number of retries since the last successful open.
func (p *Policy) Attempt() int { return p.attempt }

// LastError returns the most recent failure, or nil after a successful open.
func (p *Policy) LastError() error { return p.lastErr }

// Connect starts a manual connection. It only applies from Idle or Exhausted
// and resets the attempt counter.
func (p *Policy) Connect() bool {
	if p.state != Idle && p.state != Exhausted {
		return false
	}
	p.state = Connecting
	p.attempt = 0
	p.lastErr = nil
	return true
}

// Opened records a successful open.
func (p *Policy) Opened() {
	p.state = Open
	p.attempt = 0
	p.lastErr = nil
}

// Failed records a dropped connection or failed open.
func (p *Policy) Failed(err error) Decision {
	if p.state != Open && p.state != Connecting {
		return Decision{Outcome: Ignored, Attempt: p.attempt}
	}

	if p.attempt >= p.cfg.MaxAttempts {
		p.state = Exhausted
		if err != nil {
			p.lastErr = fmt.Errorf("%w after %d attempts: %w", errors.ErrRetriesExhausted, p.attempt, err)
		} else {
			p.lastErr = fmt.Errorf("%w after %d attempts", errors.ErrRetriesExhausted, p.attempt)
		}
		return Decision{Outcome: GiveUp, Attempt: p.attempt}
	}

	p.attempt++
	p.state = Reconnecting
	p.lastErr = err
	return Decision{Outcome: Retry, Attempt: p.attempt, Delay: p.cfg.Delay(p.attempt)}
}

// Retrying moves a scheduled retry into Connecting. It reports false when no
// retry is pending, which makes stale timer fires harmless.
func (p *Policy) Retrying() bool {
	if p.state != Reconnecting {
		return false
	}
	p.state = Connecting
	return true
}

// Reset returns to Idle without retrying.
func (p *Policy) Reset() {
	p.state = Idle
	p.attempt = 0
	p.lastErr = nil
}
