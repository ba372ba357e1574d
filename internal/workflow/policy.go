package workflow

import (
	"time"

	"github.com/seojin/mailflow/internal/delivery"
)

// Policy holds the retry and timeout constants for one workflow run.
// The retry interval is fixed (no exponential growth): the downstream
// provider's own rate limiting is assumed to self-pace, so growing the
// interval only delays recovery.
type Policy struct {
	// MaxAttempts caps how many times Sending may be entered before the
	// workflow is forced to Failed.
	MaxAttempts int `mapstructure:"max_attempts"`

	// RetryInterval is the fixed wait between attempts.
	RetryInterval time.Duration `mapstructure:"retry_interval"`

	// ActivityTimeout bounds one send attempt.
	ActivityTimeout time.Duration `mapstructure:"activity_timeout"`

	// HeartbeatInterval is how often the send activity must signal
	// liveness; an attempt silent for twice this long is considered
	// stalled and is forcibly retried.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// ApprovalTimeout bounds the approval gate.
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
}

// DefaultPolicy returns the standard policy constants.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		RetryInterval:     1 * time.Minute,
		ActivityTimeout:   2 * time.Minute,
		HeartbeatInterval: 30 * time.Second,
		ApprovalTimeout:   24 * time.Hour,
	}
}

// WithOverrides applies per-request overrides, leaving zero-valued fields
// at their defaults.
func (p Policy) WithOverrides(o *delivery.PolicyOverrides) Policy {
	if o == nil {
		return p
	}
	if o.MaxAttempts > 0 {
		p.MaxAttempts = o.MaxAttempts
	}
	if o.RetryInterval > 0 {
		p.RetryInterval = o.RetryInterval
	}
	if o.ActivityTimeout > 0 {
		p.ActivityTimeout = o.ActivityTimeout
	}
	if o.ApprovalTimeout > 0 {
		p.ApprovalTimeout = o.ApprovalTimeout
	}
	return p
}
