package resilience

import "time"

// Config tunes retries and the circuit breaker guarding an outbound dependency.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// AttemptTimeout bounds a single attempt. Zero leaves the caller's deadline alone.
	AttemptTimeout time.Duration

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
	BreakerProbeCalls   uint32
}

// DefaultConfig makes one attempt; previews are user-triggered and a retry
// would hold the in-flight flag for a second full round trip.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    1,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,

		BreakerEnabled:      true,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerOpenTimeout:  30 * time.Second,
		BreakerProbeCalls:   1,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	out := c

	if out.MaxAttempts < 1 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1 {
		out.Multiplier = def.Multiplier
	}
	if out.AttemptTimeout < 0 {
		out.AttemptTimeout = 0
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerProbeCalls == 0 {
		out.BreakerProbeCalls = def.BreakerProbeCalls
	}
	return out
}

// backoffAt returns the wait before attempt n+1, n starting at 1.
func (c Config) backoffAt(n int) time.Duration {
	wait := float64(c.InitialBackoff)
	for i := 1; i < n; i++ {
		wait *= c.Multiplier
		if time.Duration(wait) >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return time.Duration(wait)
}
