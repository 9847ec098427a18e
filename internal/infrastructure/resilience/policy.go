package resilience

import "time"

// RetryPolicy bounds the attempts made for one call. Backoff grows by
// Multiplier from InitialBackoff and never exceeds MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy configures the circuit breaker kept per operation name.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// InfrastructureDefaults covers the vector index and the upload event bus.
func InfrastructureDefaults() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// ModelCallDefaults is tuned for language-model calls: the fallback model
// list already provides alternatives, so each model gets fewer retries and a
// breaker that trips sooner.
func ModelCallDefaults() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    2,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     time.Second,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      4,
			FailureRatio:     0.5,
			OpenTimeout:      time.Minute,
			HalfOpenMaxCalls: 1,
		},
	}
}

// withDefaults fills zero or out-of-range values from InfrastructureDefaults.
// Breaker.Enabled is taken as given.
func (c Config) withDefaults() Config {
	def := InfrastructureDefaults()

	r := &c.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.Retry.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.Retry.InitialBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = def.Retry.MaxBackoff
	}
	r.MaxBackoff = max(r.MaxBackoff, r.InitialBackoff)
	if r.Multiplier < 1 {
		r.Multiplier = def.Retry.Multiplier
	}

	b := &c.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.Breaker.OpenTimeout
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	return c
}

// backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= p.Multiplier
		if wait >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	return min(time.Duration(wait), p.MaxBackoff)
}
