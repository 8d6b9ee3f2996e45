package ar

import "fmt"

// Bounds on the tunable retry/attempt limits.
const (
	MaxConnectAttemptsMin     = 1
	MaxConnectAttemptsMax     = 10 * 48 // ten full cycles of the largest strategy table
	MaxConnectAttemptsDefault = 3 * 48

	PrmEndRetryMin     = 0
	PrmEndRetryBound   = 10
	PrmEndRetryDefault = 3

	ReleaseRetryMin     = 0
	ReleaseRetryBound   = 10
	ReleaseRetryDefault = 2
)

// Config bounds one AR's retry behavior.
type Config struct {
	// MaxConnectAttempts bounds the total number of Connect attempts across
	// all strategy cycles before the AR gives up and moves to Error.
	MaxConnectAttempts int
	// PrmEndRetryMax bounds retries of a failed PrmEnd within the current
	// strategy before moving to Error.
	PrmEndRetryMax int
	// ReleaseRetryMax bounds retries of a failed Release before forcing
	// Idle regardless of RTU acknowledgement.
	ReleaseRetryMax int
}

// Valid fills unset fields with defaults and rejects out-of-range values.
func (c *Config) Valid() error {
	if c.MaxConnectAttempts == 0 {
		c.MaxConnectAttempts = MaxConnectAttemptsDefault
	} else if c.MaxConnectAttempts < MaxConnectAttemptsMin || c.MaxConnectAttempts > MaxConnectAttemptsMax {
		return fmt.Errorf("ar: MaxConnectAttempts %d not in [%d, %d]", c.MaxConnectAttempts, MaxConnectAttemptsMin, MaxConnectAttemptsMax)
	}
	if c.PrmEndRetryMax == 0 {
		c.PrmEndRetryMax = PrmEndRetryDefault
	} else if c.PrmEndRetryMax < PrmEndRetryMin || c.PrmEndRetryMax > PrmEndRetryBound {
		return fmt.Errorf("ar: PrmEndRetryMax %d not in [%d, %d]", c.PrmEndRetryMax, PrmEndRetryMin, PrmEndRetryBound)
	}
	if c.ReleaseRetryMax == 0 {
		c.ReleaseRetryMax = ReleaseRetryDefault
	} else if c.ReleaseRetryMax < ReleaseRetryMin || c.ReleaseRetryMax > ReleaseRetryBound {
		return fmt.Errorf("ar: ReleaseRetryMax %d not in [%d, %d]", c.ReleaseRetryMax, ReleaseRetryMin, ReleaseRetryBound)
	}
	return nil
}
