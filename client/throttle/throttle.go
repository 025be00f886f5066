// Package throttle computes pauses that keep a transfer at or below a target rate.
package throttle

import "time"

// Delay returns how long to pause so that sent bytes since start do not exceed
// limit bytes per second. A limit of zero or less is unlimited and never pauses.
func Delay(start, now time.Time, sent, limit int64) time.Duration {
	if limit <= 0 || sent <= 0 {
		return 0
	}
	expected := Expected(sent, limit)
	elapsed := now.Sub(start)
	if expected <= elapsed {
		return 0
	}
	return expected - elapsed
}

// Expected is the time sending sent bytes takes at exactly limit bytes per second
func Expected(sent, limit int64) time.Duration {
	if limit <= 0 {
		return 0
	}
	// Whole seconds first, sent*1e9 overflows int64 past ~9GB.
	whole := sent / limit
	rem := sent % limit
	return time.Duration(whole)*time.Second +
		time.Duration(float64(rem)*float64(time.Second)/float64(limit))
}
