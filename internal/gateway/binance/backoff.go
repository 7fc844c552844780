package binance

import (
	"math/rand"
	"time"
)

// backoffPolicy computes retry waits: exponential growth from minWait capped
// at maxWait, plus up to one second of jitter. Jitter keeps retries from
// synchronizing should window fetches ever run in parallel.
type backoffPolicy struct {
	minWait time.Duration
	maxWait time.Duration
	rng     *rand.Rand
}

func newBackoffPolicy(minWait, maxWait time.Duration, rng *rand.Rand) backoffPolicy {
	if minWait <= 0 {
		minWait = time.Second
	}
	if maxWait < minWait {
		maxWait = 30 * time.Second
	}
	return backoffPolicy{minWait: minWait, maxWait: maxWait, rng: rng}
}

// Delay returns the wait before retry n (1-based).
func (b backoffPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	wait := b.minWait
	for i := 1; i < n; i++ {
		wait *= 2
		if wait >= b.maxWait {
			wait = b.maxWait
			break
		}
	}
	jitter := time.Duration(b.rng.Int63n(int64(time.Second)))
	return wait + jitter
}
