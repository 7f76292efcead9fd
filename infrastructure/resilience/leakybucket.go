package resilience

import (
	"sync"
	"time"
)

// LeakyBucket smooths bursty work into a steady outflow rate. Level is
// tracked in milli-units so sub-unit leak rates (e.g. 0.5 req/sec) remain
// exact between calls.
type LeakyBucket struct {
	mu           sync.Mutex
	capacityMilli int64
	leakPerSecMilli int64
	levelMilli    int64
	lastLeak      time.Time
}

// NewLeakyBucket creates a LeakyBucket with the given capacity and leak
// rate (units drained per second).
func NewLeakyBucket(capacity, leakPerSecond float64) *LeakyBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if leakPerSecond <= 0 {
		leakPerSecond = 1
	}
	return &LeakyBucket{
		capacityMilli:   int64(capacity * 1000),
		leakPerSecMilli: int64(leakPerSecond * 1000),
		lastLeak:        time.Now(),
	}
}

// Allow attempts to add one unit to the bucket, leaking first based on
// elapsed time. Returns false if the bucket would overflow.
func (lb *LeakyBucket) Allow() bool {
	return lb.AllowN(1)
}

// AllowN attempts to add n units to the bucket.
func (lb *LeakyBucket) AllowN(n float64) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(lb.lastLeak)
	if elapsed > 0 {
		leaked := elapsed.Milliseconds() * lb.leakPerSecMilli / 1000
		lb.levelMilli -= leaked
		if lb.levelMilli < 0 {
			lb.levelMilli = 0
		}
		lb.lastLeak = now
	}

	addMilli := int64(n * 1000)
	if lb.levelMilli+addMilli > lb.capacityMilli {
		return false
	}
	lb.levelMilli += addMilli
	return true
}

// Level returns the current bucket level as a float.
func (lb *LeakyBucket) Level() float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return float64(lb.levelMilli) / 1000
}
