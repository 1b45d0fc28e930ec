// File: core/connection/backoff.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// waitWhile is the adaptive backoff BlockingSend uses to wait for receive
// channel space: a short run of pure spins (cheap while contention is brief)
// followed by exponentially growing sleeps capped at a few milliseconds.

package connection

import (
	"runtime"
	"time"
)

const (
	backoffSpinLimit = 64
	backoffInitial   = time.Microsecond
	backoffCap       = 4 * time.Millisecond
)

// waitWhile blocks the calling goroutine until cond returns false.
func waitWhile(cond func() bool) {
	spins := 0
	sleep := backoffInitial
	for cond() {
		if spins < backoffSpinLimit {
			runtime.Gosched()
			spins++
			continue
		}
		time.Sleep(sleep)
		if sleep < backoffCap {
			sleep *= 2
			if sleep > backoffCap {
				sleep = backoffCap
			}
		}
	}
}
