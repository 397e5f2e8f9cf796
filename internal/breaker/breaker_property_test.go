// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package breaker

import (
	"testing"

	"pgregory.net/rapid"
)

// For any sequence of RecordSuccess/RecordFailure calls against a breaker
// with no elapsed timeout, the breaker never opens before its net failure
// tally (each failure adds one, each success removes one, never below
// zero) reaches FailureThreshold, and always opens once it does.
func TestBreakerNeverOpensBeforeThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.IntRange(1, 10).Draw(rt, "threshold")
		b := New("provider-under-test", Config{FailureThreshold: threshold})

		outcomes := rapid.SliceOfN(rapid.Bool(), 0, 50).Draw(rt, "outcomes")
		netFailures := 0
		for _, failed := range outcomes {
			if b.State() == Open {
				break
			}
			if failed {
				netFailures++
				b.RecordFailure()
			} else {
				if netFailures > 0 {
					netFailures--
				}
				b.RecordSuccess()
			}
			if netFailures < threshold && b.State() == Open {
				rt.Fatalf("breaker opened at net failure tally %d, threshold is %d", netFailures, threshold)
			}
			if netFailures >= threshold && b.State() != Open {
				rt.Fatalf("breaker still %v at net failure tally %d, threshold is %d", b.State(), netFailures, threshold)
			}
		}
	})
}

// A breaker that never records a failure stays CLOSED regardless of how
// many successes it observes.
func TestBreakerStaysClosedWithOnlySuccesses(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := New("provider-under-test", Config{FailureThreshold: rapid.IntRange(1, 10).Draw(rt, "threshold")})
		n := rapid.IntRange(0, 50).Draw(rt, "successCount")
		for i := 0; i < n; i++ {
			b.RecordSuccess()
		}
		if b.State() != Closed {
			rt.Fatalf("breaker left CLOSED after %d successes, got %v", n, b.State())
		}
	})
}
