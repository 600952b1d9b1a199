package restart

import (
	"testing"
	"time"
)

func intp(i int) *int         { return &i }
func u32p(u uint32) *uint32 { return &u }

func TestNeverPolicyNeverRestarts(t *testing.T) {
	p := Policy{Kind: Never}
	if ShouldRestart(p, intp(1), 0) {
		t.Fatal("never policy should not restart on failure")
	}
	if ShouldRestart(p, intp(0), 0) {
		t.Fatal("never policy should not restart on success")
	}
	if ShouldRestart(p, nil, 0) {
		t.Fatal("never policy should not restart on signal death")
	}
}

func TestAlwaysPolicyRestartsRegardlessOfExitCode(t *testing.T) {
	p := Policy{Kind: Always, BackoffBase: 1, BackoffMax: 300}
	if !ShouldRestart(p, intp(0), 0) {
		t.Fatal("always policy should restart on clean exit")
	}
	if !ShouldRestart(p, intp(1), 0) {
		t.Fatal("always policy should restart on failure")
	}
	if !ShouldRestart(p, nil, 100) {
		t.Fatal("always policy with no cap should restart at any count")
	}
}

func TestAlwaysPolicyRespectsMaxRetries(t *testing.T) {
	p := Policy{Kind: Always, MaxRetries: u32p(3), BackoffBase: 1, BackoffMax: 300}
	if !ShouldRestart(p, intp(1), 2) {
		t.Fatal("restart_count 2 < cap 3 should restart")
	}
	if ShouldRestart(p, intp(1), 3) {
		t.Fatal("restart_count 3 >= cap 3 should not restart")
	}
}

func TestOnFailureRestartsOnlyOnFailure(t *testing.T) {
	p := Policy{Kind: OnFailure, BackoffBase: 1, BackoffMax: 300}
	if ShouldRestart(p, intp(0), 0) {
		t.Fatal("on_failure should not restart on exit code 0")
	}
	if !ShouldRestart(p, intp(1), 0) {
		t.Fatal("on_failure should restart on nonzero exit")
	}
	if !ShouldRestart(p, nil, 0) {
		t.Fatal("on_failure should treat signal death as failure")
	}
}

func TestBackoffLaw(t *testing.T) {
	p := Policy{Kind: Always, BackoffBase: 1, BackoffMax: 300}
	for n := uint32(0); n < 10; n++ {
		lower := minF(1*pow2(n), 300)
		upper := 1.1 * lower
		d := BackoffDuration(p, n)
		secs := d.Seconds()
		if secs < lower-1e-9 || secs > upper+1e-9 {
			t.Errorf("backoff(%d) = %v, want in [%v, %v]", n, secs, lower, upper)
		}
	}
}

func TestBackoffNeverIsZero(t *testing.T) {
	p := Policy{Kind: Never}
	if d := BackoffDuration(p, 5); d != 0 {
		t.Fatalf("never policy backoff = %v, want 0", d)
	}
	_ = time.Second
}

func pow2(n uint32) float64 {
	r := 1.0
	for i := uint32(0); i < n; i++ {
		r *= 2
	}
	return r
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
