package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestValidateExprRejectsGarbage(t *testing.T) {
	if err := ValidateExpr("not a cron expression"); err == nil {
		t.Fatal("expected error for malformed expression")
	}
	if err := ValidateExpr("@every 5s"); err != nil {
		t.Fatalf("expected @every to validate, got %v", err)
	}
}

func TestScheduleFires(t *testing.T) {
	s := New()
	s.Start()
	defer s.Shutdown()

	var mu sync.Mutex
	var fired []string
	done := make(chan struct{})

	err := s.Schedule("alpha", "@every 100ms", func(name string) {
		mu.Lock()
		fired = append(fired, name)
		n := len(fired)
		mu.Unlock()
		if n == 1 {
			close(done)
		}
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fired) == 0 || fired[0] != "alpha" {
		t.Fatalf("fired = %v", fired)
	}
}

func TestUnscheduleStopsFutureFires(t *testing.T) {
	s := New()
	s.Start()
	defer s.Shutdown()

	var mu sync.Mutex
	count := 0

	if err := s.Schedule("beta", "@every 50ms", func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	time.Sleep(120 * time.Millisecond)
	s.Unschedule("beta")

	mu.Lock()
	seenBeforeStop := count
	mu.Unlock()

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count > seenBeforeStop+1 {
		t.Fatalf("expected no further fires after unschedule, count went from %d to %d", seenBeforeStop, count)
	}
}

func TestScheduleReplacesExistingEntry(t *testing.T) {
	s := New()
	s.Start()
	defer s.Shutdown()

	if err := s.Schedule("gamma", "@every 1h", func(string) {}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Schedule("gamma", "@every 1h", func(string) {}); err != nil {
		t.Fatalf("re-schedule: %v", err)
	}
	if len(s.entries) != 1 {
		t.Fatalf("expected a single entry for gamma, got %d", len(s.entries))
	}
}
