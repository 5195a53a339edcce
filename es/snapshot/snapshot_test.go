package snapshot

import (
	"testing"
	"time"
)

func TestPolicy_ShouldTake(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := Policy{EveryNEvents: 100, MaxAge: 10 * time.Minute}

	tests := []struct {
		name           string
		lastVersion    int64
		lastTakenAt    time.Time
		currentVersion int64
		want           bool
	}{
		{"below both thresholds", 100, now.Add(-time.Minute), 150, false},
		{"event threshold crossed", 100, now.Add(-time.Minute), 200, true},
		{"event threshold exceeded", 100, now.Add(-time.Minute), 500, true},
		{"age threshold crossed", 100, now.Add(-11 * time.Minute), 101, true},
		{"stale but no new events", 100, now.Add(-time.Hour), 100, false},
		{"snapshot ahead of stream", 200, now.Add(-time.Hour), 150, false},
		{"no snapshot yet, few events", 0, time.Time{}, 50, false},
		{"no snapshot yet, many events", 0, time.Time{}, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.ShouldTake(tt.lastVersion, tt.lastTakenAt, tt.currentVersion, now)
			if got != tt.want {
				t.Errorf("ShouldTake(%d, %v, %d) = %v, want %v",
					tt.lastVersion, tt.lastTakenAt, tt.currentVersion, got, tt.want)
			}
		})
	}
}

func TestPolicy_DisabledThresholds(t *testing.T) {
	now := time.Now().UTC()

	// Zero EveryNEvents disables the event trigger.
	p := Policy{EveryNEvents: 0, MaxAge: 10 * time.Minute}
	if p.ShouldTake(0, time.Time{}, 1_000_000, now) {
		t.Error("event trigger should be disabled when EveryNEvents is 0")
	}

	// Zero MaxAge disables the age trigger.
	p = Policy{EveryNEvents: 100, MaxAge: 0}
	if p.ShouldTake(10, now.Add(-24*time.Hour), 11, now) {
		t.Error("age trigger should be disabled when MaxAge is 0")
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.EveryNEvents != 1000 {
		t.Errorf("expected EveryNEvents 1000, got %d", p.EveryNEvents)
	}
	if p.MaxAge != 10*time.Minute {
		t.Errorf("expected MaxAge 10m, got %v", p.MaxAge)
	}
}
