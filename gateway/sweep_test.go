package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/screwyforcepush/daily-shit-list/domain"
	"github.com/screwyforcepush/daily-shit-list/storage"
)

func newSweepGateway(t *testing.T, policy SweepPolicy) (*Gateway, *testClock) {
	t.Helper()
	mem := storage.NewMemory()
	g := New(mem, mem, policy, nil)
	clock := newTestClock()
	g.now = clock.Now
	return g, clock
}

func TestSweepUnconfiguredFails(t *testing.T) {
	g, _ := newSweepGateway(t, SweepPolicy{})
	err := applyErr(t, g, `{"op":"sweep"}`)
	var arg domain.ArgumentError
	if !errors.As(err, &arg) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
}

func TestSweepMovesStaleActiveTasks(t *testing.T) {
	g, clock := newSweepGateway(t, SweepPolicy{IdleAfter: time.Hour})
	mustApply(t, g, "cli", `{"op":"add","title":"stale work","project":"p"}`)
	mustApply(t, g, "cli", `{"op":"start","title":"stale work"}`)
	mustApply(t, g, "cli", `{"op":"add","title":"fresh work","project":"p"}`)
	mustApply(t, g, "cli", `{"op":"start","title":"fresh work"}`)

	// Age only the first task past the idle threshold.
	clock.t = clock.t.Add(2 * time.Hour)
	mustApply(t, g, "cli", `{"op":"note","title":"fresh work","text":"still on it"}`)

	resp := mustApply(t, g, "sweeper", `{"op":"sweep"}`)
	if len(resp.Swept) != 1 {
		t.Fatalf("expected one swept task, got %+v", resp.Swept)
	}

	stale := mustApply(t, g, "cli", `{"op":"get","title":"stale work"}`)
	if stale.Task.Status != domain.StatusPlanned {
		t.Fatalf("expected swept task planned, got %s", stale.Task.Status)
	}
	fresh := mustApply(t, g, "cli", `{"op":"get","title":"fresh work"}`)
	if fresh.Task.Status != domain.StatusActive {
		t.Fatalf("expected fresh task untouched, got %s", fresh.Task.Status)
	}
}

func TestSweepSkipsStatusesOutsidePolicy(t *testing.T) {
	g, clock := newSweepGateway(t, SweepPolicy{IdleAfter: time.Hour})
	mustApply(t, g, "cli", `{"op":"add","title":"old plan","project":"p"}`)

	clock.t = clock.t.Add(2 * time.Hour)
	resp := mustApply(t, g, "sweeper", `{"op":"sweep"}`)
	if len(resp.Swept) != 0 {
		t.Fatalf("planned tasks are outside the default policy, got %+v", resp.Swept)
	}
}

func TestSweepToBlockedRecordsReason(t *testing.T) {
	g, clock := newSweepGateway(t, SweepPolicy{IdleAfter: time.Hour, To: domain.StatusBlocked})
	mustApply(t, g, "cli", `{"op":"add","title":"stalled","project":"p"}`)
	mustApply(t, g, "cli", `{"op":"start","title":"stalled"}`)

	clock.t = clock.t.Add(2 * time.Hour)
	resp := mustApply(t, g, "sweeper", `{"op":"sweep"}`)
	if len(resp.Swept) != 1 {
		t.Fatalf("expected one swept task, got %+v", resp.Swept)
	}

	got := mustApply(t, g, "cli", `{"op":"get","title":"stalled"}`)
	if got.Task.Status != domain.StatusBlocked || got.Task.BlockedReason == "" {
		t.Fatalf("expected blocked with a default reason, got %+v", got.Task)
	}
}

func TestSweepCustomFromStatuses(t *testing.T) {
	g, clock := newSweepGateway(t, SweepPolicy{
		IdleAfter: time.Hour,
		From:      []domain.Status{domain.StatusActive, domain.StatusBlocked},
	})
	mustApply(t, g, "cli", `{"op":"add","title":"stuck","project":"p"}`)
	mustApply(t, g, "cli", `{"op":"block","title":"stuck","reason":"vendor outage"}`)

	clock.t = clock.t.Add(2 * time.Hour)
	resp := mustApply(t, g, "sweeper", `{"op":"sweep"}`)
	if len(resp.Swept) != 1 {
		t.Fatalf("expected blocked task swept, got %+v", resp.Swept)
	}
}
