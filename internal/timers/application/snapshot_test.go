package application

import (
	"context"
	"testing"
	"time"

	timermemory "playtrack/internal/timers/infrastructure/memory"
)

func TestSnapshotFingerprintStableAcrossReads(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Create(context.Background(), CreateInput{
		LocationID:      "loc-1",
		ServiceID:       "svc-1",
		DurationMinutes: 60,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	snapshots, err := NewSnapshotService(f.timerRepo, "tenant-a")
	if err != nil {
		t.Fatalf("snapshot service: %v", err)
	}

	first, unchanged, err := snapshots.Get(context.Background(), "loc-1", "")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if unchanged {
		t.Fatal("first read can never be unchanged")
	}
	if len(first.Timers) != 1 {
		t.Fatalf("expected 1 timer, got %d", len(first.Timers))
	}

	second, unchanged, err := snapshots.Get(context.Background(), "loc-1", first.Fingerprint)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !unchanged {
		t.Fatal("expected unchanged for matching fingerprint")
	}
	if second.Fingerprint != first.Fingerprint {
		t.Fatal("fingerprint must be stable while the set is untouched")
	}
	if len(second.Timers) != 0 {
		t.Fatal("unchanged response must skip the timer list")
	}
}

func TestSnapshotFingerprintChangesOnMutation(t *testing.T) {
	f := newFixture(t)
	timer, err := f.service.Create(context.Background(), CreateInput{
		LocationID:      "loc-1",
		ServiceID:       "svc-1",
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snapshots, err := NewSnapshotService(f.timerRepo, "tenant-a")
	if err != nil {
		t.Fatalf("snapshot service: %v", err)
	}
	first, _, err := snapshots.Get(context.Background(), "loc-1", "")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}

	f.clock.now = f.clock.now.Add(time.Minute)
	if _, err := f.service.Extend(context.Background(), timer.ID, 15); err != nil {
		t.Fatalf("extend: %v", err)
	}

	second, unchanged, err := snapshots.Get(context.Background(), "loc-1", first.Fingerprint)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if unchanged {
		t.Fatal("extension must invalidate the fingerprint")
	}
	if second.Fingerprint == first.Fingerprint {
		t.Fatal("fingerprint must change after a mutation")
	}
	if len(second.Timers) != 1 {
		t.Fatalf("expected 1 timer, got %d", len(second.Timers))
	}
}

func TestSnapshotSeparatesLocations(t *testing.T) {
	repo := timermemory.NewTimerRepository()
	snapshots, err := NewSnapshotService(repo, "tenant-a")
	if err != nil {
		t.Fatalf("snapshot service: %v", err)
	}

	a, _, err := snapshots.Get(context.Background(), "loc-a", "")
	if err != nil {
		t.Fatalf("get loc-a: %v", err)
	}
	b, _, err := snapshots.Get(context.Background(), "loc-b", "")
	if err != nil {
		t.Fatalf("get loc-b: %v", err)
	}
	if a.Fingerprint == b.Fingerprint {
		t.Fatal("different locations must not share fingerprints")
	}
}
