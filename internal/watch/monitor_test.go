package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"quill/internal/config"
)

func newTestMonitor(t *testing.T, syncFn SyncFunc) *Monitor {
	t.Helper()
	cfg := config.Default()
	cfg.Watch.CheckIntervalSeconds = 1
	cfg.Watch.SyncDelayMinutes = 60
	m := NewMonitor(&cfg, syncFn, nil)
	m.ctx = context.Background()
	return m
}

func TestPollTriggersSyncWhenDeviceAppears(t *testing.T) {
	var syncs int
	m := newTestMonitor(t, func(context.Context) error {
		syncs++
		return nil
	})
	m.probe = func(context.Context, string, time.Duration) bool { return true }

	m.poll()
	if !m.Reachable() {
		t.Fatal("monitor must observe the device as reachable")
	}
	if syncs != 1 {
		t.Fatalf("expected 1 sync on first availability, got %d", syncs)
	}
}

func TestPollHonorsMinimumSyncDelay(t *testing.T) {
	var syncs int
	m := newTestMonitor(t, func(context.Context) error {
		syncs++
		return nil
	})
	m.probe = func(context.Context, string, time.Duration) bool { return true }

	base := time.Now()
	clock := base
	m.now = func() time.Time { return clock }

	m.poll()
	clock = base.Add(30 * time.Minute)
	m.poll()
	if syncs != 1 {
		t.Fatalf("sync ran again inside the delay window: %d", syncs)
	}

	clock = base.Add(2 * time.Hour)
	m.poll()
	if syncs != 2 {
		t.Fatalf("sync must resume once the delay elapses, got %d", syncs)
	}
}

func TestPollSyncFailureKeepsLoopAlive(t *testing.T) {
	var calls int
	m := newTestMonitor(t, func(context.Context) error {
		calls++
		return errors.New("device hung up mid-download")
	})
	m.probe = func(context.Context, string, time.Duration) bool { return true }

	m.poll()
	m.poll()
	if calls != 2 {
		t.Fatalf("failed sync must be retried on the next tick, got %d calls", calls)
	}
	if !m.Reachable() {
		t.Fatal("sync failure must not flip the availability state")
	}
}

func TestPollUnavailableDeviceDoesNotSync(t *testing.T) {
	var syncs int
	m := newTestMonitor(t, func(context.Context) error {
		syncs++
		return nil
	})
	m.probe = func(context.Context, string, time.Duration) bool { return false }

	m.poll()
	if m.Reachable() {
		t.Fatal("unreachable device reported as reachable")
	}
	if syncs != 0 {
		t.Fatal("sync must not run while the device is unreachable")
	}
}

func TestStartStop(t *testing.T) {
	probed := make(chan struct{}, 8)
	m := newTestMonitor(t, func(context.Context) error { return nil })
	m.pollInterval = 5 * time.Millisecond
	m.probe = func(context.Context, string, time.Duration) bool {
		select {
		case probed <- struct{}{}:
		default:
		}
		return false
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail while running")
	}

	select {
	case <-probed:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never polled")
	}
	m.Stop()
	m.Stop()
}
