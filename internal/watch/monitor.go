package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"quill/internal/config"
	"quill/internal/logging"
)

// SyncFunc runs one full pipeline pass.
type SyncFunc func(ctx context.Context) error

type probeFunc func(ctx context.Context, addr string, timeout time.Duration) bool

// Monitor owns the availability state machine. Reachability and the last-sync
// timestamp live only in memory; a restart always begins as unavailable.
type Monitor struct {
	addr         string
	pollInterval time.Duration
	minDelay     time.Duration
	probeTimeout time.Duration
	syncFn       SyncFunc
	logger       *slog.Logger

	probe probeFunc
	now   func() time.Time

	mu        sync.Mutex
	running   bool
	reachable bool
	lastSync  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor constructs a monitor probing the device address from cfg.
func NewMonitor(cfg *config.Config, syncFn SyncFunc, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := cfg.CheckInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	probeTimeout := cfg.ProbeTimeout()
	if probeTimeout <= 0 {
		probeTimeout = time.Second
	}
	return &Monitor{
		addr:         fmt.Sprintf("%s:%d", cfg.Device.Host, cfg.Device.Port),
		pollInterval: interval,
		minDelay:     cfg.SyncDelay(),
		probeTimeout: probeTimeout,
		syncFn:       syncFn,
		logger:       logging.WithComponent(logger, "watch"),
		probe:        dialProbe,
		now:          time.Now,
	}
}

// Start launches the poll loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("watch monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Reachable reports the state observed on the most recent poll.
func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reachable
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.logger.Info("watching for device",
		logging.String("address", m.addr),
		logging.Duration("poll_interval", m.pollInterval),
		logging.Duration("sync_delay", m.minDelay))

	m.poll()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	ctx := m.ctx
	if ctx == nil {
		return
	}

	up := m.probe(ctx, m.addr, m.probeTimeout)

	m.mu.Lock()
	wasReachable := m.reachable
	m.reachable = up
	lastSync := m.lastSync
	m.mu.Unlock()

	if !up {
		if wasReachable {
			m.logger.Info("device left the network")
		}
		return
	}
	if !wasReachable {
		m.logger.Info("device detected on network")
	}
	if m.now().Sub(lastSync) <= m.minDelay && !lastSync.IsZero() {
		return
	}

	m.logger.Info("starting sync")
	if err := m.syncFn(ctx); err != nil {
		// Failures do not change the state machine; the next tick retries.
		m.logger.Error("sync failed", logging.Error(err))
		return
	}

	m.mu.Lock()
	m.lastSync = m.now()
	m.mu.Unlock()
	m.logger.Info("sync completed")
}

func dialProbe(ctx context.Context, addr string, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
