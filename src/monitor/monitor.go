// Package monitor periodically logs the host resources a long image build
// tends to exhaust: disk space under the daemon root, memory and CPU.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultInterval is the sampling interval used when none is configured.
const DefaultInterval = 20 * time.Second

// Sample is one reading of host resources.
type Sample struct {
	Time       time.Time
	DiskFree   uint64
	DiskKnown  bool
	MemFree    uint64
	SwapFree   uint64
	CPUPercent float64
}

func (s Sample) String() string {
	diskFree := "Unknown"
	if s.DiskKnown {
		diskFree = units.BytesSize(float64(s.DiskFree))
	}
	return fmt.Sprintf("[%s] [Available disk: %s] [Available memory: %s physical, %s virtual] [CPU usage: %.2f%%]",
		s.Time.Format(time.DateTime),
		diskFree,
		units.BytesSize(float64(s.MemFree)),
		units.BytesSize(float64(s.SwapFree)),
		s.CPUPercent,
	)
}

// Sampler takes a Sample.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// HostSampler reads resources of the local host. Disk space is reported for
// the filesystem holding RootDir, or as unknown when RootDir is not
// accessible, as with a daemon running inside a VM.
type HostSampler struct {
	RootDir string
}

func (h HostSampler) Sample(ctx context.Context) (Sample, error) {
	s := Sample{Time: time.Now().Truncate(time.Second)}

	if h.RootDir != "" {
		if _, err := os.Stat(h.RootDir); err == nil {
			if usage, err := disk.UsageWithContext(ctx, h.RootDir); err == nil {
				s.DiskFree, s.DiskKnown = usage.Free, true
			}
		}
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("reading memory: %w", err)
	}
	s.MemFree = vm.Free

	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		s.SwapFree = swap.Free
	}

	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	return s, nil
}

// Monitor logs a Sample every interval until stopped.
type Monitor struct {
	sampler  Sampler
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New returns a stopped Monitor. A zero interval selects DefaultInterval.
func New(sampler Sampler, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{sampler: sampler, interval: interval, logger: logger}
}

// Start launches the sampling loop. Calling Start twice has no effect.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// The first CPU reading primes the counters.
	_, _ = cpu.PercentWithContext(ctx, 0, false)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		s, err := m.sampler.Sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("resource sample failed", "err", err)
		} else {
			m.logger.Info(s.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the loop and waits for it to exit. It is safe to call more
// than once and before Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		cancel, done := m.cancel, m.done
		if done == nil {
			// Never started; make a later Start a no-op.
			m.done = make(chan struct{})
			close(m.done)
		}
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
	})
}
