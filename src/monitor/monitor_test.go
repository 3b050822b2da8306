package monitor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSampler struct {
	n   atomic.Int32
	err error
}

func (c *countingSampler) Sample(context.Context) (Sample, error) {
	c.n.Add(1)
	return Sample{Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), MemFree: 1 << 30, CPUPercent: 12.5}, c.err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSampleString(t *testing.T) {
	s := Sample{
		Time:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DiskFree:   10 * 1024 * 1024 * 1024,
		DiskKnown:  true,
		MemFree:    512 * 1024 * 1024,
		SwapFree:   0,
		CPUPercent: 7.5,
	}
	want := "[2024-01-02 03:04:05] [Available disk: 10GiB] [Available memory: 512MiB physical, 0B virtual] [CPU usage: 7.50%]"
	if got := s.String(); got != want {
		t.Errorf("String() = %q\nwant       %q", got, want)
	}

	s.DiskKnown = false
	if !strings.Contains(s.String(), "[Available disk: Unknown]") {
		t.Errorf("String() = %q", s.String())
	}
}

func TestMonitorLogsAndStops(t *testing.T) {
	var out syncBuffer
	sampler := &countingSampler{}
	m := New(sampler, 5*time.Millisecond, slog.New(slog.NewTextHandler(&out, nil)))

	m.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for sampler.n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()

	if sampler.n.Load() < 3 {
		t.Fatalf("sampled %d times", sampler.n.Load())
	}
	after := sampler.n.Load()
	time.Sleep(20 * time.Millisecond)
	if sampler.n.Load() != after {
		t.Error("sampling continued after Stop")
	}
	if !strings.Contains(out.String(), "CPU usage: 12.50%") {
		t.Errorf("log output: %s", out.String())
	}

	// Second Stop is a no-op.
	m.Stop()
}

func TestMonitorStopBeforeStart(t *testing.T) {
	sampler := &countingSampler{}
	m := New(sampler, time.Millisecond, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	m.Stop()
	m.Start(context.Background())
	m.Stop()
	time.Sleep(5 * time.Millisecond)
	if sampler.n.Load() != 0 {
		t.Errorf("stopped monitor sampled %d times", sampler.n.Load())
	}
}

func TestMonitorSampleErrorsAreLogged(t *testing.T) {
	var out syncBuffer
	sampler := &countingSampler{err: errors.New("boom")}
	m := New(sampler, time.Hour, slog.New(slog.NewTextHandler(&out, nil)))
	m.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "boom") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	if !strings.Contains(out.String(), "resource sample failed") {
		t.Errorf("log output: %s", out.String())
	}
}

func TestMonitorStopsWithContext(t *testing.T) {
	sampler := &countingSampler{}
	m := New(sampler, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the context was cancelled")
	}
}

func TestHostSamplerUnknownDisk(t *testing.T) {
	s, err := HostSampler{RootDir: "/nonexistent/ue4-docker-root"}.Sample(context.Background())
	if err != nil {
		t.Skipf("host memory not readable: %v", err)
	}
	if s.DiskKnown {
		t.Error("inaccessible root dir reported disk space")
	}
}
