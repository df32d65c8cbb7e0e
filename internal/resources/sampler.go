package resources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Sampler is the capability interface the manager depends on for resource
// telemetry, so tests can substitute a fake instead of touching /proc.
type Sampler interface {
	Sample(ctx context.Context, pid int32) (Sample, error)
}

// ProcessSampler samples one process's resource usage using gopsutil; the
// usage of that process's children is not included. It
// keeps the previous IO counters per PID so it can report IO throughput
// (bytes/sec) rather than a lifetime cumulative counter, which is what every
// consumer of resources.Sample actually wants.
type ProcessSampler struct {
	mu     sync.Mutex
	lastIO map[int32]ioSnapshot
}

type ioSnapshot struct {
	at         time.Time
	readBytes  uint64
	writeBytes uint64
}

// NewProcessSampler creates a ProcessSampler ready to use.
func NewProcessSampler() *ProcessSampler {
	return &ProcessSampler{lastIO: make(map[int32]ioSnapshot)}
}

// Sample reads the current CPU percent, RSS, IO throughput, and thread count
// for pid. CPUPercent is gopsutil's own since-last-call delta; IO throughput
// is computed against this Sampler's own previous reading for pid.
func (s *ProcessSampler) Sample(ctx context.Context, pid int32) (Sample, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return Sample{}, fmt.Errorf("resources: open process %d: %w", pid, err)
	}

	now := time.Now()
	out := Sample{Timestamp: now}

	cpuPct, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("resources: cpu percent for pid %d: %w", pid, err)
	}
	out.CPUPercent = cpuPct

	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		out.RSSBytes = mem.RSS
	}

	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		out.Threads = threads
	}

	if io, err := proc.IOCountersWithContext(ctx); err == nil && io != nil {
		out.IOReadBps, out.IOWriteBps = s.ioRate(pid, now, io.ReadBytes, io.WriteBytes)
	}

	return out, nil
}

func (s *ProcessSampler) ioRate(pid int32, now time.Time, readBytes, writeBytes uint64) (readBps, writeBps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.lastIO[pid]
	s.lastIO[pid] = ioSnapshot{at: now, readBytes: readBytes, writeBytes: writeBytes}
	if !ok {
		return 0, 0
	}

	elapsed := now.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0, 0
	}

	readDelta := diffUint64(readBytes, prev.readBytes)
	writeDelta := diffUint64(writeBytes, prev.writeBytes)
	return float64(readDelta) / elapsed, float64(writeDelta) / elapsed
}

func diffUint64(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

// Forget drops any cached IO snapshot for pid. Callers invoke this once an
// agent's process exits so a future PID reuse does not compute a bogus rate
// against a stale snapshot.
func (s *ProcessSampler) Forget(pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastIO, pid)
}
