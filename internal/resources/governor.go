// Package resources periodically samples process CPU and memory usage and
// flips a profiling_enabled flag when usage breaches its configured budget
// for enough consecutive samples.
package resources

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/failopen"
	"github.com/sidecar-io/sidecar/internal/metrics"
)

// Sample is one CPU/memory observation of the running process.
type Sample struct {
	CPUPercent float64
	MemoryMB   float64
}

// sampleFunc abstracts the process-sampling call so tests can inject
// synthetic breach sequences without spawning real load.
type sampleFunc func() (Sample, error)

// Governor runs the periodic resource-sampling loop described in §4.6: a
// breach sustained for breach_windows consecutive samples disables
// profiling; recovery sustained for the same window re-enables it.
type Governor struct {
	snapshot *config.Snapshot
	metrics  *metrics.Registry
	guard    *failopen.Guard
	logger   *slog.Logger
	sample   sampleFunc

	profilingEnabled atomic.Bool
	breachStreak     int
	recoveryStreak   int
}

// New constructs a Governor sampling the current OS process.
func New(snapshot *config.Snapshot, reg *metrics.Registry, guard *failopen.Guard, logger *slog.Logger) (*Governor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	g := &Governor{
		snapshot: snapshot,
		metrics:  reg,
		guard:    guard,
		logger:   logger,
		sample:   processSampler(proc),
	}
	g.profilingEnabled.Store(true)

	return g, nil
}

func processSampler(proc *process.Process) sampleFunc {
	return func() (Sample, error) {
		cpuPercent, err := proc.Percent(0)
		if err != nil {
			return Sample{}, err
		}

		memInfo, err := proc.MemoryInfo()
		if err != nil {
			return Sample{}, err
		}

		return Sample{
			CPUPercent: cpuPercent,
			MemoryMB:   float64(memInfo.RSS) / (1024 * 1024),
		}, nil
	}
}

// ProfilingEnabled reports whether expensive observation is currently
// permitted. Other components gate profiling/payload-capture work on this.
func (g *Governor) ProfilingEnabled() bool {
	return g.profilingEnabled.Load()
}

// Run samples on Resources.SampleIntervalMs until ctx is canceled. The
// interval is re-read from the snapshot before every sample, so a reload
// takes effect on the next tick without restarting the loop.
func (g *Governor) Run(ctx context.Context) {
	for {
		interval := time.Duration(g.snapshot.Load().Resources.SampleIntervalMs) * time.Millisecond

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			g.guard.Run("resource_sample", func() error {
				g.tick()
				return nil
			})
		}
	}
}

func (g *Governor) tick() {
	s, err := g.sample()
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("resource sample failed", slog.String("error", err.Error()))
		}
		return
	}

	if g.metrics != nil {
		g.metrics.CPUUsage.Set(s.CPUPercent)
		g.metrics.MemoryUsage.Set(s.MemoryMB)
	}

	cfg := g.snapshot.Load().Resources
	overBudget := s.CPUPercent > cfg.MaxCPUPercent || s.MemoryMB > float64(cfg.MaxMemoryMB)
	recovered := s.CPUPercent < 0.8*cfg.MaxCPUPercent && s.MemoryMB < 0.8*float64(cfg.MaxMemoryMB)

	if overBudget {
		g.breachStreak++
		g.recoveryStreak = 0
	} else if recovered {
		g.recoveryStreak++
		g.breachStreak = 0
	} else {
		g.breachStreak = 0
		g.recoveryStreak = 0
	}

	if g.profilingEnabled.Load() && g.breachStreak >= cfg.BreachWindows {
		g.profilingEnabled.Store(false)
		g.breachStreak = 0
		if g.logger != nil {
			g.logger.Warn("profiling auto-disabled on resource breach",
				slog.String("sidecar_event", "profiling_auto_disabled"),
				slog.Float64("cpu_percent", s.CPUPercent),
				slog.Float64("memory_mb", s.MemoryMB),
			)
		}
	}

	if !g.profilingEnabled.Load() && g.recoveryStreak >= cfg.BreachWindows {
		g.profilingEnabled.Store(true)
		g.recoveryStreak = 0
		if g.logger != nil {
			g.logger.Info("profiling auto-enabled after recovery",
				slog.String("sidecar_event", "profiling_auto_enabled"),
				slog.Float64("cpu_percent", s.CPUPercent),
				slog.Float64("memory_mb", s.MemoryMB),
			)
		}
	}

	if g.metrics != nil {
		if g.profilingEnabled.Load() {
			g.metrics.ProfilingEnabled.Set(1)
		} else {
			g.metrics.ProfilingEnabled.Set(0)
		}
	}
}
