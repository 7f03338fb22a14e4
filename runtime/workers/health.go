package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthWorker logs the process's own resource usage at a fixed interval.
// It is purely diagnostic; failures to read stats never stop the worker.
type HealthWorker struct {
	log      *slog.Logger
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mem, err := p.MemoryInfo()
			if err != nil {
				w.log.Error("Failed to collect memory stats", "error", err)
				continue
			}
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Failed to collect cpu stats", "error", err)
				continue
			}
			w.log.Info("Health", "rss_bytes", mem.RSS, "cpu_percent", cpu)
		}
	}
}
