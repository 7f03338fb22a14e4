package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/runtime"
)

// TypingSweeper periodically asks the coordinator to drop typing entries
// that were never explicitly stopped, so a lost stop event cannot leave a
// stuck "is typing" indicator. The sweep itself runs on the coordinator
// goroutine; this worker only ticks.
type TypingSweeper struct {
	log         *slog.Logger
	coordinator *runtime.Coordinator
	interval    time.Duration
}

func NewTypingSweeper(log *slog.Logger, coordinator *runtime.Coordinator, interval time.Duration) *TypingSweeper {
	return &TypingSweeper{log: log, coordinator: coordinator, interval: interval}
}

func (w *TypingSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping typing sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.coordinator.Dispatch(runtime.SweepTypingCommand{})
		}
	}
}
