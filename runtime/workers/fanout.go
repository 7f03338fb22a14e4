package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/runtime"
)

// DeliveryFanout pushes each routed delivery to its target connection sinks
// and hands every delivery to the permanent sinks (disk, search index,
// projections), which filter by event type themselves.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering across conversations, durability, or retries. A slow or dead sink
// is abandoned after the per-sink timeout; it never stalls other recipients.
type DeliveryFanout struct {
	log         *slog.Logger
	deliveries  <-chan runtime.Delivery
	permanent   []contract.EventSink
	sinkTimeout time.Duration
}

func NewDeliveryFanout(log *slog.Logger, deliveries <-chan runtime.Delivery,
	sinkTimeout time.Duration, permanent ...contract.EventSink) *DeliveryFanout {
	return &DeliveryFanout{
		log:         log,
		deliveries:  deliveries,
		permanent:   permanent,
		sinkTimeout: sinkTimeout,
	}
}

func (w *DeliveryFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping delivery fanout")
			return ctx.Err()
		case d, ok := <-w.deliveries:
			if !ok {
				return nil
			}
			w.fanout(ctx, d)
		}
	}
}

func (w *DeliveryFanout) fanout(ctx context.Context, d runtime.Delivery) {
	for _, sink := range d.Targets {
		w.push(ctx, sink, d)
	}
	for _, sink := range w.permanent {
		w.push(ctx, sink, d)
	}
}

func (w *DeliveryFanout) push(ctx context.Context, sink contract.EventSink, d runtime.Delivery) {
	pushCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(pushCtx, d.Event); err != nil {
		// Persistence and delivery are independent concerns: a failing sink
		// is logged and skipped, the remaining recipients still get the event.
		w.log.Error("Sink consume failed", "event", d.Event, "error", err)
	}
}
