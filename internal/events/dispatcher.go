package events

import (
	"context"
	"sync"
	"time"

	"resourcehub/pkg/logger"
)

// Emitter is what services see: a non-blocking, post-commit event sink.
type Emitter interface {
	Emit(evt Event)
}

// Dispatcher fans events out to the publisher without blocking the caller.
// A slow or failing gateway never rolls back or delays a booking decision;
// publish failures are logged and the DLQ handles redelivery.
type Dispatcher struct {
	publisher Publisher
	log       *logger.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(publisher Publisher, log *logger.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		log:       log,
		timeout:   timeout,
	}
}

func (d *Dispatcher) Emit(evt Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.publisher.Publish(ctx, evt); err != nil {
			d.log.Error("Failed to publish event",
				"event_type", evt.Type,
				"key", evt.Key,
				"error", err,
			)
		}
	}()
}

// Close waits for in-flight publishes and closes the publisher.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	return d.publisher.Close()
}
