package retrain

import (
	"context"
	"fmt"

	"skill-recommender/internal/queue"
)

// InlineDispatcher hands requests to an in-process Worker.
type InlineDispatcher struct {
	Worker *Worker
}

func (d InlineDispatcher) Dispatch(_ context.Context, reason string) error {
	d.Worker.Request(reason)
	return nil
}

// QueueDispatcher publishes requests for a worker process to pick up.
type QueueDispatcher struct {
	Queue queue.Client
	Model string
}

func (d QueueDispatcher) Dispatch(ctx context.Context, reason string) error {
	if err := d.Queue.Send(ctx, queue.NewRetrainMessage(d.Model, reason)); err != nil {
		return fmt.Errorf("enqueue retrain: %w", err)
	}
	return nil
}
