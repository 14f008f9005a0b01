package queue

import "context"

// Client hands retrain requests to the worker fleet.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
