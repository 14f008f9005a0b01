package retrain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skill-recommender/internal/queue"
)

type memQueue struct {
	sent []queue.Message
	err  error
}

func (q *memQueue) Send(_ context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

func TestQueueDispatcher(t *testing.T) {
	q := &memQueue{}
	d := QueueDispatcher{Queue: q, Model: "skills"}

	require.NoError(t, d.Dispatch(context.Background(), "feedback"))
	require.Len(t, q.sent, 1)
	assert.Equal(t, "skills", q.sent[0].Model)
	assert.Equal(t, "feedback", q.sent[0].Reason)
	assert.NotEmpty(t, q.sent[0].ID)

	q.err = errors.New("throttled")
	assert.Error(t, d.Dispatch(context.Background(), "feedback"))
}
