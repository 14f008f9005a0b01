package queue

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Message asks a worker to retrain and publish the named model.
type Message struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
	Version     int       `json:"version"`
}

const messageVersion = 1

// NewRetrainMessage builds a message with a fresh id.
func NewRetrainMessage(model, reason string) Message {
	return Message{
		ID:          uuid.NewString(),
		Model:       model,
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
		Version:     messageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Model == "" {
		return Message{}, fmt.Errorf("retrain message %q has no model", msg.ID)
	}
	return msg, nil
}
