package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"skill-recommender/internal/classifier"
	"skill-recommender/internal/queue"
	"skill-recommender/internal/retrain"
)

const testModel = "esco_skill_recommender"

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRetrainer struct {
	err     error
	reasons []string
}

func (f *fakeRetrainer) RunOnce(ctx context.Context, reason string) error {
	_ = ctx
	f.reasons = append(f.reasons, reason)
	return f.err
}

func retrainMessage(t *testing.T, id, receipt, model, reason string) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{ID: id, Model: model, Reason: reason, Version: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerCoalescesBatchAndDeletesOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	worker := &fakeRetrainer{}
	msgs := []sqstypes.Message{
		retrainMessage(t, "m1", "r1", testModel, "feedback"),
		retrainMessage(t, "m2", "r2", testModel, "manual"),
	}

	handleBatch(context.Background(), client, "queue", testModel, worker, msgs, defaultMaxReceives)

	if len(worker.reasons) != 1 || worker.reasons[0] != "feedback,manual" {
		t.Fatalf("expected one coalesced run, got %v", worker.reasons)
	}
	if len(client.deleted) != 2 {
		t.Fatalf("expected 2 deletes, got %d", len(client.deleted))
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	worker := &fakeRetrainer{err: errors.New("boom")}
	msgs := []sqstypes.Message{retrainMessage(t, "m2", "r2", testModel, "feedback")}

	handleBatch(context.Background(), client, "queue", testModel, worker, msgs, defaultMaxReceives)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDropsAfterMaxReceives(t *testing.T) {
	client := &fakeSQS{}
	worker := &fakeRetrainer{err: errors.New("boom")}
	fresh := retrainMessage(t, "m5", "r5", testModel, "feedback")
	worn := retrainMessage(t, "m6", "r6", testModel, "feedback")
	worn.Attributes["ApproximateReceiveCount"] = "5"

	handleBatch(context.Background(), client, "queue", testModel, worker, []sqstypes.Message{fresh, worn}, 5)

	if len(client.deleted) != 1 || client.deleted[0] != "r6" {
		t.Fatalf("expected only the exhausted message deleted, got %v", client.deleted)
	}
}

func TestWorkerDropsUnretryableFailure(t *testing.T) {
	client := &fakeSQS{}
	worker := &fakeRetrainer{err: fmt.Errorf("train: %w", classifier.ErrEmptyTrainingSet)}
	msgs := []sqstypes.Message{retrainMessage(t, "m7", "r7", testModel, "feedback")}

	handleBatch(context.Background(), client, "queue", testModel, worker, msgs, defaultMaxReceives)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %v", client.deleted)
	}
}

func TestWorkerKeepsMessagesWhenLockHeld(t *testing.T) {
	client := &fakeSQS{}
	worker := &fakeRetrainer{err: retrain.ErrLockHeld}
	msg := retrainMessage(t, "m8", "r8", testModel, "feedback")
	msg.Attributes["ApproximateReceiveCount"] = "9"

	handleBatch(context.Background(), client, "queue", testModel, worker, []sqstypes.Message{msg}, defaultMaxReceives)

	if len(client.deleted) != 0 {
		t.Fatalf("expected redelivery, got %v", client.deleted)
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	worker := &fakeRetrainer{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String("{bad-json"),
	}

	handleBatch(context.Background(), client, "queue", testModel, worker, []sqstypes.Message{msg}, defaultMaxReceives)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(worker.reasons) != 0 {
		t.Fatalf("expected no retrain, got %v", worker.reasons)
	}
}

func TestWorkerDropsOtherModels(t *testing.T) {
	client := &fakeSQS{}
	worker := &fakeRetrainer{}
	msgs := []sqstypes.Message{retrainMessage(t, "m4", "r4", "other_model", "feedback")}

	handleBatch(context.Background(), client, "queue", testModel, worker, msgs, defaultMaxReceives)

	if len(client.deleted) != 1 || len(worker.reasons) != 0 {
		t.Fatalf("expected drop without retrain, deleted=%v reasons=%v", client.deleted, worker.reasons)
	}
}

func TestReceiveCount(t *testing.T) {
	msg := sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}
	if got := receiveCount(msg); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
