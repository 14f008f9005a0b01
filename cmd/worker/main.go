package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"skill-recommender/internal/bootstrap"
	"skill-recommender/internal/classifier"
	"skill-recommender/internal/queue"
	"skill-recommender/internal/retrain"
	"skill-recommender/internal/shared/config"
	"skill-recommender/internal/shared/telemetry"
)

const (
	sqsRegion                = "us-east-1"
	defaultVisibilitySeconds = 3600
	defaultMaxReceives       = 5
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("RA_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	region := cfg.AWSRegion
	if strings.TrimSpace(region) == "" {
		region = sqsRegion
	}
	visibilitySeconds := envInt("RA_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	maxReceives := envInt("RA_SQS_MAX_RECEIVES", defaultMaxReceives)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	// The worker process always retrains in place.
	cfg.RetrainMode = "inline"
	app, err := bootstrap.Build(cfg, bootstrap.Options{SkipRouter: true})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	telemetry.Info("worker.started", map[string]any{
		"queue":        queueURL,
		"model":        cfg.ModelName,
		"visibility":   visibilitySeconds,
		"max_receives": maxReceives,
	})

	for {
		if ctx.Err() != nil {
			break
		}
		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err})
			continue
		}
		if len(resp.Messages) == 0 {
			continue
		}
		handleBatch(ctx, sqsClient, queueURL, cfg.ModelName, app.Worker, resp.Messages, maxReceives)
	}

	telemetry.Info("worker.stopped", nil)
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type retrainer interface {
	RunOnce(ctx context.Context, reason string) error
}

// handleBatch runs one retrain for every valid request in the batch. Bad
// payloads and requests for other models are dropped; valid requests are
// deleted after the retrain published. A failed retrain leaves them for
// redelivery unless the failure cannot succeed on retry or a message has been
// received maxReceives times.
func handleBatch(ctx context.Context, client sqsAPI, queueURL, model string, worker retrainer, msgs []sqstypes.Message, maxReceives int) {
	var (
		pending []sqstypes.Message
		ids     []string
		reasons []string
	)
	for _, m := range msgs {
		body := aws.ToString(m.Body)
		if strings.TrimSpace(body) == "" {
			telemetry.Error("worker.retrain.empty_body", baseFields(m, ""))
			deleteMessage(ctx, client, queueURL, m)
			continue
		}
		decoded, err := queue.DecodeMessage([]byte(body))
		if err != nil {
			fields := baseFields(m, "")
			fields["body_len"] = len(body)
			fields["error"] = err.Error()
			telemetry.Error("worker.retrain.decode_failed", fields)
			deleteMessage(ctx, client, queueURL, m)
			continue
		}
		if decoded.Model != model {
			fields := baseFields(m, decoded.ID)
			fields["model"] = decoded.Model
			telemetry.Warn("worker.retrain.other_model", fields)
			deleteMessage(ctx, client, queueURL, m)
			continue
		}
		telemetry.Info("worker.retrain.received", baseFields(m, decoded.ID))
		pending = append(pending, m)
		ids = append(ids, decoded.ID)
		reasons = append(reasons, decoded.Reason)
	}
	if len(pending) == 0 {
		return
	}

	if err := worker.RunOnce(ctx, strings.Join(reasons, ",")); err != nil {
		telemetry.Error("worker.retrain.failed", map[string]any{
			"error":    err.Error(),
			"requests": len(pending),
		})
		if errors.Is(err, retrain.ErrLockHeld) {
			return
		}
		permanent := errors.Is(err, classifier.ErrEmptyTrainingSet)
		for i, m := range pending {
			if !permanent && (maxReceives <= 0 || receiveCount(m) < maxReceives) {
				continue
			}
			fields := baseFields(m, ids[i])
			fields["error"] = err.Error()
			fields["permanent"] = permanent
			telemetry.Error("worker.retrain.dropped", fields)
			deleteMessage(ctx, client, queueURL, m)
		}
		return
	}
	for _, m := range pending {
		deleteMessage(ctx, client, queueURL, m)
	}
	telemetry.Info("worker.retrain.completed", map[string]any{"requests": len(pending)})
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, "")
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.retrain.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, "")
		fields["error"] = err.Error()
		telemetry.Error("worker.retrain.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, requestID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
