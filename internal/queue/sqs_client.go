package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	defaultSQSRegion = "us-east-1"
	// dedupWindow groups requests for one model on a FIFO queue. SQS drops
	// duplicates of a deduplication id for five minutes.
	dedupWindow = time.Minute
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient sends retrain requests to SQS. On a FIFO queue, requests for the
// same model share a message group and requests within one dedup window
// collapse into a single message.
type SQSClient struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

func NewSQSClient(ctx context.Context, queueURL, region string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("RA_SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultSQSRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSClientWithAPI(sqs.NewFromConfig(cfg), queueURL), nil
}

func NewSQSClientWithAPI(client SQSAPI, queueURL string) *SQSClient {
	return &SQSClient{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode retrain message: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"model": {DataType: aws.String("String"), StringValue: aws.String(msg.Model)},
		},
	}
	if s.fifo {
		in.MessageGroupId = aws.String(msg.Model)
		in.MessageDeduplicationId = aws.String(dedupID(msg))
	}
	if _, err := s.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send retrain %s: %w", msg.Model, err)
	}
	return nil
}

func dedupID(msg Message) string {
	at := msg.RequestedAt
	if at.IsZero() {
		at = time.Now()
	}
	return msg.Model + "-" + strconv.FormatInt(at.UTC().Truncate(dedupWindow).Unix(), 10)
}

var _ Client = (*SQSClient)(nil)
