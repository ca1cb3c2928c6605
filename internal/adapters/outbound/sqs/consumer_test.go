package sqs

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/archon-research/stl/pyth-keeper/internal/testutil"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/pyth-keeper-triggers"

type mockSQSAPI struct {
	receiveFunc func(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	deleteFunc  func(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)

	receiveInputs []*sqs.ReceiveMessageInput
	deleteInputs  []*sqs.DeleteMessageInput
}

func (m *mockSQSAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	m.receiveInputs = append(m.receiveInputs, params)
	if m.receiveFunc != nil {
		return m.receiveFunc(ctx, params, optFns...)
	}
	return &sqs.ReceiveMessageOutput{}, nil
}

func (m *mockSQSAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.deleteInputs = append(m.deleteInputs, params)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, params, optFns...)
	}
	return &sqs.DeleteMessageOutput{}, nil
}

func newTestConsumer(mock *mockSQSAPI) *Consumer {
	return &Consumer{
		client:   mock,
		queueURL: testQueueURL,
		config:   ConfigDefaults(),
		logger:   testutil.DiscardLogger(),
	}
}

func TestNewConsumer(t *testing.T) {
	if _, err := NewConsumer(aws.Config{}, Config{}, nil); err == nil {
		t.Error("expected error for missing queue URL")
	}

	c, err := NewConsumer(aws.Config{}, Config{QueueURL: testQueueURL}, nil)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	if c.config.WaitTimeSeconds != 20 || c.config.VisibilityTimeout != 60 {
		t.Errorf("defaults not applied: %+v", c.config)
	}
}

func TestReceiveMessages(t *testing.T) {
	mock := &mockSQSAPI{
		receiveFunc: func(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
			return &sqs.ReceiveMessageOutput{Messages: []types.Message{
				{
					MessageId:     aws.String("m1"),
					ReceiptHandle: aws.String("r1"),
					Body:          aws.String(`{"configSource":"abc"}`),
					Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
				},
				// incomplete messages are skipped
				{MessageId: aws.String("m2"), Body: aws.String("{}")},
				{MessageId: aws.String("m3"), ReceiptHandle: aws.String("r3"), Body: aws.String("{}")},
			}}, nil
		},
	}
	c := newTestConsumer(mock)

	msgs, err := c.ReceiveMessages(context.Background(), 50)
	if err != nil {
		t.Fatalf("ReceiveMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].MessageID != "m1" || msgs[0].ReceiptHandle != "r1" || msgs[0].ReceiveCount != 3 {
		t.Errorf("msg[0] = %+v", msgs[0])
	}
	if msgs[1].ReceiveCount != 0 {
		t.Errorf("msg[1] receive count = %d, want 0", msgs[1].ReceiveCount)
	}

	input := mock.receiveInputs[0]
	if input.MaxNumberOfMessages != 10 {
		t.Errorf("MaxNumberOfMessages = %d, want capped at 10", input.MaxNumberOfMessages)
	}
	if aws.ToString(input.QueueUrl) != testQueueURL {
		t.Errorf("queue = %s", aws.ToString(input.QueueUrl))
	}
}

func TestReceiveMessages_ClampsToOne(t *testing.T) {
	mock := &mockSQSAPI{}
	if _, err := newTestConsumer(mock).ReceiveMessages(context.Background(), 0); err != nil {
		t.Fatalf("ReceiveMessages: %v", err)
	}
	if mock.receiveInputs[0].MaxNumberOfMessages != 1 {
		t.Errorf("MaxNumberOfMessages = %d, want 1", mock.receiveInputs[0].MaxNumberOfMessages)
	}
}

func TestReceiveMessages_Error(t *testing.T) {
	boom := errors.New("queue does not exist")
	mock := &mockSQSAPI{
		receiveFunc: func(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
			return nil, boom
		},
	}
	if _, err := newTestConsumer(mock).ReceiveMessages(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapping %v", err, boom)
	}
}

func TestDeleteMessage(t *testing.T) {
	mock := &mockSQSAPI{}
	c := newTestConsumer(mock)

	if err := c.DeleteMessage(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if aws.ToString(mock.deleteInputs[0].ReceiptHandle) != "r1" {
		t.Errorf("receipt handle = %s", aws.ToString(mock.deleteInputs[0].ReceiptHandle))
	}

	mock.deleteFunc = func(context.Context, *sqs.DeleteMessageInput, ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
		return nil, errors.New("receipt expired")
	}
	if err := c.DeleteMessage(context.Background(), "r2"); err == nil {
		t.Error("expected error")
	}
}
