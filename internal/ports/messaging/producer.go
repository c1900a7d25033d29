package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Producer struct {
	sender          MessageSender
	notifyQueueURL  string
	payrollQueueURL string
}

func NewProducer(sender MessageSender, notifyQueueURL, payrollQueueURL string) *Producer {
	return &Producer{
		sender:          sender,
		notifyQueueURL:  notifyQueueURL,
		payrollQueueURL: payrollQueueURL,
	}
}

func NewSQSProducer(client SQSClient, notifyQueueURL, payrollQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, notifyQueueURL, payrollQueueURL)
}

func (p *Producer) PublishNotify(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.notifyQueueURL, body)
}

func (p *Producer) PublishPayroll(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.payrollQueueURL, body)
}

func (p *Producer) publish(ctx context.Context, destination string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	// Enrich the current span with user_id if available
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		var payload struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(b, &payload); err == nil && payload.UserID != "" {
			span.SetAttributes(attribute.String("app.user_id", payload.UserID))
		}
	}

	if err := p.sender.SendMessage(ctx, destination, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
