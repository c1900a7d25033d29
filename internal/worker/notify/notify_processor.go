package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"

	"workwatch.service/internal/core"
	"workwatch.service/internal/core/model"
	"workwatch.service/internal/ports/messaging"
	"workwatch.service/internal/ports/repository"
)

type NotifyProcessor struct {
	emailService core.EmailService
	repo         repository.Repository
}

// NewProcessor sets up a new processor for work-summary email jobs.
// It needs an email service to send emails and a repository to track
// whether a day's summary already went out.
func NewProcessor(emailService core.EmailService, repo repository.Repository) *NotifyProcessor {
	return &NotifyProcessor{
		emailService: emailService,
		repo:         repo,
	}
}

// Process handles one message from the notify queue. SQS redelivers on
// failure, so the record's notify status is the idempotence guard
// against double-sending.
func (p *NotifyProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.PunchOutEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal punch-out event")
		return false, 0, err // Do not retry on malformed message
	}

	record, err := p.repo.GetForDay(ctx, event.UserID, event.Day)
	if err != nil {
		return true, 10, fmt.Errorf("failed to get attendance record for notify processing: %w", err)
	}
	if record == nil {
		return false, 0, fmt.Errorf("no attendance record for user %s on %s", event.UserID, event.Day)
	}

	if record.NotifyStatus == model.StatusNotifyCompleted {
		log.Ctx(ctx).Info().Str("user_id", event.UserID).Str("day", event.Day).Msg("Summary already sent. Skipping.")
		return false, 0, nil
	}

	err = p.emailService.SendWorkSummary(ctx, event.UserID+"@workwatch.example", event.Day, event.HoursWorked)
	if err != nil {
		newCount := record.NotifyRetryCount + 1
		p.repo.UpdateNotifyStatus(ctx, event.UserID, event.Day, model.StatusNotifyPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.repo.UpdateNotifyStatus(ctx, event.UserID, event.Day, model.StatusNotifyCompleted, 0)
	return false, 0, err
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry to avoid overwhelming
// a struggling mail service.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 { // Cap at 1 hour
		return 3600
	}
	return backoff
}
