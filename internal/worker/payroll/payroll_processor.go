package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"workwatch.service/internal/core/model"
	"workwatch.service/internal/ports/messaging"
	"workwatch.service/internal/ports/repository"
	"workwatch.service/internal/worker/payrollapi"
)

// PayrollProcessor handles jobs from the payroll queue, which involves
// calling the legacy payroll API. It uses a circuit breaker to avoid
// hammering the legacy system if it's having issues.
type PayrollProcessor struct {
	Repo       repository.Repository
	payrollAPI payrollapi.PayrollClient
	cb         *gobreaker.CircuitBreaker
}

// NewProcessor creates a new processor for the payroll queue. It sets up a
// circuit breaker to protect the legacy API from being overwhelmed.
func NewProcessor(r repository.Repository, client payrollapi.PayrollClient) *PayrollProcessor {
	settings := gobreaker.Settings{
		Name:        "Payroll-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if the failure rate exceeds 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &PayrollProcessor{
		Repo:       r,
		payrollAPI: client,
		cb:         gobreaker.NewCircuitBreaker(settings),
	}
}

// Process handles one message from the payroll queue: call the legacy
// API through the circuit breaker and retry with exponential backoff on
// failure.
func (p *PayrollProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.PunchOutEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal payroll event")
		return false, 0, err // Do not retry on malformed message
	}

	log.Ctx(ctx).Info().Str("user_id", event.UserID).Float64("hours", event.HoursWorked).Msg("Processing payroll sync")

	record, err := p.Repo.GetForDay(ctx, event.UserID, event.Day)
	if err != nil {
		return true, 10, fmt.Errorf("failed to get attendance record: %w", err)
	}
	if record == nil {
		return false, 0, fmt.Errorf("no attendance record for user %s on %s", event.UserID, event.Day)
	}

	if record.PayrollStatus == model.StatusPayrollCompleted {
		return false, 0, nil
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.payrollAPI.RecordWorkDay(ctx, event)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Ctx(ctx).Warn().Msg("Circuit Breaker is OPEN; skipping payroll API call")
		}
		newCount := record.PayrollRetryCount + 1
		p.Repo.UpdatePayrollStatus(ctx, event.UserID, event.Day, model.StatusPayrollPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.Repo.UpdatePayrollStatus(ctx, event.UserID, event.Day, model.StatusPayrollCompleted, 0)
	return false, 0, err
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
