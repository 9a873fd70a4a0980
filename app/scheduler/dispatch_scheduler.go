// Package scheduler
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/wahelp/mailing-engine/app/dto"
	businessflow "github.com/wahelp/mailing-engine/business_flow"
	"github.com/wahelp/mailing-engine/models"
	"github.com/wahelp/mailing-engine/repository"
	"github.com/wahelp/mailing-engine/utils"
)

// DispatchScheduler periodically looks for mailings that were interrupted
// mid-run and resumes them. A mailing counts as stuck when it sits in
// in_progress with pending recipients and has not been touched for
// staleAfter. Resuming goes through the regular dispatch flow, so the
// advisory lock still rejects the resume when a live run holds it.
type DispatchScheduler struct {
	mailingRepo   repository.MailingRepository
	recipientRepo repository.MailingRecipientRepository
	flow          businessflow.MailingFlow
	logger        *log.Logger
	interval      time.Duration
	staleAfter    time.Duration
}

func NewDispatchScheduler(
	mailingRepo repository.MailingRepository,
	recipientRepo repository.MailingRecipientRepository,
	flow businessflow.MailingFlow,
	logger *log.Logger,
	interval time.Duration,
	staleAfter time.Duration,
) *DispatchScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}

	return &DispatchScheduler{
		mailingRepo:   mailingRepo,
		recipientRepo: recipientRepo,
		flow:          flow,
		logger:        logger,
		interval:      interval,
		staleAfter:    staleAfter,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *DispatchScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *DispatchScheduler) runOnce(ctx context.Context) {
	stuck, err := s.listStuckMailings(ctx)
	if err != nil {
		s.logger.Printf("scheduler: list stuck mailings failed: %v", err)
		return
	}
	if len(stuck) == 0 {
		return
	}
	s.logger.Printf("scheduler: resuming %d stuck mailings", len(stuck))

	for _, mailing := range stuck {
		resp, err := s.flow.Dispatch(ctx, &dto.DispatchMailingRequest{MailingID: mailing.ID}, nil)
		if err != nil {
			if businessflow.IsDispatchAlreadyRunning(err) {
				// A live run holds the lock; not actually stuck
				continue
			}
			s.logger.Printf("scheduler: resume of mailing %d failed: %v", mailing.ID, err)
			continue
		}
		s.logger.Printf("scheduler: resumed mailing %d: status=%s processed=%d",
			mailing.ID, resp.Status, resp.ProcessedInThisRun)
	}
}

// listStuckMailings returns in_progress mailings with pending recipients
// whose last update is older than staleAfter.
func (s *DispatchScheduler) listStuckMailings(ctx context.Context) ([]*models.Mailing, error) {
	status := models.MailingStatusInProgress
	candidates, err := s.mailingRepo.ByFilter(ctx, models.MailingFilter{Status: &status}, "updated_at ASC", 0, 0)
	if err != nil {
		return nil, err
	}

	cutoff := utils.UTCNow().Add(-s.staleAfter)
	stuck := make([]*models.Mailing, 0, len(candidates))
	for _, mailing := range candidates {
		if mailing.UpdatedAt.After(cutoff) {
			continue
		}
		pending, err := s.recipientRepo.CountByStatus(ctx, mailing.ID, models.RecipientStatusPending)
		if err != nil {
			return nil, err
		}
		if pending > 0 {
			stuck = append(stuck, mailing)
		}
	}

	return stuck, nil
}
