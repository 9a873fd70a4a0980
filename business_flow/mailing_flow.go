// Package businessflow contains the core business logic and use cases for mailing workflows
package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wahelp/mailing-engine/app/dto"
	"github.com/wahelp/mailing-engine/app/services"
	"github.com/wahelp/mailing-engine/models"
	"github.com/wahelp/mailing-engine/repository"
	"github.com/wahelp/mailing-engine/utils"
	"gorm.io/gorm"
)

// dispatchLockClass namespaces the per-mailing advisory lock keys so they
// cannot collide with other advisory locks on the same database.
const dispatchLockClass = 7342

// MailingFlow handles the mailing business logic
type MailingFlow interface {
	CreateMailing(ctx context.Context, req *dto.CreateMailingRequest, metadata *ClientMetadata) (*dto.CreateMailingResponse, error)
	Dispatch(ctx context.Context, req *dto.DispatchMailingRequest, metadata *ClientMetadata) (*dto.DispatchMailingResponse, error)
	GetMailing(ctx context.Context, req *dto.GetMailingRequest) (*dto.MailingDTO, error)
	ListMailings(ctx context.Context, req *dto.ListMailingsRequest) (*dto.ListMailingsResponse, error)
}

// MailingFlowImpl implements the mailing business flow
type MailingFlowImpl struct {
	mailingRepo   repository.MailingRepository
	recipientRepo repository.MailingRecipientRepository
	userRepo      repository.UserRepository
	sender        services.MessageSender
	statsCache    *services.StatsCache
	db            *gorm.DB
	logger        *log.Logger
}

// NewMailingFlow creates a new mailing flow instance
func NewMailingFlow(
	mailingRepo repository.MailingRepository,
	recipientRepo repository.MailingRecipientRepository,
	userRepo repository.UserRepository,
	sender services.MessageSender,
	statsCache *services.StatsCache,
	db *gorm.DB,
	logger *log.Logger,
) MailingFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &MailingFlowImpl{
		mailingRepo:   mailingRepo,
		recipientRepo: recipientRepo,
		userRepo:      userRepo,
		sender:        sender,
		statsCache:    statsCache,
		db:            db,
		logger:        logger,
	}
}

// CreateMailing creates a mailing together with its recipient cohort. The
// mailing row, the user-store read, and the recipient bulk insert all run
// in one transaction: either the mailing appears with its complete cohort
// or nothing is committed. Users registered later are never added to the
// cohort.
func (s *MailingFlowImpl) CreateMailing(ctx context.Context, req *dto.CreateMailingRequest, metadata *ClientMetadata) (*dto.CreateMailingResponse, error) {
	title := strings.TrimSpace(req.Title)
	text := strings.TrimSpace(req.Text)
	if title == "" {
		return nil, NewBusinessError("MAILING_TITLE_REQUIRED", "Mailing title must not be empty", ErrMailingTitleRequired)
	}
	if text == "" {
		return nil, NewBusinessError("MAILING_TEXT_REQUIRED", "Mailing text must not be empty", ErrMailingTextRequired)
	}

	var mailing *models.Mailing
	var cohortSize int64

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		mailing = &models.Mailing{
			UUID:      utils.NewUUID(),
			Title:     title,
			Text:      text,
			Status:    models.MailingStatusPending,
			CreatedAt: utils.UTCNow(),
			UpdatedAt: utils.UTCNow(),
		}
		if err := s.mailingRepo.Save(txCtx, mailing); err != nil {
			return err
		}

		users, err := s.userRepo.ListAll(txCtx)
		if err != nil {
			return err
		}
		cohortSize = int64(len(users))

		// A mailing with no recipients is legal; it completes on the
		// first dispatch run.
		if len(users) == 0 {
			s.logger.Printf("mailing %d created with empty cohort", mailing.ID)
			return nil
		}

		recipients := make([]*models.MailingRecipient, 0, len(users))
		for _, user := range users {
			recipients = append(recipients, &models.MailingRecipient{
				MailingID: mailing.ID,
				UserID:    user.ID,
				Status:    models.RecipientStatusPending,
				CreatedAt: utils.UTCNow(),
			})
		}

		return s.recipientRepo.SaveBatch(txCtx, recipients)
	})
	if err != nil {
		return nil, NewBusinessError("MAILING_CREATION_FAILED", "Mailing creation failed", err)
	}

	s.logger.Printf("mailing %d created with %d recipients", mailing.ID, cohortSize)

	return &dto.CreateMailingResponse{
		Message:         "Mailing created successfully",
		MailingID:       mailing.ID,
		UUID:            mailing.UUID.String(),
		Status:          string(mailing.Status),
		TotalRecipients: cohortSize,
		CreatedAt:       mailing.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Dispatch runs one dispatch pass over the mailing's pending recipients.
// It is safe to invoke repeatedly: sent recipients are never selected
// again, a completed mailing short-circuits to a pure read, and a
// per-mailing advisory lock rejects overlapping runs instead of
// double-sending.
func (s *MailingFlowImpl) Dispatch(ctx context.Context, req *dto.DispatchMailingRequest, metadata *ClientMetadata) (*dto.DispatchMailingResponse, error) {
	mailing, err := s.mailingRepo.ByID(ctx, req.MailingID)
	if err != nil {
		return nil, NewBusinessError("MAILING_LOOKUP_FAILED", "Failed to lookup mailing", err)
	}
	if mailing == nil {
		return nil, NewBusinessError("MAILING_NOT_FOUND", "Mailing not found", ErrMailingNotFound)
	}

	if mailing.Status == models.MailingStatusCompleted {
		return s.completedSnapshot(ctx, mailing)
	}

	var processed int64

	// The whole run is pinned to one pool connection: the advisory lock
	// lives on that session, while every recipient update commits on its
	// own. A crash mid-loop therefore keeps all prior recipients durably
	// sent and releases the lock with the session.
	err = s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var locked bool
		row := conn.Raw("SELECT pg_try_advisory_lock(?, ?)", dispatchLockClass, int64(req.MailingID)).Row()
		if err := row.Scan(&locked); err != nil {
			return fmt.Errorf("failed to acquire dispatch lock for mailing %d: %w", req.MailingID, err)
		}
		if !locked {
			return ErrDispatchAlreadyRunning
		}
		defer func() {
			if err := conn.Exec("SELECT pg_advisory_unlock(?, ?)", dispatchLockClass, int64(req.MailingID)).Error; err != nil {
				s.logger.Printf("failed to release dispatch lock for mailing %d: %v", req.MailingID, err)
			}
		}()

		runCtx := context.WithValue(ctx, repository.TxContextKey, conn)

		// Re-read under the lock: a run that finished between the lookup
		// above and lock acquisition leaves the mailing completed, and
		// completed must stay a pure read.
		fresh, err := s.mailingRepo.ByID(runCtx, mailing.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return ErrMailingNotFound
		}
		if fresh.Status == models.MailingStatusCompleted {
			return nil
		}

		if err := s.mailingRepo.UpdateStatus(runCtx, mailing.ID, models.MailingStatusInProgress); err != nil {
			return err
		}

		pending, err := s.recipientRepo.ListPendingWithUsers(runCtx, mailing.ID)
		if err != nil {
			return err
		}
		s.logger.Printf("dispatch run for mailing %d: %d pending recipients", mailing.ID, len(pending))

		for _, recipient := range pending {
			if recipient.User == nil {
				s.logger.Printf("recipient %d of mailing %d has no user row, skipping", recipient.ID, mailing.ID)
				continue
			}

			// The send capability reports no failure today; an error is
			// logged and the recipient is still marked sent. Do not add a
			// failed transition here without extending the sender contract.
			if err := s.sender.Send(ctx, recipient.User.PhoneNumber, mailing.Title, mailing.Text); err != nil {
				s.logger.Printf("send to %s for mailing %d returned error: %v", recipient.User.PhoneNumber, mailing.ID, err)
			}

			transitioned, err := s.recipientRepo.MarkSent(runCtx, recipient.ID, utils.UTCNow())
			if err != nil {
				return err
			}
			if transitioned {
				processed++
			}
		}

		remaining, err := s.recipientRepo.CountByStatus(runCtx, mailing.ID, models.RecipientStatusPending)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return s.mailingRepo.UpdateStatus(runCtx, mailing.ID, models.MailingStatusCompleted)
		}

		return nil
	})
	if err != nil {
		if IsDispatchAlreadyRunning(err) {
			return nil, NewBusinessError("DISPATCH_IN_PROGRESS", "A dispatch run for this mailing is already in progress", err)
		}
		return nil, NewBusinessError("DISPATCH_FAILED", "Mailing dispatch failed", err)
	}

	current, totalSent, remaining, total, err := s.aggregate(ctx, mailing.ID)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_STATS_FAILED", "Failed to compute dispatch stats", err)
	}

	if current.Status == models.MailingStatusCompleted {
		s.cacheStats(ctx, current, totalSent, remaining, total)
	}

	s.logger.Printf("dispatch run for mailing %d finished: status=%s processed=%d remaining=%d",
		mailing.ID, current.Status, processed, remaining)

	return &dto.DispatchMailingResponse{
		MailingID:           mailing.ID,
		Status:              string(current.Status),
		ProcessedInThisRun:  processed,
		TotalSentForMailing: totalSent,
		RemainingToSend:     remaining,
		TotalRecipients:     total,
	}, nil
}

// GetMailing returns a mailing with its aggregate counts
func (s *MailingFlowImpl) GetMailing(ctx context.Context, req *dto.GetMailingRequest) (*dto.MailingDTO, error) {
	mailing, err := s.mailingRepo.ByID(ctx, req.MailingID)
	if err != nil {
		return nil, NewBusinessError("MAILING_LOOKUP_FAILED", "Failed to lookup mailing", err)
	}
	if mailing == nil {
		return nil, NewBusinessError("MAILING_NOT_FOUND", "Mailing not found", ErrMailingNotFound)
	}

	if mailing.Status == models.MailingStatusCompleted {
		if cached, err := s.statsCache.Get(ctx, mailing.ID); err == nil && cached != nil {
			result := ToMailingDTO(*mailing, cached.TotalSent, cached.RemainingToSend, cached.TotalRecipients)
			return &result, nil
		}
	}

	_, totalSent, remaining, total, err := s.aggregate(ctx, mailing.ID)
	if err != nil {
		return nil, NewBusinessError("MAILING_STATS_FAILED", "Failed to compute mailing stats", err)
	}

	if mailing.Status == models.MailingStatusCompleted {
		s.cacheStats(ctx, mailing, totalSent, remaining, total)
	}

	result := ToMailingDTO(*mailing, totalSent, remaining, total)
	return &result, nil
}

// ListMailings returns a page of mailings with aggregate counts, newest first
func (s *MailingFlowImpl) ListMailings(ctx context.Context, req *dto.ListMailingsRequest) (*dto.ListMailingsResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Invalid page", ErrInvalidPage)
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = utils.DefaultPageSize
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Invalid page size", ErrInvalidPageSize)
	}

	mailings, err := s.mailingRepo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("MAILING_LIST_FAILED", "Failed to list mailings", err)
	}
	totalCount, err := s.mailingRepo.Count(ctx, models.MailingFilter{})
	if err != nil {
		return nil, NewBusinessError("MAILING_LIST_FAILED", "Failed to count mailings", err)
	}

	items := make([]dto.MailingDTO, 0, len(mailings))
	for _, mailing := range mailings {
		_, totalSent, remaining, total, err := s.aggregate(ctx, mailing.ID)
		if err != nil {
			return nil, NewBusinessError("MAILING_STATS_FAILED", "Failed to compute mailing stats", err)
		}
		items = append(items, ToMailingDTO(*mailing, totalSent, remaining, total))
	}

	return &dto.ListMailingsResponse{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
	}, nil
}

// completedSnapshot serves the terminal aggregate of a completed mailing.
// No recipient is touched and no send is issued; repeated calls return
// the same counts forever.
func (s *MailingFlowImpl) completedSnapshot(ctx context.Context, mailing *models.Mailing) (*dto.DispatchMailingResponse, error) {
	if cached, err := s.statsCache.Get(ctx, mailing.ID); err == nil && cached != nil {
		return &dto.DispatchMailingResponse{
			MailingID:           mailing.ID,
			Status:              cached.Status,
			ProcessedInThisRun:  0,
			TotalSentForMailing: cached.TotalSent,
			RemainingToSend:     cached.RemainingToSend,
			TotalRecipients:     cached.TotalRecipients,
		}, nil
	}

	_, totalSent, remaining, total, err := s.aggregate(ctx, mailing.ID)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_STATS_FAILED", "Failed to compute dispatch stats", err)
	}

	s.cacheStats(ctx, mailing, totalSent, remaining, total)

	return &dto.DispatchMailingResponse{
		MailingID:           mailing.ID,
		Status:              string(mailing.Status),
		ProcessedInThisRun:  0,
		TotalSentForMailing: totalSent,
		RemainingToSend:     remaining,
		TotalRecipients:     total,
	}, nil
}

func (s *MailingFlowImpl) aggregate(ctx context.Context, mailingID uint) (*models.Mailing, int64, int64, int64, error) {
	mailing, err := s.mailingRepo.ByID(ctx, mailingID)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if mailing == nil {
		return nil, 0, 0, 0, ErrMailingNotFound
	}

	totalSent, err := s.recipientRepo.CountByStatus(ctx, mailingID, models.RecipientStatusSent)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	remaining, err := s.recipientRepo.CountByStatus(ctx, mailingID, models.RecipientStatusPending)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	total, err := s.recipientRepo.CountByMailing(ctx, mailingID)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	return mailing, totalSent, remaining, total, nil
}

func (s *MailingFlowImpl) cacheStats(ctx context.Context, mailing *models.Mailing, totalSent, remaining, total int64) {
	err := s.statsCache.Store(ctx, services.MailingStats{
		MailingID:       mailing.ID,
		Status:          string(mailing.Status),
		TotalSent:       totalSent,
		RemainingToSend: remaining,
		TotalRecipients: total,
	})
	if err != nil {
		s.logger.Printf("failed to cache stats for mailing %d: %v", mailing.ID, err)
	}
}
