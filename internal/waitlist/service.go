package waitlist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/pkg/db"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	apperrors "github.com/trocado-app/trocado-backend/pkg/errors"
)

// ReservationCreator attempts a reservation on behalf of a promoted
// entrant, inside the caller's transaction. Implemented by the
// reservation service; declared here so promotion does not import it.
type ReservationCreator interface {
	CreateForPromotion(ctx context.Context, tx *gorm.DB, itemID, buyerID, sellerID uuid.UUID, amountCents int64) (*models.Reservation, error)
}

// Service manages each item's FIFO interest queue.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Enqueue(ctx context.Context, itemID, userID uuid.UUID) (int, error)
	Position(ctx context.Context, itemID, userID uuid.UUID) (int, error)
	Withdraw(ctx context.Context, itemID, userID uuid.UUID) error
	Close(ctx context.Context, itemID uuid.UUID) error
	PromoteNext(ctx context.Context, tx *gorm.DB, itemID, sellerID uuid.UUID, amountCents int64, creator ReservationCreator) (*models.Reservation, error)
}

type service struct {
	repo Repository
}

// NewService wires a waitlist service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("waitlist repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

// Enqueue appends the user and returns their 1-based position.
func (s *service) Enqueue(ctx context.Context, itemID, userID uuid.UUID) (int, error) {
	if itemID == uuid.Nil || userID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "item id and user id are required")
	}

	active, err := s.repo.HasActiveReservation(ctx, itemID, userID)
	if err != nil {
		return 0, err
	}
	if active {
		return 0, apperrors.New(apperrors.CodeConflict, "user already holds an active reservation on this item")
	}

	entry := &models.WaitlistEntry{ItemID: itemID, UserID: userID}
	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "ux_waitlist_item_user") {
			return 0, apperrors.New(apperrors.CodeConflict, "user is already on the waitlist")
		}
		return 0, err
	}
	return s.Position(ctx, itemID, userID)
}

// Position returns the user's 1-based slot, or NotFound if absent.
func (s *service) Position(ctx context.Context, itemID, userID uuid.UUID) (int, error) {
	entries, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	for i, entry := range entries {
		if entry.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, apperrors.New(apperrors.CodeNotFound, "user is not on the waitlist")
}

// Withdraw removes the user's entry. Removing an absent entry succeeds,
// duplicate clicks are expected.
func (s *service) Withdraw(ctx context.Context, itemID, userID uuid.UUID) error {
	_, err := s.repo.DeleteByItemAndUser(ctx, itemID, userID)
	return err
}

// Close drops every remaining entry; used when the item is gone for good.
func (s *service) Close(ctx context.Context, itemID uuid.UUID) error {
	_, err := s.repo.DeleteByItem(ctx, itemID)
	return err
}

// PromoteNext pops entrants in FIFO order until one can afford the item.
// Insolvent entrants are dropped rather than re-enqueued so the item
// keeps moving; that trade-off is deliberate. Stops without error when
// the queue empties or the item slot was taken by a concurrent writer.
func (s *service) PromoteNext(ctx context.Context, tx *gorm.DB, itemID, sellerID uuid.UUID, amountCents int64, creator ReservationCreator) (*models.Reservation, error) {
	if creator == nil {
		return nil, fmt.Errorf("reservation creator required")
	}

	repo := s.repo.WithTx(tx)
	entries, err := repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		removed, err := repo.Delete(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		if !removed {
			// someone else popped this entry
			continue
		}

		reservation, err := creator.CreateForPromotion(ctx, tx, itemID, entry.UserID, sellerID, amountCents)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeInsufficientFunds) {
				continue
			}
			if apperrors.HasCode(err, apperrors.CodeConflict) {
				// slot already taken; nothing left to promote
				return nil, nil
			}
			return nil, err
		}
		return reservation, nil
	}
	return nil, nil
}
