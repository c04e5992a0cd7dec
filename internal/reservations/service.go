package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/internal/escrow"
	"github.com/trocado-app/trocado-backend/internal/ledger"
	"github.com/trocado-app/trocado-backend/internal/waitlist"
	"github.com/trocado-app/trocado-backend/pkg/db"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
	apperrors "github.com/trocado-app/trocado-backend/pkg/errors"
	"github.com/trocado-app/trocado-backend/pkg/logger"
	"github.com/trocado-app/trocado-backend/pkg/outbox"
	"github.com/trocado-app/trocado-backend/pkg/outbox/payloads"
	"github.com/trocado-app/trocado-backend/pkg/security"
)

// reasonSystemExpiration is recorded when the sweep resolves a lapsed hold.
const reasonSystemExpiration = "system_expiration"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the reservation lifecycle: pending, then exactly one of
// confirmed, cancelled or expired.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Cancel(ctx context.Context, reservationID, actorID uuid.UUID, reasonCode string) error
	Confirm(ctx context.Context, reservationID uuid.UUID, presentedCode string) (*models.Reservation, error)
	Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// CreateInput captures a buyer's hold request.
type CreateInput struct {
	ItemID      uuid.UUID
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	AmountCents int64
}

// CreateResult returns the reservation plus the one-time plaintext code.
// Only the hash is persisted.
type CreateResult struct {
	Reservation      *models.Reservation
	ConfirmationCode string
}

// ServiceParams wires the reservation service dependencies.
type ServiceParams struct {
	DB       txRunner
	Repo     Repository
	Ledger   ledger.Service
	Escrow   escrow.Service
	Waitlist waitlist.Service
	Outbox   outboxEmitter
	Logger   *logger.Logger
	TTL      time.Duration
}

type service struct {
	db       txRunner
	repo     Repository
	ledger   ledger.Service
	escrow   escrow.Service
	waitlist waitlist.Service
	outbox   outboxEmitter
	logg     *logger.Logger
	ttl      time.Duration
}

// NewService validates and wires the reservation state machine.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if params.Waitlist == nil {
		return nil, fmt.Errorf("waitlist service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("reservation ttl must be positive")
	}
	return &service{
		db:       params.DB,
		repo:     params.Repo,
		ledger:   params.Ledger,
		escrow:   params.Escrow,
		waitlist: params.Waitlist,
		outbox:   params.Outbox,
		logg:     params.Logger,
		ttl:      params.TTL,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var result *CreateResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.createInTx(ctx, tx, input, false)
		if err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateForPromotion is the waitlist promotion hook. It runs inside the
// caller's transaction and checks availability up front so an occupied
// slot surfaces as a typed conflict instead of an index violation.
func (s *service) CreateForPromotion(ctx context.Context, tx *gorm.DB, itemID, buyerID, sellerID uuid.UUID, amountCents int64) (*models.Reservation, error) {
	if tx == nil {
		return nil, fmt.Errorf("promotion requires a transaction")
	}

	active, err := s.repo.WithTx(tx).FindActiveByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "item already has an active reservation")
	}

	created, err := s.createInTx(ctx, tx, CreateInput{
		ItemID:      itemID,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		AmountCents: amountCents,
	}, true)
	if err != nil {
		return nil, err
	}
	return created.Reservation, nil
}

// createInTx locks the buyer's funds and inserts the row in one shot.
// The partial unique index on active item reservations is the arbiter
// when two buyers race for the same item.
func (s *service) createInTx(ctx context.Context, tx *gorm.DB, input CreateInput, promoted bool) (*CreateResult, error) {
	reservationID := uuid.New()

	account, err := s.ledger.WithTx(tx).EnsureAccount(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}

	lock, err := s.escrow.WithTx(tx).LockForReservation(ctx, account.ID, input.AmountCents, reservationID)
	if err != nil {
		return nil, err
	}

	code, err := security.GenerateConfirmationCode()
	if err != nil {
		return nil, err
	}
	codeHash, err := security.HashConfirmationCode(code)
	if err != nil {
		return nil, err
	}

	reservation := &models.Reservation{
		ID:                   reservationID,
		ItemID:               input.ItemID,
		BuyerID:              input.BuyerID,
		SellerID:             input.SellerID,
		AmountCents:          input.AmountCents,
		Status:               enums.ReservationStatusPending,
		ConfirmationCodeHash: codeHash,
		LockEntryID:          lock.ID,
		ExpiresAt:            time.Now().Add(s.ttl),
	}
	if err := s.repo.WithTx(tx).Create(ctx, reservation); err != nil {
		if db.IsUniqueViolation(err, "ux_reservations_item_active") {
			return nil, apperrors.New(apperrors.CodeConflict, "item already has an active reservation")
		}
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventReservationCreated,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Actor:         &outbox.ActorRef{UserID: input.BuyerID},
		Data: payloads.ReservationCreatedEvent{
			ReservationID:    reservation.ID,
			ItemID:           reservation.ItemID,
			BuyerID:          reservation.BuyerID,
			SellerID:         reservation.SellerID,
			AmountCents:      reservation.AmountCents,
			ExpiresAt:        reservation.ExpiresAt,
			ConfirmationCode: code,
			Promoted:         promoted,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithReservationID(ctx, reservation.ID.String())
		logCtx = s.logg.WithItemID(logCtx, reservation.ItemID.String())
		s.logg.Info(logCtx, "reservation created")
	}
	return &CreateResult{Reservation: reservation, ConfirmationCode: code}, nil
}

// Cancel releases the hold and promotes the next waitlist entrant.
// Only the reservation's buyer or seller may cancel; the expiry sweep
// resolves lapsed holds through its own path. Cancelling an
// already-resolved reservation is a no-op success so duplicate clicks
// and retried RPCs stay harmless.
func (s *service) Cancel(ctx context.Context, reservationID, actorID uuid.UUID, reasonCode string) error {
	if reservationID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "reservation id is required")
	}
	if actorID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "actor id is required")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.Find(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation == nil {
			return apperrors.New(apperrors.CodeNotFound, "reservation not found")
		}
		if actorID != reservation.BuyerID && actorID != reservation.SellerID {
			return apperrors.New(apperrors.CodeForbidden, "only the buyer or seller may cancel this reservation")
		}
		if reservation.Status.IsTerminal() {
			return nil
		}

		update := TransitionUpdate{CancelActorID: &actorID}
		if reasonCode != "" {
			update.CancelReasonCode = &reasonCode
		}
		won, err := repo.Transition(ctx, reservationID, enums.ReservationStatusPending, enums.ReservationStatusCancelled, update)
		if err != nil {
			return err
		}
		if !won {
			// the concurrent transition already resolved it
			return nil
		}

		if _, err := s.escrow.WithTx(tx).ReleaseReservation(ctx, reservation.LockEntryID); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: payloads.ReservationCancelledEvent{
				ReservationID: reservation.ID,
				ItemID:        reservation.ItemID,
				BuyerID:       reservation.BuyerID,
				CancelActorID: actorID,
				ReasonCode:    reasonCode,
				RefundedCents: reservation.AmountCents,
				CancelledAt:   time.Now(),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		if _, err := s.waitlist.PromoteNext(ctx, tx, reservation.ItemID, reservation.SellerID, reservation.AmountCents, s); err != nil {
			return err
		}
		return nil
	})
}

// Confirm settles the escrow after the handoff code matches.
func (s *service) Confirm(ctx context.Context, reservationID uuid.UUID, presentedCode string) (*models.Reservation, error) {
	if reservationID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "reservation id is required")
	}
	if presentedCode == "" {
		return nil, apperrors.New(apperrors.CodeInvalidCode, "confirmation code does not match")
	}

	var confirmed *models.Reservation
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.Find(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation == nil {
			return apperrors.New(apperrors.CodeNotFound, "reservation not found")
		}
		if reservation.Status != enums.ReservationStatusPending {
			return apperrors.New(apperrors.CodeStateConflict, "reservation is no longer pending")
		}
		if time.Now().After(reservation.ExpiresAt) {
			return apperrors.New(apperrors.CodeStateConflict, "reservation has expired")
		}

		match, err := security.VerifyConfirmationCode(presentedCode, reservation.ConfirmationCodeHash)
		if err != nil {
			return err
		}
		if !match {
			return apperrors.New(apperrors.CodeInvalidCode, "confirmation code does not match")
		}

		won, err := repo.Transition(ctx, reservationID, enums.ReservationStatusPending, enums.ReservationStatusConfirmed, TransitionUpdate{})
		if err != nil {
			return err
		}
		if !won {
			return apperrors.New(apperrors.CodeStateConflict, "reservation is no longer pending")
		}

		sellerAccount, err := s.ledger.WithTx(tx).EnsureAccount(ctx, reservation.SellerID)
		if err != nil {
			return err
		}
		settlement, err := s.escrow.WithTx(tx).SettleReservation(ctx, reservation.LockEntryID, sellerAccount.ID)
		if err != nil {
			return err
		}

		// remaining entrants are notified the item is gone, never promoted
		if err := s.waitlist.WithTx(tx).Close(ctx, reservation.ItemID); err != nil {
			return err
		}

		var feeCents int64
		if settlement.Fee != nil {
			feeCents = settlement.Fee.AmountCents
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReservationConfirmed,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         &outbox.ActorRef{UserID: reservation.SellerID},
			Data: payloads.ReservationConfirmedEvent{
				ReservationID: reservation.ID,
				ItemID:        reservation.ItemID,
				BuyerID:       reservation.BuyerID,
				SellerID:      reservation.SellerID,
				GrossCents:    reservation.AmountCents,
				FeeCents:      feeCents,
				NetCents:      settlement.TransferIn.AmountCents,
				ConfirmedAt:   time.Now(),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		reservation.Status = enums.ReservationStatusConfirmed
		confirmed = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	if reservationID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "reservation id is required")
	}
	reservation, err := s.repo.Find(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

// SweepExpired resolves lapsed pending reservations one transaction at a
// time. Losing the compare-and-swap to a concurrent confirm or cancel is
// counted as resolved, not an error.
func (s *service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.repo.ListExpiredPending(ctx, now, 100)
	if err != nil {
		return 0, err
	}

	var expired int
	var errs error
	for i := range candidates {
		reservation := candidates[i]
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.expireInTx(ctx, tx, reservation)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire reservation %s: %w", reservation.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) expireInTx(ctx context.Context, tx *gorm.DB, reservation models.Reservation) error {
	reason := reasonSystemExpiration
	won, err := s.repo.WithTx(tx).Transition(ctx, reservation.ID, enums.ReservationStatusPending, enums.ReservationStatusExpired, TransitionUpdate{
		CancelReasonCode: &reason,
	})
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	if _, err := s.escrow.WithTx(tx).ReleaseReservation(ctx, reservation.LockEntryID); err != nil {
		return err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventReservationExpired,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Data: payloads.ReservationExpiredEvent{
			ReservationID: reservation.ID,
			ItemID:        reservation.ItemID,
			BuyerID:       reservation.BuyerID,
			RefundedCents: reservation.AmountCents,
			ExpiredAt:     time.Now(),
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}

	if _, err := s.waitlist.PromoteNext(ctx, tx, reservation.ItemID, reservation.SellerID, reservation.AmountCents, s); err != nil {
		return err
	}
	return nil
}

func validateCreateInput(input CreateInput) error {
	if input.ItemID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "item id is required")
	}
	if input.BuyerID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "buyer id is required")
	}
	if input.SellerID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "seller id is required")
	}
	if input.BuyerID == input.SellerID {
		return apperrors.New(apperrors.CodeValidation, "buyer and seller must differ")
	}
	if input.AmountCents <= 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	return nil
}
