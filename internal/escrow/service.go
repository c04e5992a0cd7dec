package escrow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/internal/ledger"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
)

// Service earmarks, releases and settles funds tied to a reservation.
// Callers run every mutation inside a transaction so the reservation row
// and its ledger entries commit or roll back together.
type Service interface {
	WithTx(tx *gorm.DB) Service
	LockForReservation(ctx context.Context, buyerAccountID uuid.UUID, amountCents int64, reservationID uuid.UUID) (*models.LedgerEntry, error)
	ReleaseReservation(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error)
	SettleReservation(ctx context.Context, lockEntryID, sellerAccountID uuid.UUID) (*ledger.TransferResult, error)
}

// Config carries the platform fee policy applied on settlement.
type Config struct {
	FeeBps       int
	FeeAccountID uuid.UUID
}

type service struct {
	ledger ledger.Service
	cfg    Config
}

// NewService wires an escrow service over the ledger.
func NewService(ledgerSvc ledger.Service, cfg Config) (Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if cfg.FeeBps < 0 || cfg.FeeBps >= 10000 {
		return nil, fmt.Errorf("fee bps out of range: %d", cfg.FeeBps)
	}
	if cfg.FeeBps > 0 && cfg.FeeAccountID == uuid.Nil {
		return nil, fmt.Errorf("fee account id required when fee bps is set")
	}
	return &service{ledger: ledgerSvc, cfg: cfg}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{ledger: s.ledger.WithTx(tx), cfg: s.cfg}
}

func (s *service) LockForReservation(ctx context.Context, buyerAccountID uuid.UUID, amountCents int64, reservationID uuid.UUID) (*models.LedgerEntry, error) {
	return s.ledger.Lock(ctx, buyerAccountID, amountCents, reservationID)
}

func (s *service) ReleaseReservation(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error) {
	return s.ledger.Unlock(ctx, lockEntryID)
}

func (s *service) SettleReservation(ctx context.Context, lockEntryID, sellerAccountID uuid.UUID) (*ledger.TransferResult, error) {
	return s.ledger.Transfer(ctx, ledger.TransferInput{
		LockEntryID:  lockEntryID,
		ToAccountID:  sellerAccountID,
		FeeBps:       s.cfg.FeeBps,
		FeeAccountID: s.cfg.FeeAccountID,
	})
}
