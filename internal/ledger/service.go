package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/pkg/db"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
	apperrors "github.com/trocado-app/trocado-backend/pkg/errors"
	"github.com/trocado-app/trocado-backend/pkg/pagination"
)

// Service defines the append-only money operations. Balances are always
// derived from entries, never stored.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Credit(ctx context.Context, input CreditInput) (*models.LedgerEntry, error)
	Lock(ctx context.Context, accountID uuid.UUID, amountCents int64, reservationID uuid.UUID) (*models.LedgerEntry, error)
	Unlock(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	Balance(ctx context.Context, accountID uuid.UUID) (BalanceSnapshot, error)
	History(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	SweepExpired(ctx context.Context, now time.Time) ([]models.LedgerEntry, error)
	EnsureAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
}

// CreditInput captures one inbound credit.
type CreditInput struct {
	AccountID      uuid.UUID
	AmountCents    int64
	Kind           enums.EntryKind
	ExpiresAt      *time.Time
	IdempotencyKey *string
}

// TransferInput closes a lock and moves its value to the recipient,
// with the platform fee carved out in basis points.
type TransferInput struct {
	LockEntryID  uuid.UUID
	ToAccountID  uuid.UUID
	FeeBps       int
	FeeAccountID uuid.UUID
}

// TransferResult carries the entries a settlement produced.
type TransferResult struct {
	TransferOut *models.LedgerEntry
	TransferIn  *models.LedgerEntry
	Fee         *models.LedgerEntry
}

// HistoryPage is one cursor page of an account's entries, newest first.
type HistoryPage struct {
	Entries    []models.LedgerEntry
	NextCursor string
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*models.LedgerEntry, error) {
	if input.AccountID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "account id is required")
	}
	if input.AmountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "credit amount must be positive")
	}
	if !input.Kind.IsCredit() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("kind %q is not a credit kind", input.Kind))
	}

	if input.IdempotencyKey != nil {
		existing, err := s.repo.FindByIdempotencyKey(ctx, *input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	entry := &models.LedgerEntry{
		AccountID:      input.AccountID,
		AmountCents:    input.AmountCents,
		Kind:           input.Kind,
		ExpiresAt:      input.ExpiresAt,
		IdempotencyKey: input.IdempotencyKey,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		// A concurrent delivery with the same key won the insert race.
		if input.IdempotencyKey != nil && db.IsUniqueViolation(err, "ux_ledger_entries_idempotency_key") {
			return s.repo.FindByIdempotencyKey(ctx, *input.IdempotencyKey)
		}
		return nil, err
	}
	return entry, nil
}

// Lock earmarks spendable funds. The account row lock serializes the
// spendable check with the insert, so two concurrent locks cannot both
// pass admission against the same balance.
func (s *service) Lock(ctx context.Context, accountID uuid.UUID, amountCents int64, reservationID uuid.UUID) (*models.LedgerEntry, error) {
	if accountID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "account id is required")
	}
	if amountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "lock amount must be positive")
	}
	if reservationID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "reservation id is required")
	}

	if err := s.repo.LockAccountRow(ctx, accountID); err != nil {
		return nil, err
	}
	snapshot, err := s.repo.Balance(ctx, accountID, time.Now())
	if err != nil {
		return nil, err
	}
	if snapshot.SpendableCents < amountCents {
		return nil, apperrors.New(apperrors.CodeInsufficientFunds, "spendable balance is lower than the lock amount")
	}

	entry := &models.LedgerEntry{
		AccountID:     accountID,
		AmountCents:   -amountCents,
		Kind:          enums.EntryKindLock,
		ReservationID: &reservationID,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Unlock(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error) {
	lock, err := s.openLock(ctx, lockEntryID)
	if err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		AccountID:     lock.AccountID,
		AmountCents:   -lock.AmountCents,
		Kind:          enums.EntryKindUnlock,
		ReservationID: lock.ReservationID,
		LockEntryID:   &lock.ID,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "ux_ledger_entries_lock_release") {
			return nil, apperrors.New(apperrors.CodeStateConflict, "lock has already been released")
		}
		return nil, err
	}
	return entry, nil
}

func (s *service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.ToAccountID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "recipient account id is required")
	}
	if input.FeeBps < 0 || input.FeeBps >= 10000 {
		return nil, apperrors.New(apperrors.CodeValidation, "fee must be between 0 and 9999 basis points")
	}
	if input.FeeBps > 0 && input.FeeAccountID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "fee account id is required when a fee applies")
	}

	lock, err := s.openLock(ctx, input.LockEntryID)
	if err != nil {
		return nil, err
	}
	amount := -lock.AmountCents

	// Net rounds down, the remainder goes to the fee account, so
	// net + fee always equals the locked amount exactly.
	net := amount * int64(10000-input.FeeBps) / 10000
	fee := amount - net

	out := &models.LedgerEntry{
		AccountID:     lock.AccountID,
		AmountCents:   -amount,
		Kind:          enums.EntryKindTransferOut,
		ReservationID: lock.ReservationID,
		LockEntryID:   &lock.ID,
	}
	if err := s.repo.CreateEntry(ctx, out); err != nil {
		if db.IsUniqueViolation(err, "ux_ledger_entries_lock_release") {
			return nil, apperrors.New(apperrors.CodeStateConflict, "lock has already been released")
		}
		return nil, err
	}

	in := &models.LedgerEntry{
		AccountID:     input.ToAccountID,
		AmountCents:   net,
		Kind:          enums.EntryKindTransferIn,
		ReservationID: lock.ReservationID,
		LockEntryID:   &lock.ID,
	}
	if err := s.repo.CreateEntry(ctx, in); err != nil {
		return nil, err
	}

	result := &TransferResult{TransferOut: out, TransferIn: in}
	if fee > 0 {
		feeEntry := &models.LedgerEntry{
			AccountID:     input.FeeAccountID,
			AmountCents:   fee,
			Kind:          enums.EntryKindFee,
			ReservationID: lock.ReservationID,
			LockEntryID:   &lock.ID,
		}
		if err := s.repo.CreateEntry(ctx, feeEntry); err != nil {
			return nil, err
		}
		result.Fee = feeEntry
	}
	return result, nil
}

func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (BalanceSnapshot, error) {
	if accountID == uuid.Nil {
		return BalanceSnapshot{}, apperrors.New(apperrors.CodeValidation, "account id is required")
	}
	return s.repo.Balance(ctx, accountID, time.Now())
}

func (s *service) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if accountID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "account id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}
	entries, next, err := s.repo.ListByAccountID(ctx, accountID, params.Limit, cursor)
	if err != nil {
		return nil, err
	}
	page := &HistoryPage{Entries: entries}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// SweepExpired writes compensating expire entries for lapsed credits.
// The write-down is capped at the account's spendable sum, so a credit
// whose value sits under an open lock is only expired once the lock
// releases; spendable never goes negative. Runs are idempotent because
// fully compensated credits drop out of the candidate query, and the
// worker lock keeps sweeps from overlapping.
func (s *service) SweepExpired(ctx context.Context, now time.Time) ([]models.LedgerEntry, error) {
	credits, err := s.repo.ListExpiredCredits(ctx, now)
	if err != nil {
		return nil, err
	}

	available := make(map[uuid.UUID]int64)
	var swept []models.LedgerEntry
	for i := range credits {
		credit := credits[i]
		avail, ok := available[credit.Entry.AccountID]
		if !ok {
			avail, err = s.repo.SpendableSum(ctx, credit.Entry.AccountID)
			if err != nil {
				return swept, err
			}
		}
		amount := credit.RemainingCents
		if amount > avail {
			amount = avail
		}
		if amount <= 0 {
			available[credit.Entry.AccountID] = avail
			continue
		}

		entry := &models.LedgerEntry{
			AccountID:   credit.Entry.AccountID,
			AmountCents: -amount,
			Kind:        enums.EntryKindExpire,
			LockEntryID: &credit.Entry.ID,
		}
		if err := s.repo.CreateEntry(ctx, entry); err != nil {
			return swept, err
		}
		available[credit.Entry.AccountID] = avail - amount
		swept = append(swept, *entry)
	}
	return swept, nil
}

// EnsureAccount returns the user's wallet account, creating it on first use.
func (s *service) EnsureAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	if userID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &models.Account{UserID: userID}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "ux_accounts_user_id") {
			return s.repo.FindAccountByUserID(ctx, userID)
		}
		return nil, err
	}
	return account, nil
}

func (s *service) openLock(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error) {
	if lockEntryID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "lock entry id is required")
	}
	lock, err := s.repo.FindEntry(ctx, lockEntryID)
	if err != nil {
		return nil, err
	}
	if lock == nil || lock.Kind != enums.EntryKindLock {
		return nil, apperrors.New(apperrors.CodeNotFound, "lock entry not found")
	}
	release, err := s.repo.FindReleaseFor(ctx, lock.ID)
	if err != nil {
		return nil, err
	}
	if release != nil {
		return nil, apperrors.New(apperrors.CodeStateConflict, "lock has already been released")
	}
	return lock, nil
}
