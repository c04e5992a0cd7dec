package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
	"github.com/trocado-app/trocado-backend/pkg/pagination"
)

// compensatedExpirySQL sums, per outer credit row, the value its expire
// entries have already written down.
const compensatedExpirySQL = "COALESCE((SELECT -SUM(comp.amount_cents) FROM ledger_entries comp" +
	" WHERE comp.kind = 'expire' AND comp.lock_entry_id = ledger_entries.id), 0)"

// BalanceSnapshot is a point-in-time read of an account's derived balance.
type BalanceSnapshot struct {
	SpendableCents int64 `json:"spendable_cents"`
	LockedCents    int64 `json:"locked_cents"`
	TotalCents     int64 `json:"total_cents"`
}

// ExpiredCredit pairs a lapsed credit with the amount no expire entry
// has written down yet.
type ExpiredCredit struct {
	Entry          models.LedgerEntry
	RemainingCents int64
}

// Repository manages persistence for ledger entries. Entries are append
// only; there is deliberately no update or delete method.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	FindEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error)
	FindReleaseFor(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error)
	Balance(ctx context.Context, accountID uuid.UUID, now time.Time) (BalanceSnapshot, error)
	SpendableSum(ctx context.Context, accountID uuid.UUID) (int64, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, *pagination.Cursor, error)
	ListExpiredCredits(ctx context.Context, now time.Time) ([]ExpiredCredit, error)
	LockAccountRow(ctx context.Context, accountID uuid.UUID) error
	FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindReleaseFor returns the entry that closed the given lock, if any.
func (r *repository) FindReleaseFor(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("lock_entry_id = ? AND kind IN ?", lockEntryID, []enums.EntryKind{
			enums.EntryKindUnlock,
			enums.EntryKindTransferOut,
		}).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Balance derives spendable/locked/total in a single aggregate pass.
// Credit entries are positive, lock/transfer_out/expire negative and
// unlock positive, so spendable is the plain sum once transfer_out is
// excluded (a transfer consumes value the lock already removed).
func (r *repository) Balance(ctx context.Context, accountID uuid.UUID, now time.Time) (BalanceSnapshot, error) {
	var row struct {
		Spendable int64
		Locked    int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select(`
			COALESCE(SUM(CASE WHEN kind <> 'transfer_out' THEN amount_cents ELSE 0 END), 0) AS spendable,
			COALESCE(SUM(CASE
				WHEN kind = 'lock' THEN -amount_cents
				WHEN kind = 'unlock' THEN -amount_cents
				WHEN kind = 'transfer_out' THEN amount_cents
				ELSE 0
			END), 0) AS locked`).
		Where("account_id = ?", accountID).
		Scan(&row).Error
	if err != nil {
		return BalanceSnapshot{}, err
	}

	// Credits past their expiry that the sweep has not yet written down
	// are already unspendable, but only up to what is actually spendable:
	// lapsed value sitting under an open lock is deducted by the lock
	// itself and expires once the lock releases.
	var pendingExpiry int64
	err = r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount_cents - " + compensatedExpirySQL + "), 0)").
		Where("account_id = ? AND kind IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			accountID,
			[]enums.EntryKind{enums.EntryKindCreditPurchase, enums.EntryKindCreditBonus},
			now).
		Scan(&pendingExpiry).Error
	if err != nil {
		return BalanceSnapshot{}, err
	}

	available := row.Spendable
	if available < 0 {
		available = 0
	}
	if pendingExpiry > available {
		pendingExpiry = available
	}
	if pendingExpiry < 0 {
		pendingExpiry = 0
	}

	spendable := row.Spendable - pendingExpiry
	return BalanceSnapshot{
		SpendableCents: spendable,
		LockedCents:    row.Locked,
		TotalCents:     spendable + row.Locked,
	}, nil
}

func (r *repository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var entries []models.LedgerEntry
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		entries = entries[:normalized]
		last := entries[len(entries)-1]
		return entries, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return entries, nil, nil
}

// ListExpiredCredits returns credit entries past expiry that expire
// entries have not fully written down, oldest expiry first.
func (r *repository) ListExpiredCredits(ctx context.Context, now time.Time) ([]ExpiredCredit, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("kind IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			[]enums.EntryKind{enums.EntryKindCreditPurchase, enums.EntryKindCreditBonus},
			now).
		Where("amount_cents > " + compensatedExpirySQL).
		Order("expires_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	credits := make([]ExpiredCredit, 0, len(entries))
	for i := range entries {
		var compensated int64
		err := r.db.WithContext(ctx).
			Model(&models.LedgerEntry{}).
			Select("COALESCE(-SUM(amount_cents), 0)").
			Where("kind = 'expire' AND lock_entry_id = ?", entries[i].ID).
			Scan(&compensated).Error
		if err != nil {
			return nil, err
		}
		credits = append(credits, ExpiredCredit{
			Entry:          entries[i],
			RemainingCents: entries[i].AmountCents - compensated,
		})
	}
	return credits, nil
}

// SpendableSum is the raw signed sum with transfer_out excluded, before
// any deduction for lapsed credits the sweep has not written down.
func (r *repository) SpendableSum(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(CASE WHEN kind <> 'transfer_out' THEN amount_cents ELSE 0 END), 0)").
		Where("account_id = ?", accountID).
		Scan(&sum).Error
	return sum, err
}

// LockAccountRow serializes ledger mutations for one account for the
// duration of the surrounding transaction. Touching the row takes the
// same row lock as SELECT FOR UPDATE.
func (r *repository) LockAccountRow(ctx context.Context, accountID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("updated_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(account).Error
}
