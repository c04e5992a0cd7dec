package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/pkg/enums"
)

// LedgerEntry is an immutable signed monetary record in the smallest
// currency unit. Rows are only ever inserted, never updated or deleted.
type LedgerEntry struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID      uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	AmountCents    int64           `gorm:"column:amount_cents;not null"`
	Kind           enums.EntryKind `gorm:"column:kind;type:entry_kind_enum;not null"`
	ExpiresAt      *time.Time      `gorm:"column:expires_at"`
	IdempotencyKey *string         `gorm:"column:idempotency_key;uniqueIndex"`
	ReservationID  *uuid.UUID      `gorm:"column:reservation_id;type:uuid;index"`
	// LockEntryID points at the entry this one compensates: for unlock
	// and transfer_out that is the lock being closed (unique per lock
	// via ux_ledger_entries_lock_release), for expire it is the lapsed
	// credit being written down, possibly across several slices.
	LockEntryID *uuid.UUID `gorm:"column:lock_entry_id;type:uuid;index"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
