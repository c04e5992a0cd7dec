package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/pkg/enums"
)

// Reservation is one buyer's exclusive, time-bounded hold on one item.
// A partial unique index on item_id (status in pending/confirmed) enforces
// at most one active reservation per item.
type Reservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID      uuid.UUID               `gorm:"column:item_id;type:uuid;not null;index"`
	BuyerID     uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID    uuid.UUID               `gorm:"column:seller_id;type:uuid;not null"`
	AmountCents int64                   `gorm:"column:amount_cents;not null"`
	Status      enums.ReservationStatus `gorm:"column:status;type:reservation_status_enum;not null;default:'pending'"`
	// Only the argon2id hash of the single-use confirmation code is stored.
	ConfirmationCodeHash string     `gorm:"column:confirmation_code_hash;not null"`
	LockEntryID          uuid.UUID  `gorm:"column:lock_entry_id;type:uuid;not null"`
	CancelActorID        *uuid.UUID `gorm:"column:cancel_actor_id;type:uuid"`
	CancelReasonCode     *string    `gorm:"column:cancel_reason_code"`
	ExpiresAt            time.Time  `gorm:"column:expires_at;not null;index"`
	ResolvedAt           *time.Time `gorm:"column:resolved_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
