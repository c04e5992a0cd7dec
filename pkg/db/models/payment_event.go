package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/pkg/enums"
)

// PaymentEvent records the outcome of one provider notification so that
// crediting stays idempotent on provider_event_id. Never mutated after insert.
type PaymentEvent struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderEventID string                   `gorm:"column:provider_event_id;uniqueIndex;not null"`
	AccountID       uuid.UUID                `gorm:"column:account_id;type:uuid;not null;index"`
	AmountCents     int64                    `gorm:"column:amount_cents;not null"`
	Status          enums.PaymentEventStatus `gorm:"column:status;type:payment_event_status_enum;not null"`
	LedgerEntryID   *uuid.UUID               `gorm:"column:ledger_entry_id;type:uuid"`
	ReceivedAt      time.Time                `gorm:"column:received_at;autoCreateTime"`
}
