package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/pkg/enums"
)

// ReservationCreatedEvent signals a buyer placed a hold on an item. The
// confirmation code rides along so the dispatcher can deliver it to
// promoted entrants who never saw the create response.
type ReservationCreatedEvent struct {
	ReservationID    uuid.UUID `json:"reservation_id"`
	ItemID           uuid.UUID `json:"item_id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	AmountCents      int64     `json:"amount_cents"`
	ExpiresAt        time.Time `json:"expires_at"`
	ConfirmationCode string    `json:"confirmation_code"`
	Promoted         bool      `json:"promoted"`
}

// ReservationCancelledEvent is emitted when either party backs out before handoff.
type ReservationCancelledEvent struct {
	ReservationID  uuid.UUID `json:"reservation_id"`
	ItemID         uuid.UUID `json:"item_id"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	CancelActorID  uuid.UUID `json:"cancel_actor_id"`
	ReasonCode     string    `json:"reason_code,omitempty"`
	RefundedCents  int64     `json:"refunded_cents"`
	CancelledAt    time.Time `json:"cancelled_at"`
	PromotedUserID *uuid.UUID `json:"promoted_user_id,omitempty"`
}

// ReservationConfirmedEvent carries the settlement breakdown after handoff.
type ReservationConfirmedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ItemID        uuid.UUID `json:"item_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	GrossCents    int64     `json:"gross_cents"`
	FeeCents      int64     `json:"fee_cents"`
	NetCents      int64     `json:"net_cents"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// ReservationExpiredEvent reports a pending hold that hit its TTL.
type ReservationExpiredEvent struct {
	ReservationID  uuid.UUID  `json:"reservation_id"`
	ItemID         uuid.UUID  `json:"item_id"`
	BuyerID        uuid.UUID  `json:"buyer_id"`
	RefundedCents  int64      `json:"refunded_cents"`
	ExpiredAt      time.Time  `json:"expired_at"`
	PromotedUserID *uuid.UUID `json:"promoted_user_id,omitempty"`
}

// WalletCreditedEvent is emitted when points land in an account.
type WalletCreditedEvent struct {
	AccountID       uuid.UUID       `json:"account_id"`
	UserID          uuid.UUID       `json:"user_id"`
	AmountCents     int64           `json:"amount_cents"`
	Kind            enums.EntryKind `json:"kind"`
	ProviderEventID string          `json:"provider_event_id,omitempty"`
	CreditedAt      time.Time       `json:"credited_at"`
}
