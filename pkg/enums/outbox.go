package enums

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	EventReservationCreated   OutboxEventType = "reservation.created"
	EventReservationCancelled OutboxEventType = "reservation.cancelled"
	EventReservationConfirmed OutboxEventType = "reservation.confirmed"
	EventReservationExpired   OutboxEventType = "reservation.expired"
	EventWalletCredited       OutboxEventType = "wallet.credited"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationCreated,
	EventReservationCancelled,
	EventReservationConfirmed,
	EventReservationExpired,
	EventWalletCredited,
}

// IsValid reports whether the value matches the canonical outbox event type enum.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateAccount     OutboxAggregateType = "account"
)

// IsValid reports whether the value matches the canonical aggregate type enum.
func (t OutboxAggregateType) IsValid() bool {
	return t == AggregateReservation || t == AggregateAccount
}
