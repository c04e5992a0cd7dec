package enums

// PaymentEventStatus maps to the payment_event_status_enum enum in Postgres.
type PaymentEventStatus string

const (
	PaymentEventStatusApplied  PaymentEventStatus = "applied"
	PaymentEventStatusRejected PaymentEventStatus = "rejected"
)

// IsValid reports whether the value matches the canonical payment event status enum.
func (s PaymentEventStatus) IsValid() bool {
	return s == PaymentEventStatusApplied || s == PaymentEventStatusRejected
}
