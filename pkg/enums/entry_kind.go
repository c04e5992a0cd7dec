package enums

import "fmt"

// EntryKind maps to the entry_kind_enum enum in Postgres.
type EntryKind string

const (
	EntryKindCreditPurchase EntryKind = "credit_purchase"
	EntryKindCreditBonus    EntryKind = "credit_bonus"
	EntryKindLock           EntryKind = "lock"
	EntryKindUnlock         EntryKind = "unlock"
	EntryKindTransferOut    EntryKind = "transfer_out"
	EntryKindTransferIn     EntryKind = "transfer_in"
	EntryKindFee            EntryKind = "fee"
	EntryKindExpire         EntryKind = "expire"
)

var validEntryKinds = []EntryKind{
	EntryKindCreditPurchase,
	EntryKindCreditBonus,
	EntryKindLock,
	EntryKindUnlock,
	EntryKindTransferOut,
	EntryKindTransferIn,
	EntryKindFee,
	EntryKindExpire,
}

// IsValid reports whether the value matches the canonical entry kind enum.
func (k EntryKind) IsValid() bool {
	for _, candidate := range validEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsCredit reports whether entries of this kind add spendable value.
func (k EntryKind) IsCredit() bool {
	return k == EntryKindCreditPurchase || k == EntryKindCreditBonus
}

// ParseEntryKind converts raw input into EntryKind.
func ParseEntryKind(value string) (EntryKind, error) {
	for _, candidate := range validEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry kind %q", value)
}
