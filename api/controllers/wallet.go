package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/api/responses"
	"github.com/trocado-app/trocado-backend/api/validators"
	"github.com/trocado-app/trocado-backend/internal/ledger"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	pkgerrors "github.com/trocado-app/trocado-backend/pkg/errors"
	"github.com/trocado-app/trocado-backend/pkg/logger"
	"github.com/trocado-app/trocado-backend/pkg/pagination"
)


// WalletBalance returns the caller's spendable and locked balances.
func WalletBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.EnsureAccount(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Balance(r.Context(), account.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, walletBalanceResponse{
			AccountID:      account.ID,
			SpendableCents: snapshot.SpendableCents,
			LockedCents:    snapshot.LockedCents,
			TotalCents:     snapshot.TotalCents,
		})
	}
}

// WalletHistory lists the caller's ledger entries, newest first.
func WalletHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.EnsureAccount(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), account.ID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]ledgerEntryResponse, 0, len(page.Entries))
		for _, entry := range page.Entries {
			items = append(items, newLedgerEntryResponse(entry))
		}
		responses.WriteSuccess(w, walletHistoryResponse{
			AccountID:  account.ID,
			Entries:    items,
			NextCursor: page.NextCursor,
		})
	}
}

type walletBalanceResponse struct {
	AccountID      uuid.UUID `json:"account_id"`
	SpendableCents int64     `json:"spendable_cents"`
	LockedCents    int64     `json:"locked_cents"`
	TotalCents     int64     `json:"total_cents"`
}

type walletHistoryResponse struct {
	AccountID  uuid.UUID             `json:"account_id"`
	Entries    []ledgerEntryResponse `json:"entries"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type ledgerEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	AmountCents   int64      `json:"amount_cents"`
	Kind          string     `json:"kind"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newLedgerEntryResponse(entry models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:            entry.ID,
		AmountCents:   entry.AmountCents,
		Kind:          string(entry.Kind),
		ReservationID: entry.ReservationID,
		ExpiresAt:     entry.ExpiresAt,
		CreatedAt:     entry.CreatedAt,
	}
}
