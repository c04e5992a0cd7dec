package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/api/middleware"
	"github.com/trocado-app/trocado-backend/api/responses"
	"github.com/trocado-app/trocado-backend/api/validators"
	"github.com/trocado-app/trocado-backend/internal/reservations"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	pkgerrors "github.com/trocado-app/trocado-backend/pkg/errors"
	"github.com/trocado-app/trocado-backend/pkg/logger"
)

// ReservationCreate places a hold on an item funded by the caller's wallet.
func ReservationCreate(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), reservations.CreateInput{
			ItemID:      payload.ItemID,
			BuyerID:     buyerID,
			SellerID:    payload.SellerID,
			AmountCents: payload.AmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := createReservationResponse{
			Reservation:      newReservationResponse(result.Reservation),
			ConfirmationCode: result.ConfirmationCode,
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// ReservationCancel releases a pending hold and refunds the buyer.
func ReservationCancel(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservationID, err := reservationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelReservationRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if err := svc.Cancel(r.Context(), reservationID, actorID, strings.TrimSpace(payload.ReasonCode)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// ReservationConfirm settles a pending hold against the presented code.
func ReservationConfirm(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		reservationID, err := reservationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Confirm(r.Context(), reservationID, strings.TrimSpace(payload.Code))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newReservationResponse(record))
	}
}

// ReservationGet returns a single reservation by id.
func ReservationGet(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		reservationID, err := reservationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Get(r.Context(), reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newReservationResponse(record))
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func reservationIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "reservationId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id")
	}
	return id, nil
}

type createReservationRequest struct {
	ItemID      uuid.UUID `json:"item_id" validate:"required"`
	SellerID    uuid.UUID `json:"seller_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"required,gt=0"`
}

type cancelReservationRequest struct {
	ReasonCode string `json:"reason_code" validate:"omitempty,max=64"`
}

type confirmReservationRequest struct {
	Code string `json:"code" validate:"required"`
}

type createReservationResponse struct {
	Reservation reservationResponse `json:"reservation"`
	// ConfirmationCode is returned exactly once; only its hash is stored.
	ConfirmationCode string `json:"confirmation_code"`
}

type reservationResponse struct {
	ID               uuid.UUID  `json:"id"`
	ItemID           uuid.UUID  `json:"item_id"`
	BuyerID          uuid.UUID  `json:"buyer_id"`
	SellerID         uuid.UUID  `json:"seller_id"`
	AmountCents      int64      `json:"amount_cents"`
	Status           string     `json:"status"`
	CancelReasonCode *string    `json:"cancel_reason_code,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func newReservationResponse(record *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:               record.ID,
		ItemID:           record.ItemID,
		BuyerID:          record.BuyerID,
		SellerID:         record.SellerID,
		AmountCents:      record.AmountCents,
		Status:           string(record.Status),
		CancelReasonCode: record.CancelReasonCode,
		ExpiresAt:        record.ExpiresAt,
		ResolvedAt:       record.ResolvedAt,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}
