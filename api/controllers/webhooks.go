package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/api/responses"
	"github.com/trocado-app/trocado-backend/internal/payments"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
	pkgerrors "github.com/trocado-app/trocado-backend/pkg/errors"
	"github.com/trocado-app/trocado-backend/pkg/logger"
)

const (
	paymentSignatureHeader = "X-Trocado-Signature"
	maxWebhookBodyBytes    = 1 << 20
)

// PaymentsWebhook ingests provider settlement notifications. The raw body is
// passed through untouched so the signature covers the exact bytes received.
func PaymentsWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := r.Header.Get(paymentSignatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "signature missing"))
			return
		}

		event, err := svc.HandleWebhook(ctx, raw, signature)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusOK
		if event.Status == enums.PaymentEventStatusRejected {
			status = http.StatusUnprocessableEntity
		}
		responses.WriteSuccessStatus(w, status, newPaymentEventResponse(event))
	}
}

type paymentEventResponse struct {
	ID              uuid.UUID `json:"id"`
	ProviderEventID string    `json:"provider_event_id"`
	AccountID       uuid.UUID `json:"account_id"`
	AmountCents     int64     `json:"amount_cents"`
	Status          string    `json:"status"`
	ReceivedAt      time.Time `json:"received_at"`
}

func newPaymentEventResponse(event *models.PaymentEvent) paymentEventResponse {
	return paymentEventResponse{
		ID:              event.ID,
		ProviderEventID: event.ProviderEventID,
		AccountID:       event.AccountID,
		AmountCents:     event.AmountCents,
		Status:          string(event.Status),
		ReceivedAt:      event.ReceivedAt,
	}
}
