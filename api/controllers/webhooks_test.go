package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
	pkgerrors "github.com/trocado-app/trocado-backend/pkg/errors"
)

type testPaymentsService struct {
	handleFn func(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error)
}

func (s *testPaymentsService) VerifySignature(payload []byte, signature string) error {
	return nil
}

func (s *testPaymentsService) HandleWebhook(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error) {
	if s.handleFn != nil {
		return s.handleFn(ctx, raw, signature)
	}
	return nil, nil
}

func TestPaymentsWebhookApplied(t *testing.T) {
	event := &models.PaymentEvent{
		ID:              uuid.New(),
		ProviderEventID: "evt_1",
		AccountID:       uuid.New(),
		AmountCents:     3000,
		Status:          enums.PaymentEventStatusApplied,
	}
	svc := &testPaymentsService{
		handleFn: func(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error) {
			if signature != "sig" {
				t.Fatalf("unexpected signature %q", signature)
			}
			if string(raw) != `{"event_id":"evt_1"}` {
				t.Fatalf("unexpected body %q", raw)
			}
			return event, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{"event_id":"evt_1"}`))
	req.Header.Set(paymentSignatureHeader, "sig")

	resp := httptest.NewRecorder()
	PaymentsWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data paymentEventResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != string(enums.PaymentEventStatusApplied) {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestPaymentsWebhookRejectedAmount(t *testing.T) {
	svc := &testPaymentsService{
		handleFn: func(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error) {
			return &models.PaymentEvent{
				ID:              uuid.New(),
				ProviderEventID: "evt_2",
				AccountID:       uuid.New(),
				Status:          enums.PaymentEventStatusRejected,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{}`))
	req.Header.Set(paymentSignatureHeader, "sig")

	resp := httptest.NewRecorder()
	PaymentsWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPaymentsWebhookMissingSignature(t *testing.T) {
	called := false
	svc := &testPaymentsService{
		handleFn: func(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error) {
			called = true
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{}`))

	resp := httptest.NewRecorder()
	PaymentsWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if called {
		t.Fatal("service should not run without a signature header")
	}
}

func TestPaymentsWebhookBadSignature(t *testing.T) {
	svc := &testPaymentsService{
		handleFn: func(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error) {
			return nil, pkgerrors.New(pkgerrors.CodeSignature, "signature mismatch")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{}`))
	req.Header.Set(paymentSignatureHeader, "bad")

	resp := httptest.NewRecorder()
	PaymentsWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}
