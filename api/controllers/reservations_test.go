package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trocado-app/trocado-backend/api/middleware"
	"github.com/trocado-app/trocado-backend/internal/reservations"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
	pkgerrors "github.com/trocado-app/trocado-backend/pkg/errors"
	"github.com/trocado-app/trocado-backend/pkg/logger"
)

type testReservationService struct {
	createFn  func(ctx context.Context, input reservations.CreateInput) (*reservations.CreateResult, error)
	cancelFn  func(ctx context.Context, reservationID, actorID uuid.UUID, reasonCode string) error
	confirmFn func(ctx context.Context, reservationID uuid.UUID, presentedCode string) (*models.Reservation, error)
	getFn     func(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
}

func (s *testReservationService) Create(ctx context.Context, input reservations.CreateInput) (*reservations.CreateResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return nil, nil
}

func (s *testReservationService) Cancel(ctx context.Context, reservationID, actorID uuid.UUID, reasonCode string) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, reservationID, actorID, reasonCode)
	}
	return nil
}

func (s *testReservationService) Confirm(ctx context.Context, reservationID uuid.UUID, presentedCode string) (*models.Reservation, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, reservationID, presentedCode)
	}
	return nil, nil
}

func (s *testReservationService) Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	if s.getFn != nil {
		return s.getFn(ctx, reservationID)
	}
	return nil, nil
}

func (s *testReservationService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withReservationRoute(req *http.Request, userID uuid.UUID, reservationID string) *http.Request {
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	routeCtx := chi.NewRouteContext()
	if reservationID != "" {
		routeCtx.URLParams.Add("reservationId", reservationID)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestReservationCreateSuccess(t *testing.T) {
	buyerID := uuid.New()
	itemID := uuid.New()
	sellerID := uuid.New()
	record := &models.Reservation{
		ID:          uuid.New(),
		ItemID:      itemID,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		AmountCents: 3000,
		Status:      enums.ReservationStatusPending,
	}

	svc := &testReservationService{
		createFn: func(ctx context.Context, input reservations.CreateInput) (*reservations.CreateResult, error) {
			if input.BuyerID != buyerID {
				t.Fatalf("unexpected buyer %s", input.BuyerID)
			}
			if input.ItemID != itemID || input.SellerID != sellerID || input.AmountCents != 3000 {
				t.Fatalf("unexpected input %+v", input)
			}
			return &reservations.CreateResult{Reservation: record, ConfirmationCode: "A1B2C3D4"}, nil
		},
	}

	body := `{"item_id":"` + itemID.String() + `","seller_id":"` + sellerID.String() + `","amount_cents":3000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	req = withReservationRoute(req, buyerID, "")

	resp := httptest.NewRecorder()
	ReservationCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data createReservationResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.ConfirmationCode != "A1B2C3D4" {
		t.Fatalf("missing confirmation code in %s", resp.Body.String())
	}
	if envelope.Data.Reservation.ID != record.ID {
		t.Fatalf("unexpected reservation id %s", envelope.Data.Reservation.ID)
	}
}

func TestReservationCreateRejectsMissingFields(t *testing.T) {
	svc := &testReservationService{
		createFn: func(ctx context.Context, input reservations.CreateInput) (*reservations.CreateResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`))
	req = withReservationRoute(req, uuid.New(), "")

	resp := httptest.NewRecorder()
	ReservationCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestReservationCreateInsufficientFunds(t *testing.T) {
	svc := &testReservationService{
		createFn: func(ctx context.Context, input reservations.CreateInput) (*reservations.CreateResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "spendable balance too low")
		},
	}

	body := `{"item_id":"` + uuid.NewString() + `","seller_id":"` + uuid.NewString() + `","amount_cents":3000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	req = withReservationRoute(req, uuid.New(), "")

	resp := httptest.NewRecorder()
	ReservationCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReservationCancelPassesActor(t *testing.T) {
	actorID := uuid.New()
	reservationID := uuid.New()
	called := false
	svc := &testReservationService{
		cancelFn: func(ctx context.Context, rid, aid uuid.UUID, reason string) error {
			called = true
			if rid != reservationID {
				t.Fatalf("unexpected reservation %s", rid)
			}
			if aid != actorID {
				t.Fatalf("unexpected actor %s", aid)
			}
			if reason != "changed_mind" {
				t.Fatalf("unexpected reason %q", reason)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+reservationID.String()+"/cancel", strings.NewReader(`{"reason_code":"changed_mind"}`))
	req = withReservationRoute(req, actorID, reservationID.String())

	resp := httptest.NewRecorder()
	ReservationCancel(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestReservationCancelAcceptsEmptyBody(t *testing.T) {
	svc := &testReservationService{}

	reservationID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+reservationID.String()+"/cancel", nil)
	req = withReservationRoute(req, uuid.New(), reservationID.String())

	resp := httptest.NewRecorder()
	ReservationCancel(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReservationCancelForbiddenForOutsider(t *testing.T) {
	reservationID := uuid.New()
	svc := &testReservationService{
		cancelFn: func(ctx context.Context, rid, aid uuid.UUID, reason string) error {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or seller may cancel this reservation")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+reservationID.String()+"/cancel", nil)
	req = withReservationRoute(req, uuid.New(), reservationID.String())

	resp := httptest.NewRecorder()
	ReservationCancel(svc, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReservationConfirmInvalidCode(t *testing.T) {
	reservationID := uuid.New()
	svc := &testReservationService{
		confirmFn: func(ctx context.Context, rid uuid.UUID, code string) (*models.Reservation, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidCode, "confirmation code mismatch")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+reservationID.String()+"/confirm", strings.NewReader(`{"code":"WRONG"}`))
	req = withReservationRoute(req, uuid.New(), reservationID.String())

	resp := httptest.NewRecorder()
	ReservationConfirm(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReservationGetRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/not-a-uuid", nil)
	req = withReservationRoute(req, uuid.New(), "not-a-uuid")

	resp := httptest.NewRecorder()
	ReservationGet(&testReservationService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
