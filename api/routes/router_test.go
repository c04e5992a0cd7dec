package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/internal/ledger"
	"github.com/trocado-app/trocado-backend/internal/reservations"
	"github.com/trocado-app/trocado-backend/internal/waitlist"
	pkgAuth "github.com/trocado-app/trocado-backend/pkg/auth"
	"github.com/trocado-app/trocado-backend/pkg/config"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/logger"
	"github.com/trocado-app/trocado-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubLedgerService struct{}

func (s stubLedgerService) WithTx(tx *gorm.DB) ledger.Service {
	return s
}

func (stubLedgerService) Credit(ctx context.Context, input ledger.CreditInput) (*models.LedgerEntry, error) {
	panic("unimplemented")
}

func (stubLedgerService) Lock(ctx context.Context, accountID uuid.UUID, amountCents int64, reservationID uuid.UUID) (*models.LedgerEntry, error) {
	panic("unimplemented")
}

func (stubLedgerService) Unlock(ctx context.Context, lockEntryID uuid.UUID) (*models.LedgerEntry, error) {
	panic("unimplemented")
}

func (stubLedgerService) Transfer(ctx context.Context, input ledger.TransferInput) (*ledger.TransferResult, error) {
	panic("unimplemented")
}

func (stubLedgerService) Balance(ctx context.Context, accountID uuid.UUID) (ledger.BalanceSnapshot, error) {
	return ledger.BalanceSnapshot{SpendableCents: 1000, TotalCents: 1000}, nil
}

func (stubLedgerService) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*ledger.HistoryPage, error) {
	return &ledger.HistoryPage{}, nil
}

func (stubLedgerService) SweepExpired(ctx context.Context, now time.Time) ([]models.LedgerEntry, error) {
	panic("unimplemented")
}

func (stubLedgerService) EnsureAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return &models.Account{ID: uuid.New(), UserID: userID}, nil
}

type stubReservationService struct{}

func (stubReservationService) Create(ctx context.Context, input reservations.CreateInput) (*reservations.CreateResult, error) {
	panic("unimplemented")
}

func (stubReservationService) Cancel(ctx context.Context, reservationID, actorID uuid.UUID, reasonCode string) error {
	panic("unimplemented")
}

func (stubReservationService) Confirm(ctx context.Context, reservationID uuid.UUID, presentedCode string) (*models.Reservation, error) {
	panic("unimplemented")
}

func (stubReservationService) Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	panic("unimplemented")
}

func (stubReservationService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	panic("unimplemented")
}

type stubWaitlistService struct{}

func (s stubWaitlistService) WithTx(tx *gorm.DB) waitlist.Service {
	return s
}

func (stubWaitlistService) Enqueue(ctx context.Context, itemID, userID uuid.UUID) (int, error) {
	panic("unimplemented")
}

func (stubWaitlistService) Position(ctx context.Context, itemID, userID uuid.UUID) (int, error) {
	return 1, nil
}

func (stubWaitlistService) Withdraw(ctx context.Context, itemID, userID uuid.UUID) error {
	panic("unimplemented")
}

func (stubWaitlistService) Close(ctx context.Context, itemID uuid.UUID) error {
	panic("unimplemented")
}

func (stubWaitlistService) PromoteNext(ctx context.Context, tx *gorm.DB, itemID, sellerID uuid.UUID, amountCents int64, creator waitlist.ReservationCreator) (*models.Reservation, error) {
	panic("unimplemented")
}

type stubPaymentsService struct{}

func (stubPaymentsService) VerifySignature(payload []byte, signature string) error {
	return nil
}

func (stubPaymentsService) HandleWebhook(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error) {
	panic("unimplemented")
}

func newTestRouter(t *testing.T) (http.Handler, config.JWTConfig) {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "trocado", ExpirationMinutes: 60}

	logg := logger.New(logger.Options{ServiceName: "router-test"})

	router := NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubPinger{},
		stubLedgerService{},
		stubReservationService{},
		stubWaitlistService{},
		stubPaymentsService{},
	)
	return router, cfg.JWT
}

func mintToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{UserID: userID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Trocado-Env"); got != "test" {
		t.Fatalf("expected env header test got %q", got)
	}
}

func TestHealthReady(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	router, jwtCfg := newTestRouter(t)
	token := mintToken(t, jwtCfg, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestWaitlistPositionRoute(t *testing.T) {
	router, jwtCfg := newTestRouter(t)
	token := mintToken(t, jwtCfg, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/"+uuid.NewString()+"/waitlist/position", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPaymentsWebhookIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	// No signature header: the controller rejects before the service runs,
	// but the route itself must not demand a bearer token.
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}
