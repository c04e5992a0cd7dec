package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/internal/ledger"
	"github.com/trocado-app/trocado-backend/pkg/config"
	"github.com/trocado-app/trocado-backend/pkg/db"
	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
	apperrors "github.com/trocado-app/trocado-backend/pkg/errors"
	"github.com/trocado-app/trocado-backend/pkg/logger"
	"github.com/trocado-app/trocado-backend/pkg/outbox"
	"github.com/trocado-app/trocado-backend/pkg/outbox/payloads"
)

const (
	supportedCurrency   = "BRL"
	signaturePrefix     = "sha256="
	idempotencyScope    = "payments"
	uniqueProviderEvent = "ux_payment_events_provider_event_id"
)

// WebhookPayload is the body the payment provider posts after a top-up
// settles. Amount is a decimal string in whole currency units ("30.00").
type WebhookPayload struct {
	EventID  string    `json:"event_id" validate:"required,max=128"`
	UserID   uuid.UUID `json:"user_id" validate:"required"`
	Amount   string    `json:"amount" validate:"required,max=32"`
	Currency string    `json:"currency" validate:"required,len=3"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Service turns verified provider notifications into ledger credits.
// Replays of the same provider event are absorbed without double-crediting.
type Service interface {
	VerifySignature(payload []byte, signature string) error
	HandleWebhook(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error)
}

type ServiceParams struct {
	DB          txRunner
	Repo        Repository
	Ledger      ledger.Service
	Outbox      outboxEmitter
	Idempotency idempotencyStore
	Config      config.PaymentsConfig
	Logger      *logger.Logger
}

type service struct {
	tx       txRunner
	repo     Repository
	ledger   ledger.Service
	outbox   outboxEmitter
	idem     idempotencyStore
	secret   []byte
	idemTTL  time.Duration
	validate *validator.Validate
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction runner is required")
	}
	if params.Repo == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "payments repository is required")
	}
	if params.Ledger == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "ledger service is required")
	}
	if params.Outbox == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "outbox service is required")
	}
	if params.Config.SigningSecret == "" {
		return nil, apperrors.New(apperrors.CodeInternal, "payments signing secret is required")
	}
	return &service{
		tx:       params.DB,
		repo:     params.Repo,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		idem:     params.Idempotency,
		secret:   []byte(params.Config.SigningSecret),
		idemTTL:  params.Config.IdempotencyTTL,
		validate: validator.New(),
		logg:     params.Logger,
	}, nil
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw body.
// It must pass before the body is parsed or any state is touched.
func (s *service) VerifySignature(payload []byte, signature string) error {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	if signature == "" {
		return apperrors.New(apperrors.CodeSignature, "missing webhook signature")
	}
	presented, err := hex.DecodeString(signature)
	if err != nil {
		return apperrors.New(apperrors.CodeSignature, "malformed webhook signature")
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	if !hmac.Equal(presented, mac.Sum(nil)) {
		return apperrors.New(apperrors.CodeSignature, "webhook signature mismatch")
	}
	return nil
}

// HandleWebhook verifies, validates, and applies one provider notification.
// The returned row reports the stored outcome: status applied means the
// account was credited, status rejected means the event was recorded but
// carried an amount the ledger will not accept. Replays return the
// original row unchanged.
func (s *service) HandleWebhook(ctx context.Context, raw []byte, signature string) (*models.PaymentEvent, error) {
	if err := s.VerifySignature(raw, signature); err != nil {
		return nil, err
	}

	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "malformed webhook body")
	}
	if err := s.validate.Struct(payload); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid webhook body")
	}

	if existing := s.replayFastPath(ctx, payload.EventID); existing != nil {
		return existing, nil
	}

	centavos, amountErr := parseAmount(payload.Amount, payload.Currency)

	var result *models.PaymentEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByProviderEventID(ctx, payload.EventID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		ledgerTx := s.ledger.WithTx(tx)
		account, err := ledgerTx.EnsureAccount(ctx, payload.UserID)
		if err != nil {
			return err
		}

		event := &models.PaymentEvent{
			ProviderEventID: payload.EventID,
			AccountID:       account.ID,
			AmountCents:     centavos,
		}

		if amountErr != nil {
			event.Status = enums.PaymentEventStatusRejected
			if err := repo.Insert(ctx, event); err != nil {
				return err
			}
			result = event
			return nil
		}

		entry, err := ledgerTx.Credit(ctx, ledger.CreditInput{
			AccountID:      account.ID,
			AmountCents:    centavos,
			Kind:           enums.EntryKindCreditPurchase,
			IdempotencyKey: &payload.EventID,
		})
		if err != nil {
			return err
		}

		event.Status = enums.PaymentEventStatusApplied
		event.LedgerEntryID = &entry.ID
		if err := repo.Insert(ctx, event); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletCredited,
			AggregateType: enums.AggregateAccount,
			AggregateID:   account.ID,
			Data: payloads.WalletCreditedEvent{
				AccountID:       account.ID,
				UserID:          payload.UserID,
				AmountCents:     centavos,
				Kind:            enums.EntryKindCreditPurchase,
				ProviderEventID: payload.EventID,
				CreditedAt:      entry.CreatedAt,
			},
		}); err != nil {
			return err
		}
		result = event
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniqueProviderEvent) {
			return s.repo.FindByProviderEventID(ctx, payload.EventID)
		}
		return nil, err
	}

	s.markSeen(ctx, payload.EventID)
	if s.logg != nil && result != nil {
		logCtx := s.logg.WithAccountID(ctx, result.AccountID.String())
		logCtx = s.logg.WithField(logCtx, "provider_event_id", payload.EventID)
		if result.Status == enums.PaymentEventStatusApplied {
			s.logg.Info(logCtx, "wallet credited")
		} else {
			s.logg.Warn(logCtx, "payment event rejected")
		}
	}
	return result, nil
}

// replayFastPath consults redis so repeated deliveries skip the database.
// A miss or a redis failure just falls through to the transactional path.
func (s *service) replayFastPath(ctx context.Context, providerEventID string) *models.PaymentEvent {
	if s.idem == nil {
		return nil
	}
	key := s.idem.IdempotencyKey(idempotencyScope, providerEventID)
	if _, err := s.idem.Get(ctx, key); err != nil {
		return nil
	}
	existing, err := s.repo.FindByProviderEventID(ctx, providerEventID)
	if err != nil {
		return nil
	}
	return existing
}

func (s *service) markSeen(ctx context.Context, providerEventID string) {
	if s.idem == nil {
		return
	}
	key := s.idem.IdempotencyKey(idempotencyScope, providerEventID)
	if _, err := s.idem.SetNX(ctx, key, "1", s.idemTTL); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "provider_event_id", providerEventID), "idempotency cache write failed")
	}
}

// parseAmount converts a decimal currency string into centavos. Anything
// that does not land on a whole centavo, or is not positive, is rejected.
func parseAmount(amount, currency string) (int64, error) {
	if !strings.EqualFold(currency, supportedCurrency) {
		return 0, apperrors.New(apperrors.CodeValidation, "unsupported currency")
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeValidation, err, "malformed amount")
	}
	centavos := parsed.Mul(decimal.NewFromInt(100))
	if !centavos.IsInteger() {
		return 0, apperrors.New(apperrors.CodeValidation, "amount has sub-centavo precision")
	}
	if centavos.Sign() <= 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	return centavos.IntPart(), nil
}
