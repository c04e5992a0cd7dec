package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/logger"
)

type creditSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) ([]models.LedgerEntry, error)
}

// CreditExpiryJobParams configure the expiring-credit sweep.
type CreditExpiryJobParams struct {
	Logger *logger.Logger
	Ledger creditSweeper
}

// NewCreditExpiryJob builds the job that writes the compensating expire
// entries for promotional credits whose expiry has lapsed. Lapsed credits
// are already excluded from spendable balance, so the sweep only settles
// the books.
func NewCreditExpiryJob(params CreditExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &creditExpiryJob{
		logg:   params.Logger,
		ledger: params.Ledger,
		now:    time.Now,
	}, nil
}

type creditExpiryJob struct {
	logg   *logger.Logger
	ledger creditSweeper
	now    func() time.Time
}

func (j *creditExpiryJob) Name() string { return "credit-expiry" }

func (j *creditExpiryJob) Run(ctx context.Context) error {
	entries, err := j.ledger.SweepExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("credit expiry sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": len(entries)})
	j.logg.Info(logCtx, "credit expiry sweep complete")
	return nil
}
