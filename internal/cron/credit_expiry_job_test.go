package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/logger"
)

type fakeCreditSweeper struct {
	entries []models.LedgerEntry
	err     error
	calls   int
}

func (f *fakeCreditSweeper) SweepExpired(ctx context.Context, now time.Time) ([]models.LedgerEntry, error) {
	f.calls++
	return f.entries, f.err
}

func TestCreditExpiryJobSweeps(t *testing.T) {
	sweeper := &fakeCreditSweeper{entries: make([]models.LedgerEntry, 2)}
	jobIface, err := NewCreditExpiryJob(CreditExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Ledger: sweeper,
	})
	if err != nil {
		t.Fatalf("NewCreditExpiryJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

func TestCreditExpiryJobPropagatesError(t *testing.T) {
	sweeper := &fakeCreditSweeper{err: errors.New("boom")}
	jobIface, err := NewCreditExpiryJob(CreditExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Ledger: sweeper,
	})
	if err != nil {
		t.Fatalf("NewCreditExpiryJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
