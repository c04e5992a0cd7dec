package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reservationSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ReservationExpiryJobParams configure the reservation TTL sweep.
type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	Reservations reservationSweeper
}

// NewReservationExpiryJob builds the job that expires overdue pending
// reservations, refunds their escrow, and promotes waitlisted buyers.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservations service required")
	}
	return &reservationExpiryJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		now:          time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	reservations reservationSweeper
	now          func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.reservations.SweepExpired(ctx, j.now().UTC())
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	if err != nil {
		// partial progress still counts; expired reservations stay expired
		j.logg.Error(logCtx, "reservation expiry sweep finished with errors", err)
		return fmt.Errorf("reservation expiry sweep: %w", err)
	}
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return nil
}
