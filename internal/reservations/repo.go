package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
)

var activeStatuses = []enums.ReservationStatus{
	enums.ReservationStatusPending,
	enums.ReservationStatusConfirmed,
}

// TransitionUpdate carries the optional fields written alongside a
// status change.
type TransitionUpdate struct {
	CancelActorID    *uuid.UUID
	CancelReasonCode *string
}

// Repository manages persistence for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	Find(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*models.Reservation, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, update TransitionUpdate) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND status IN ?", itemID, activeStatuses).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

// Transition performs the compare-and-swap status update. It reports
// whether this writer won; zero rows affected means another transition
// already resolved the reservation.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, update TransitionUpdate) (bool, error) {
	now := time.Now()
	values := map[string]any{
		"status":      to,
		"resolved_at": now,
		"updated_at":  now,
	}
	if update.CancelActorID != nil {
		values["cancel_actor_id"] = *update.CancelActorID
	}
	if update.CancelReasonCode != nil {
		values["cancel_reason_code"] = *update.CancelReasonCode
	}
	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.ReservationStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}
