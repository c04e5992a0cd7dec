package waitlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trocado-app/trocado-backend/pkg/db/models"
	"github.com/trocado-app/trocado-backend/pkg/enums"
)

// Repository manages persistence for waitlist entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.WaitlistEntry) error
	Find(ctx context.Context, itemID, userID uuid.UUID) (*models.WaitlistEntry, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.WaitlistEntry, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteByItemAndUser(ctx context.Context, itemID, userID uuid.UUID) (bool, error)
	DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
	HasActiveReservation(ctx context.Context, itemID, userID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a waitlist repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) Find(ctx context.Context, itemID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("enqueued_at ASC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// Delete removes one entry by id and reports whether a row was removed,
// so a racing promotion can tell it lost the pop.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.WaitlistEntry{})
	return result.RowsAffected > 0, result.Error
}

func (r *repository) DeleteByItemAndUser(ctx context.Context, itemID, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		Delete(&models.WaitlistEntry{})
	return result.RowsAffected > 0, result.Error
}

func (r *repository) DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Delete(&models.WaitlistEntry{})
	return result.RowsAffected, result.Error
}

// HasActiveReservation reports whether the user already holds a pending
// or confirmed reservation on the item.
func (r *repository) HasActiveReservation(ctx context.Context, itemID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("item_id = ? AND buyer_id = ? AND status IN ?", itemID, userID, []enums.ReservationStatus{
			enums.ReservationStatusPending,
			enums.ReservationStatusConfirmed,
		}).
		Count(&count).Error
	return count > 0, err
}
