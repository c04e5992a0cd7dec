package models

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is one user's position in an item's FIFO interest queue.
// Unique (item_id, user_id) keeps a user from appearing twice.
type WaitlistEntry struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID     uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:ux_waitlist_item_user"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_waitlist_item_user"`
	EnqueuedAt time.Time `gorm:"column:enqueued_at;autoCreateTime;index"`
}
