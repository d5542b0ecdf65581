package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is addressed to one user, or to everyone when UserID is nil.
// Broadcast reads are tracked per user in NotificationReceipt.
type Notification struct {
	ID          string                `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      *string               `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Title       string                `json:"title"`
	Message     string                `gorm:"type:text;not null" json:"message"`
	Link        string                `json:"link,omitempty"`
	IsRead      bool                  `gorm:"not null;default:false" json:"is_read"`
	IsImportant bool                  `gorm:"not null;default:false" json:"is_important"`
	ExpiresAt   *time.Time            `gorm:"index" json:"expires_at,omitempty"`
	Receipts    []NotificationReceipt `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"receipts,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}

type NotificationReceipt struct {
	NotificationID string    `gorm:"type:uuid;primaryKey" json:"notification_id"`
	UserID         string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type NotificationTemplate struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Title     string    `json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Important bool      `json:"important"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
