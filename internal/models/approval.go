package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalToken binds a contract to an external party. Only the SHA-256 of
// the raw token is stored.
type ApprovalToken struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID string     `gorm:"type:uuid;index;not null" json:"contract_id"`
	TokenHash  string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	PartyEmail string     `json:"party_email"`
	CreatedBy  string     `gorm:"type:uuid" json:"created_by"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	Decision   string     `json:"decision,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (a *ApprovalToken) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
