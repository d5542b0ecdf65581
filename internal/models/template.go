package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Template struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID            string     `gorm:"type:uuid;index;not null" json:"owner_id"`
	Name               string     `gorm:"not null" json:"name"`
	Category           string     `gorm:"index" json:"category"`
	ResponsibilitiesEN string     `gorm:"type:text" json:"responsibilities_en"`
	ResponsibilitiesAR string     `gorm:"type:text" json:"responsibilities_ar"`
	Layout             JSONB      `gorm:"type:jsonb" json:"layout,omitempty"`
	Status             string     `gorm:"size:16;not null;default:draft;index" json:"status"`
	Version            int        `gorm:"not null;default:1" json:"version"`
	ParentID           *string    `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	ReviewNote         string     `json:"review_note,omitempty"`
	ReviewedBy         *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}
