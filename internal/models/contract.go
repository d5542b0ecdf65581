package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type Contract struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID            string     `gorm:"type:uuid;index;not null" json:"owner_id"`
	TemplateID         *string    `gorm:"type:uuid;index" json:"template_id,omitempty"`
	ReferenceNumber    string     `gorm:"uniqueIndex;size:32;not null" json:"reference_number"`
	Title              string     `json:"title"`
	FirstPartyNameEN   string     `gorm:"not null" json:"first_party_name_en"`
	FirstPartyNameAR   string     `json:"first_party_name_ar"`
	SecondPartyNameEN  string     `gorm:"not null" json:"second_party_name_en"`
	SecondPartyNameAR  string     `json:"second_party_name_ar"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	ResponsibilitiesEN string     `gorm:"type:text" json:"responsibilities_en"`
	ResponsibilitiesAR string     `gorm:"type:text" json:"responsibilities_ar"`
	SignatureURL       string     `json:"signature_url"`
	StampURL           string     `json:"stamp_url"`
	LetterheadURL      string     `json:"letterhead_url"`
	Status             string     `gorm:"size:16;not null;default:draft;index" json:"status"`
	Layout             JSONB      `gorm:"type:jsonb" json:"layout,omitempty"`
	ContractData       JSONB      `gorm:"type:jsonb" json:"contract_data,omitempty"`
	PDFURL             *string    `json:"pdf_url,omitempty"`
	ReviewedBy         *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Editable reports whether the owner may still change the contract.
func (c Contract) Editable() bool {
	return c.Status == StatusDraft || c.Status == StatusRejected
}
