package model

import (
	"time"
)

// Contact is a message recipient. Phone numbers are stored in canonical
// local format and are unique within an organisation, not globally.
// Contacts are soft-deleted through IsActive while schedules reference them.
type Contact struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	OrgID       string    `json:"org_id" gorm:"column:org_id;type:text;uniqueIndex:idx_contacts_org_phone" validate:"required"`
	FirstName   string    `json:"first_name" gorm:"type:text" validate:"required"`
	LastName    string    `json:"last_name" gorm:"type:text" validate:"required"`
	PhoneNumber string    `json:"phone_number" gorm:"type:text;uniqueIndex:idx_contacts_org_phone" validate:"required"`
	Email       string    `json:"email,omitempty" gorm:"type:text"`
	Company     string    `json:"company,omitempty" gorm:"type:text"`
	AssignedTo  string    `json:"assigned_to,omitempty" gorm:"index;type:text"` // Assigned user ID (optional)
	OptOut      bool      `json:"opt_out" gorm:"default:false"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedBy   string    `json:"created_by,omitempty" gorm:"type:text"`
	UpdatedBy   string    `json:"updated_by,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Contact model.
func (Contact) TableName() string {
	return "contacts"
}

// Eligible reports whether the contact may receive outbound messages.
func (c Contact) Eligible() bool {
	return c.IsActive && !c.OptOut
}
