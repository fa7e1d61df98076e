package model

import (
	"time"
)

// Organisation is the tenant root. Rows are created and updated by the
// external identity sync, never by in-system user action.
type Organisation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text" validate:"required"` // identity-provider org ID
	Name      string    `json:"name" gorm:"type:text" validate:"required"`
	Slug      string    `json:"slug,omitempty" gorm:"type:text"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Organisation model.
func (Organisation) TableName() string {
	return "organisations"
}

// OrganisationMembership links an external user to an Organisation.
// Kept in sync from identity events; the core only reads it.
type OrganisationMembership struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	UserID    string    `json:"user_id" gorm:"type:text;uniqueIndex:idx_memberships_user_org" validate:"required"`
	OrgID     string    `json:"org_id" gorm:"column:org_id;type:text;uniqueIndex:idx_memberships_user_org" validate:"required"`
	Role      string    `json:"role,omitempty" gorm:"type:text;default:member"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the OrganisationMembership model.
func (OrganisationMembership) TableName() string {
	return "organisation_memberships"
}
