package model

import (
	"time"
)

// ContactGroup is a named, organisation-owned collection of contacts.
type ContactGroup struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	OrgID       string    `json:"org_id" gorm:"column:org_id;index;type:text" validate:"required"`
	Name        string    `json:"name" gorm:"type:text" validate:"required"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedBy   string    `json:"created_by,omitempty" gorm:"type:text"`
	UpdatedBy   string    `json:"updated_by,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the ContactGroup model.
func (ContactGroup) TableName() string {
	return "contact_groups"
}

// ContactGroupMember joins one Contact to one ContactGroup. It carries no
// organisation column of its own: tenancy is inherited through both parents,
// and the storage layer enforces that contact and group belong to the same
// organisation before a membership row is created.
type ContactGroupMember struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	ContactID string    `json:"contact_id" gorm:"type:text;uniqueIndex:idx_members_contact_group" validate:"required"`
	GroupID   string    `json:"group_id" gorm:"type:text;uniqueIndex:idx_members_contact_group" validate:"required"`
	JoinedAt  time.Time `json:"joined_at,omitempty" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the ContactGroupMember model.
func (ContactGroupMember) TableName() string {
	return "contact_group_members"
}
