package model

import (
	"time"
)

// Template is a reusable, organisation-owned message body.
type Template struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	OrgID     string    `json:"org_id" gorm:"column:org_id;index;type:text" validate:"required"`
	Name      string    `json:"name" gorm:"type:text" validate:"required"`
	Text      string    `json:"text" gorm:"type:text" validate:"required"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	Version   int       `json:"version" gorm:"default:1"`
	CreatedBy string    `json:"created_by,omitempty" gorm:"type:text"`
	UpdatedBy string    `json:"updated_by,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Template model.
func (Template) TableName() string {
	return "templates"
}
