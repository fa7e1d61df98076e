package model

import (
	"time"
)

// Well-known per-organisation config names read by the quota checker.
// Absence of a row means the organisation is unlimited for that format.
const (
	ConfigSMSDailyLimit = "sms_daily_limit"
	ConfigMMSDailyLimit = "mms_daily_limit"
)

// ConfigEntry is a named per-organisation setting, unique per (org, name).
// The core reads these; it never writes them as a side effect of sending.
type ConfigEntry struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	OrgID     string    `json:"org_id" gorm:"column:org_id;type:text;uniqueIndex:idx_configs_org_name" validate:"required"`
	Name      string    `json:"name" gorm:"type:text;index;uniqueIndex:idx_configs_org_name" validate:"required"`
	Value     string    `json:"value" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the ConfigEntry model.
func (ConfigEntry) TableName() string {
	return "configs"
}

// LimitConfigName returns the config name holding the daily cap for a format.
func LimitConfigName(format MessageFormat) string {
	if format == FormatMMS {
		return ConfigMMSDailyLimit
	}
	return ConfigSMSDailyLimit
}
