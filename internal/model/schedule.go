package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ScheduleStatus is the lifecycle state of a schedule row. Transitions are
// monotonic: pending -> processing -> {sent | failed}, pending -> cancelled.
type ScheduleStatus string

const (
	StatusPending    ScheduleStatus = "pending"
	StatusProcessing ScheduleStatus = "processing"
	StatusSent       ScheduleStatus = "sent"
	StatusFailed     ScheduleStatus = "failed"
	StatusCancelled  ScheduleStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ScheduleStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether moving to next is a legal transition.
func (s ScheduleStatus) CanTransitionTo(next ScheduleStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusSent || next == StatusFailed
	default:
		return false
	}
}

// MessageFormat distinguishes SMS from MMS for segmentation and quota.
type MessageFormat string

const (
	FormatSMS MessageFormat = "sms"
	FormatMMS MessageFormat = "mms"
)

// ScheduleKind is the tagged variant of a schedule row. The domain layer
// branches on this once instead of re-deriving the kind from null checks.
type ScheduleKind int

const (
	// KindIndividual targets one contact or raw phone number. Children of a
	// batch are individual rows linked through ParentID.
	KindIndividual ScheduleKind = iota
	// KindBatch targets a contact group. Batch parents are aggregation and
	// cancellation anchors; they are never dispatched themselves.
	KindBatch
)

// ErrScheduleShape is returned when a row is neither a valid batch parent nor
// a valid individual send.
var ErrScheduleShape = errors.New("schedule must target either a group or a contact/phone, not both or neither")

// Schedule is the central entity: one row is either an individual send or a
// batch parent owning one child row per group member.
type Schedule struct {
	ID            string         `json:"id" gorm:"primaryKey;type:text"`
	OrgID         string         `json:"org_id" gorm:"column:org_id;index;type:text" validate:"required"`
	Name          string         `json:"name,omitempty" gorm:"type:text"` // batch label
	TemplateID    *string        `json:"template_id,omitempty" gorm:"type:text"`
	Text          string         `json:"text,omitempty" gorm:"type:text"`
	MessageParts  int            `json:"message_parts" gorm:"default:1"`
	ContactID     *string        `json:"contact_id,omitempty" gorm:"index;type:text"`
	Phone         string         `json:"phone,omitempty" gorm:"type:text"`
	GroupID       *string        `json:"group_id,omitempty" gorm:"index;type:text"` // set on batch parents only
	ParentID      *string        `json:"parent_id,omitempty" gorm:"index;type:text"`
	ScheduledTime time.Time      `json:"scheduled_time" gorm:"index:idx_schedules_time_status"`
	SentTime      *time.Time     `json:"sent_time,omitempty"`
	Status        ScheduleStatus `json:"status" gorm:"type:text;default:pending;index:idx_schedules_time_status"`
	Error         string         `json:"error,omitempty" gorm:"type:text"`
	Format        MessageFormat  `json:"format,omitempty" gorm:"type:text"`
	MediaURL      string         `json:"media_url,omitempty" gorm:"type:text"`
	Subject       string         `json:"subject,omitempty" gorm:"type:text"`
	CreatedBy     string         `json:"created_by,omitempty" gorm:"type:text"`
	UpdatedBy     string         `json:"updated_by,omitempty" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
	LastMetadata  datatypes.JSON `json:"last_metadata,omitempty" gorm:"type:jsonb;column:last_metadata"`
}

// TableName specifies the table name for the Schedule model.
func (Schedule) TableName() string {
	return "schedules"
}

// Kind returns the tagged variant of the row.
func (s *Schedule) Kind() ScheduleKind {
	if s.GroupID != nil {
		return KindBatch
	}
	return KindIndividual
}

// ValidateShape enforces the batch/individual invariant: a group reference
// excludes a contact/phone on the same row, and at least one target must be
// present.
func (s *Schedule) ValidateShape() error {
	hasGroup := s.GroupID != nil
	hasRecipient := s.ContactID != nil || s.Phone != ""
	if hasGroup == hasRecipient {
		return ErrScheduleShape
	}
	return nil
}

// MarkSent records a successful dispatch. SentTime is set here and only here.
func (s *Schedule) MarkSent(at time.Time) {
	s.Status = StatusSent
	s.SentTime = &at
	s.Error = ""
}

// MarkFailed records a failed dispatch with its reason.
func (s *Schedule) MarkFailed(reason string) {
	s.Status = StatusFailed
	s.SentTime = nil
	s.Error = reason
}
