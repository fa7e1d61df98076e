package model

import (
	"time"
)

// Request payloads accepted by the messaging service. Validation tags are
// enforced by internal/validator before any storage or provider call.

// SendSMSRequest asks for an immediate single-recipient SMS.
type SendSMSRequest struct {
	ContactID string `json:"contact_id,omitempty"`
	Recipient string `json:"recipient" validate:"required"`
	Message   string `json:"message" validate:"required,max=306"`
}

// SendGroupSMSRequest asks for an immediate SMS to every eligible member of a
// contact group.
type SendGroupSMSRequest struct {
	GroupID string `json:"group_id" validate:"required"`
	Message string `json:"message" validate:"required,max=306"`
}

// SendMMSRequest asks for an immediate single-recipient MMS. The body may be
// empty; the media reference carries the payload.
type SendMMSRequest struct {
	ContactID string `json:"contact_id,omitempty"`
	Recipient string `json:"recipient" validate:"required"`
	Message   string `json:"message" validate:"max=306"`
	MediaURL  string `json:"media_url" validate:"required,url"`
	Subject   string `json:"subject,omitempty" validate:"max=64"`
}

// CreateScheduleRequest creates a deferred individual send. Either a contact
// reference or a raw phone must be given; template overrides inline text.
type CreateScheduleRequest struct {
	ContactID     string        `json:"contact_id,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	TemplateID    string        `json:"template_id,omitempty"`
	Text          string        `json:"text,omitempty" validate:"max=306"`
	Format        MessageFormat `json:"format,omitempty" validate:"omitempty,oneof=sms mms"`
	MediaURL      string        `json:"media_url,omitempty" validate:"omitempty,url"`
	Subject       string        `json:"subject,omitempty" validate:"max=64"`
	ScheduledTime time.Time     `json:"scheduled_time" validate:"required"`
}

// CreateBatchScheduleRequest creates a deferred batch: one parent row plus a
// pending child per eligible group member at creation time.
type CreateBatchScheduleRequest struct {
	Name          string    `json:"name" validate:"required,max=255"`
	GroupID       string    `json:"group_id" validate:"required"`
	TemplateID    string    `json:"template_id,omitempty"`
	Text          string    `json:"text,omitempty" validate:"max=306"`
	ScheduledTime time.Time `json:"scheduled_time" validate:"required"`
}

// UpdateScheduleRequest mutates a pending schedule. Nil fields are left
// untouched; ClearTemplate detaches the template reference.
type UpdateScheduleRequest struct {
	Name          *string    `json:"name,omitempty"`
	Text          *string    `json:"text,omitempty"`
	TemplateID    *string    `json:"template_id,omitempty"`
	ClearTemplate bool       `json:"clear_template,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// OrganisationUpsertPayload is the identity-sync event creating or updating
// an organisation record.
type OrganisationUpsertPayload struct {
	OrgID    string `json:"org_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Slug     string `json:"slug,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// MembershipUpsertPayload is the identity-sync event linking a user to an
// organisation.
type MembershipUpsertPayload struct {
	UserID   string `json:"user_id" validate:"required"`
	OrgID    string `json:"org_id" validate:"required"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}
