package model

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// FakeMobile returns a local-format Australian mobile number.
func FakeMobile() string {
	return fmt.Sprintf("04%08d", gofakeit.Number(0, 99999999))
}

// NewOrganisation creates an Organisation with default fake data.
func NewOrganisation(overrideDefaults ...*Organisation) *Organisation {
	base := &Organisation{
		ID:        "org_" + gofakeit.LetterN(12),
		Name:      gofakeit.Company(),
		Slug:      gofakeit.Username(),
		IsActive:  true,
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Slug != "" {
			base.Slug = ovr.Slug
		}
		base.IsActive = ovr.IsActive
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewContact creates a Contact with default fake data.
func NewContact(overrideDefaults ...*Contact) *Contact {
	base := &Contact{
		ID:          uuid.NewString(),
		OrgID:       "org_" + gofakeit.LetterN(12),
		PhoneNumber: FakeMobile(),
		FirstName:   gofakeit.FirstName(),
		LastName:    gofakeit.LastName(),
		Email:       gofakeit.Email(),
		Company:     gofakeit.Company(),
		IsActive:    true,
		OptOut:      false,
		CreatedAt:   utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:   utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.OrgID != "" {
			base.OrgID = ovr.OrgID
		}
		if ovr.PhoneNumber != "" {
			base.PhoneNumber = ovr.PhoneNumber
		}
		if ovr.FirstName != "" {
			base.FirstName = ovr.FirstName
		}
		if ovr.LastName != "" {
			base.LastName = ovr.LastName
		}
		if ovr.Email != "" {
			base.Email = ovr.Email
		}
		if ovr.Company != "" {
			base.Company = ovr.Company
		}
		if ovr.AssignedTo != "" {
			base.AssignedTo = ovr.AssignedTo
		}
		base.IsActive = ovr.IsActive
		base.OptOut = ovr.OptOut
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewContactGroup creates a ContactGroup with default fake data.
func NewContactGroup(overrideDefaults ...*ContactGroup) *ContactGroup {
	base := &ContactGroup{
		ID:          uuid.NewString(),
		OrgID:       "org_" + gofakeit.LetterN(12),
		Name:        gofakeit.BuzzWord() + " subscribers",
		Description: gofakeit.Sentence(6),
		IsActive:    true,
		CreatedAt:   utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:   utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.OrgID != "" {
			base.OrgID = ovr.OrgID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Description != "" {
			base.Description = ovr.Description
		}
		base.IsActive = ovr.IsActive
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewTemplate creates a Template with default fake data.
func NewTemplate(overrideDefaults ...*Template) *Template {
	base := &Template{
		ID:        uuid.NewString(),
		OrgID:     "org_" + gofakeit.LetterN(12),
		Name:      gofakeit.BuzzWord() + " template",
		Text:      gofakeit.Sentence(10),
		IsActive:  true,
		Version:   1,
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.OrgID != "" {
			base.OrgID = ovr.OrgID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Text != "" {
			base.Text = ovr.Text
		}
		base.IsActive = ovr.IsActive
		if ovr.Version != 0 {
			base.Version = ovr.Version
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewSchedule creates a pending individual SMS Schedule with default fake data.
func NewSchedule(overrideDefaults ...*Schedule) *Schedule {
	contactID := uuid.NewString()
	base := &Schedule{
		ID:            uuid.NewString(),
		OrgID:         "org_" + gofakeit.LetterN(12),
		Name:          gofakeit.Sentence(3),
		Text:          gofakeit.Sentence(8),
		MessageParts:  1,
		ContactID:     &contactID,
		Phone:         FakeMobile(),
		ScheduledTime: utils.Now().Add(time.Duration(gofakeit.Number(1, 48)) * time.Hour),
		Status:        StatusPending,
		Format:        FormatSMS,
		CreatedAt:     utils.Now(),
		UpdatedAt:     utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.OrgID != "" {
			base.OrgID = ovr.OrgID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.TemplateID != nil {
			base.TemplateID = ovr.TemplateID
		}
		if ovr.Text != "" {
			base.Text = ovr.Text
		}
		if ovr.MessageParts != 0 {
			base.MessageParts = ovr.MessageParts
		}
		if ovr.ContactID != nil {
			base.ContactID = ovr.ContactID
		}
		if ovr.Phone != "" {
			base.Phone = ovr.Phone
		}
		if ovr.GroupID != nil {
			base.GroupID = ovr.GroupID
			base.ContactID = nil
			base.Phone = ""
		}
		if ovr.ParentID != nil {
			base.ParentID = ovr.ParentID
		}
		if !ovr.ScheduledTime.IsZero() {
			base.ScheduledTime = ovr.ScheduledTime
		}
		if ovr.SentTime != nil {
			base.SentTime = ovr.SentTime
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Error != "" {
			base.Error = ovr.Error
		}
		if ovr.Format != "" {
			base.Format = ovr.Format
		}
		if ovr.MediaURL != "" {
			base.MediaURL = ovr.MediaURL
		}
		if ovr.Subject != "" {
			base.Subject = ovr.Subject
		}
		if ovr.LastMetadata != nil {
			base.LastMetadata = ovr.LastMetadata
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}
