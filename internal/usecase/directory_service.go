package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/validator"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/smsutil"
)

// Directory operations: contacts, groups and templates. Thin wrappers over
// storage with phone canonicalisation and payload validation on the way in.

// maxTemplateTextLen matches the request payload ceiling of two concatenated
// segments.
const maxTemplateTextLen = 306

// SaveContact validates and stores a new contact. The phone number is
// normalised to local format before the uniqueness check applies.
func (s *MessagingService) SaveContact(ctx context.Context, contact model.Contact) (*model.Contact, error) {
	contact.PhoneNumber = smsutil.NormalizePhone(contact.PhoneNumber)
	if !smsutil.ValidPhone(contact.PhoneNumber) {
		return nil, fmt.Errorf("%w: %q is not a valid mobile number", apperrors.ErrValidation, contact.PhoneNumber)
	}
	if err := validator.Validate(contact); err != nil {
		return nil, err
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	if err := s.contactRepo.Save(ctx, contact); err != nil {
		return nil, err
	}
	return s.contactRepo.FindByID(ctx, contact.ID)
}

// UpdateContact updates an existing contact's mutable fields.
func (s *MessagingService) UpdateContact(ctx context.Context, contact model.Contact) (*model.Contact, error) {
	if contact.PhoneNumber != "" {
		contact.PhoneNumber = smsutil.NormalizePhone(contact.PhoneNumber)
		if !smsutil.ValidPhone(contact.PhoneNumber) {
			return nil, fmt.Errorf("%w: %q is not a valid mobile number", apperrors.ErrValidation, contact.PhoneNumber)
		}
	}
	if err := s.contactRepo.Update(ctx, contact); err != nil {
		return nil, err
	}
	return s.contactRepo.FindByID(ctx, contact.ID)
}

// GetContact fetches one contact in the calling org.
func (s *MessagingService) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	return s.contactRepo.FindByID(ctx, id)
}

// ListContacts pages through the calling org's contacts.
func (s *MessagingService) ListContacts(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	return s.contactRepo.List(ctx, limit, offset)
}

// SaveGroup stores a new contact group.
func (s *MessagingService) SaveGroup(ctx context.Context, group model.ContactGroup) (*model.ContactGroup, error) {
	if err := validator.Validate(group); err != nil {
		return nil, err
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if err := s.groupRepo.Save(ctx, group); err != nil {
		return nil, err
	}
	return s.groupRepo.FindByID(ctx, group.ID)
}

// AddGroupMember links a contact into a group. Both must belong to the
// calling org.
func (s *MessagingService) AddGroupMember(ctx context.Context, groupID, contactID string) error {
	return s.groupRepo.AddMember(ctx, groupID, contactID)
}

// RemoveGroupMember unlinks a contact from a group. Pending batch children
// created from an earlier membership are unaffected.
func (s *MessagingService) RemoveGroupMember(ctx context.Context, groupID, contactID string) error {
	return s.groupRepo.RemoveMember(ctx, groupID, contactID)
}

// GetGroupMembers lists the group's eligible recipients.
func (s *MessagingService) GetGroupMembers(ctx context.Context, groupID string) ([]model.Contact, error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.groupRepo.EligibleMembers(ctx, groupID)
}

// SaveTemplate validates and stores a message template. Template bodies obey
// the same length ceiling as inline text.
func (s *MessagingService) SaveTemplate(ctx context.Context, template model.Template) (*model.Template, error) {
	if err := validator.Validate(template); err != nil {
		return nil, err
	}
	if len(template.Text) > maxTemplateTextLen {
		return nil, fmt.Errorf("%w: template text exceeds %d characters", apperrors.ErrValidation, maxTemplateTextLen)
	}
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, err
	}
	return s.templateRepo.FindByID(ctx, template.ID)
}

// ListTemplates lists the calling org's active templates.
func (s *MessagingService) ListTemplates(ctx context.Context) ([]model.Template, error) {
	return s.templateRepo.List(ctx)
}
