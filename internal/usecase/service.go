package usecase

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/provider"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/storage"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/smsutil"
)

// MessagingService implements immediate sends, deferred scheduling and the
// per-org quota discipline over the storage and provider layers.
type MessagingService struct {
	orgRepo      storage.OrganisationRepo
	contactRepo  storage.ContactRepo
	groupRepo    storage.GroupRepo
	templateRepo storage.TemplateRepo
	configRepo   storage.ConfigRepo
	scheduleRepo storage.ScheduleRepo
	gateway      *provider.Gateway
	quotaLoc     *time.Location
}

// NewMessagingService creates a new messaging service. quotaLoc anchors the
// daily quota window; callers load it from configuration.
func NewMessagingService(
	orgRepo storage.OrganisationRepo,
	contactRepo storage.ContactRepo,
	groupRepo storage.GroupRepo,
	templateRepo storage.TemplateRepo,
	configRepo storage.ConfigRepo,
	scheduleRepo storage.ScheduleRepo,
	gateway *provider.Gateway,
	quotaLoc *time.Location,
) *MessagingService {
	return &MessagingService{
		orgRepo:      orgRepo,
		contactRepo:  contactRepo,
		groupRepo:    groupRepo,
		templateRepo: templateRepo,
		configRepo:   configRepo,
		scheduleRepo: scheduleRepo,
		gateway:      gateway,
		quotaLoc:     quotaLoc,
	}
}

// resolveRecipient turns a contact reference or raw number into a canonical
// recipient. A referenced contact must be eligible; a raw number must parse.
func (s *MessagingService) resolveRecipient(ctx context.Context, contactID, rawPhone string) (contact *model.Contact, phone string, err error) {
	if contactID != "" {
		contact, err = s.contactRepo.FindByID(ctx, contactID)
		if err != nil {
			return nil, "", err
		}
		if !contact.Eligible() {
			return nil, "", fmt.Errorf("%w: contact %s is opted out or inactive", apperrors.ErrValidation, contactID)
		}
		return contact, contact.PhoneNumber, nil
	}

	phone = smsutil.NormalizePhone(rawPhone)
	if !smsutil.ValidPhone(phone) {
		return nil, "", fmt.Errorf("%w: %q is not a valid mobile number", apperrors.ErrValidation, rawPhone)
	}
	return nil, phone, nil
}

// resolveText picks the message body: an explicit template wins over inline
// text. Returns the body and its part count.
func (s *MessagingService) resolveText(ctx context.Context, templateID, text string, format model.MessageFormat) (string, int, error) {
	if templateID != "" {
		template, err := s.templateRepo.FindByID(ctx, templateID)
		if err != nil {
			return "", 0, err
		}
		if !template.IsActive {
			return "", 0, fmt.Errorf("%w: template %s is inactive", apperrors.ErrValidation, templateID)
		}
		text = template.Text
	}

	if format == model.FormatMMS {
		// MMS bodies may be empty and always cost one unit.
		return text, 1, nil
	}
	if text == "" {
		return "", 0, fmt.Errorf("%w: message text is required", apperrors.ErrValidation)
	}
	return text, smsutil.MessageParts(text), nil
}
