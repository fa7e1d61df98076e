package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/tenant"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/validator"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/smsutil"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// CreateSchedule registers a deferred individual send. Quota units are
// reserved against the civil day holding the scheduled time, not the day of
// creation.
func (s *MessagingService) CreateSchedule(ctx context.Context, req model.CreateScheduleRequest) (*model.Schedule, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = model.FormatSMS
	}
	if format == model.FormatMMS && req.MediaURL == "" {
		return nil, fmt.Errorf("%w: media_url is required for mms schedules", apperrors.ErrValidation)
	}

	contact, phone, err := s.resolveRecipient(ctx, req.ContactID, req.Phone)
	if err != nil {
		return nil, err
	}
	text, parts, err := s.resolveText(ctx, req.TemplateID, req.Text, format)
	if err != nil {
		return nil, err
	}

	schedule := model.Schedule{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		Text:          text,
		MessageParts:  parts,
		Phone:         phone,
		ScheduledTime: req.ScheduledTime,
		Format:        format,
		MediaURL:      req.MediaURL,
		Subject:       req.Subject,
	}
	if contact != nil {
		schedule.ContactID = &contact.ID
	}
	if req.TemplateID != "" {
		templateID := req.TemplateID
		schedule.TemplateID = &templateID
	}

	windowStart := utils.StartOfDayIn(req.ScheduledTime, s.quotaLoc)
	if err := s.scheduleRepo.CreateWithCapacity(ctx, []model.Schedule{schedule}, format, parts, windowStart); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Schedule created",
		zap.String("scheduleId", schedule.ID),
		zap.String("format", string(format)),
		zap.Time("scheduledTime", req.ScheduledTime))
	return s.scheduleRepo.FindByID(ctx, schedule.ID)
}

// CreateBatchSchedule registers a deferred group send: one parent row plus a
// pending child per member eligible at creation time. Members joining the
// group later are not picked up.
func (s *MessagingService) CreateBatchSchedule(ctx context.Context, req model.CreateBatchScheduleRequest) (*model.Schedule, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.groupRepo.FindByID(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	text, parts, err := s.resolveText(ctx, req.TemplateID, req.Text, model.FormatSMS)
	if err != nil {
		return nil, err
	}
	members, err := s.groupRepo.EligibleMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	parent := model.Schedule{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		Name:          req.Name,
		Text:          text,
		MessageParts:  parts,
		GroupID:       &group.ID,
		ScheduledTime: req.ScheduledTime,
		Format:        model.FormatSMS,
	}
	if req.TemplateID != "" {
		templateID := req.TemplateID
		parent.TemplateID = &templateID
	}

	rows := make([]model.Schedule, 0, len(members)+1)
	rows = append(rows, parent)
	for _, member := range members {
		member := member
		child := model.Schedule{
			ID:            uuid.NewString(),
			OrgID:         orgID,
			Text:          text,
			MessageParts:  parts,
			ContactID:     &member.ID,
			Phone:         member.PhoneNumber,
			ParentID:      &parent.ID,
			ScheduledTime: req.ScheduledTime,
			Format:        model.FormatSMS,
		}
		child.TemplateID = parent.TemplateID
		rows = append(rows, child)
	}

	windowStart := utils.StartOfDayIn(req.ScheduledTime, s.quotaLoc)
	if err := s.scheduleRepo.CreateWithCapacity(ctx, rows, model.FormatSMS, parts*len(members), windowStart); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Batch schedule created",
		zap.String("scheduleId", parent.ID),
		zap.String("groupId", group.ID),
		zap.Int("recipients", len(members)))
	return s.scheduleRepo.FindByID(ctx, parent.ID)
}

// UpdateSchedule mutates a pending schedule. Updating a batch parent mirrors
// the changes onto its pending children. Moves out of pending conflict.
func (s *MessagingService) UpdateSchedule(ctx context.Context, id string, req model.UpdateScheduleRequest) (*model.Schedule, error) {
	if req.TemplateID != nil && req.ClearTemplate {
		return nil, fmt.Errorf("%w: cannot both set and clear the template", apperrors.ErrValidation)
	}

	var templateText string
	if req.TemplateID != nil {
		template, err := s.templateRepo.FindByID(ctx, *req.TemplateID)
		if err != nil {
			return nil, err
		}
		if !template.IsActive {
			return nil, fmt.Errorf("%w: template %s is inactive", apperrors.ErrValidation, template.ID)
		}
		templateText = template.Text
	}

	apply := func(sc *model.Schedule) {
		if req.Name != nil {
			sc.Name = *req.Name
		}
		if req.TemplateID != nil {
			sc.TemplateID = req.TemplateID
			sc.Text = templateText
		}
		if req.ClearTemplate {
			sc.TemplateID = nil
		}
		if req.Text != nil && req.TemplateID == nil {
			sc.Text = *req.Text
		}
		if req.ScheduledTime != nil {
			sc.ScheduledTime = *req.ScheduledTime
		}
		if sc.Format != model.FormatMMS {
			sc.MessageParts = smsutil.MessageParts(sc.Text)
		}
	}

	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if schedule.Kind() == model.KindBatch {
		if err := s.scheduleRepo.PropagateUpdate(ctx, id, apply); err != nil {
			return nil, err
		}
		return s.scheduleRepo.FindByID(ctx, id)
	}

	if schedule.Status != model.StatusPending {
		return nil, apperrors.NewFatal(apperrors.ErrStateConflict, "schedule %s is %s, only pending schedules can be updated", id, schedule.Status)
	}
	apply(schedule)
	if err := s.scheduleRepo.Update(ctx, *schedule); err != nil {
		return nil, err
	}
	return s.scheduleRepo.FindByID(ctx, id)
}

// CancelSchedule cancels a pending schedule. Cancelling a batch parent also
// cancels every pending child; children already picked up run to completion.
func (s *MessagingService) CancelSchedule(ctx context.Context, id string) (int, error) {
	cancelled, err := s.scheduleRepo.CascadeCancel(ctx, id)
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Info("Schedule cancelled",
		zap.String("scheduleId", id),
		zap.Int("rowsCancelled", cancelled))
	return cancelled, nil
}

// GetSchedule fetches one schedule in the calling org.
func (s *MessagingService) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	return s.scheduleRepo.FindByID(ctx, id)
}

// GetScheduleChildren lists the child rows of a batch parent.
func (s *MessagingService) GetScheduleChildren(ctx context.Context, parentID string) ([]model.Schedule, error) {
	parent, err := s.scheduleRepo.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Kind() != model.KindBatch {
		return nil, fmt.Errorf("%w: schedule %s is not a batch parent", apperrors.ErrValidation, parentID)
	}
	return s.scheduleRepo.FindChildren(ctx, parentID)
}

// ListSchedules pages through the calling org's schedules, optionally
// filtered by status.
func (s *MessagingService) ListSchedules(ctx context.Context, statuses []model.ScheduleStatus, limit, offset int) ([]model.Schedule, error) {
	return s.scheduleRepo.List(ctx, statuses, limit, offset)
}
