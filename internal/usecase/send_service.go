package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/observer"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/provider"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/tenant"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/validator"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/smsutil"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// SendSMS submits one SMS right away. The message is journaled as a schedule
// row in processing before the provider is called, so the row always exists
// to record the outcome and the quota reservation.
func (s *MessagingService) SendSMS(ctx context.Context, req model.SendSMSRequest) (*model.Schedule, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	contact, phone, err := s.resolveRecipient(ctx, req.ContactID, req.Recipient)
	if err != nil {
		return nil, err
	}
	parts := smsutil.MessageParts(req.Message)

	now := utils.Now()
	schedule := model.Schedule{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		Text:          req.Message,
		MessageParts:  parts,
		Phone:         phone,
		ScheduledTime: now,
		Status:        model.StatusProcessing,
		Format:        model.FormatSMS,
	}
	if contact != nil {
		schedule.ContactID = &contact.ID
	}

	windowStart := utils.StartOfDayIn(now, s.quotaLoc)
	if err := s.scheduleRepo.CreateWithCapacity(ctx, []model.Schedule{schedule}, model.FormatSMS, parts, windowStart); err != nil {
		observer.IncMessageSubmitted(string(model.FormatSMS), orgID, "rejected")
		return nil, err
	}

	result, err := s.gateway.SendSms(ctx, phone, req.Message)
	return s.settleImmediate(ctx, schedule.ID, model.FormatSMS, result, err, log)
}

// SendMMS submits one MMS right away. Media must already be uploaded; the
// request carries its URL.
func (s *MessagingService) SendMMS(ctx context.Context, req model.SendMMSRequest) (*model.Schedule, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	contact, phone, err := s.resolveRecipient(ctx, req.ContactID, req.Recipient)
	if err != nil {
		return nil, err
	}

	now := utils.Now()
	schedule := model.Schedule{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		Text:          req.Message,
		MessageParts:  1,
		Phone:         phone,
		ScheduledTime: now,
		Status:        model.StatusProcessing,
		Format:        model.FormatMMS,
		MediaURL:      req.MediaURL,
		Subject:       req.Subject,
	}
	if contact != nil {
		schedule.ContactID = &contact.ID
	}

	windowStart := utils.StartOfDayIn(now, s.quotaLoc)
	if err := s.scheduleRepo.CreateWithCapacity(ctx, []model.Schedule{schedule}, model.FormatMMS, 1, windowStart); err != nil {
		observer.IncMessageSubmitted(string(model.FormatMMS), orgID, "rejected")
		return nil, err
	}

	result, err := s.gateway.SendMms(ctx, phone, req.Message, req.MediaURL, req.Subject)
	return s.settleImmediate(ctx, schedule.ID, model.FormatMMS, result, err, log)
}

// SendToGroup fans an immediate SMS out to every eligible member of a group.
// One parent row plus one child per member are journaled in processing under
// a single quota reservation, then each child is sent and settled. The parent
// finishes sent when any child was sent, failed when none were.
func (s *MessagingService) SendToGroup(ctx context.Context, req model.SendGroupSMSRequest) (*model.Schedule, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	group, err := s.groupRepo.FindByID(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	members, err := s.groupRepo.EligibleMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	parts := smsutil.MessageParts(req.Message)
	now := utils.Now()

	parent := model.Schedule{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		Name:          fmt.Sprintf("group send: %s", group.Name),
		Text:          req.Message,
		MessageParts:  parts,
		GroupID:       &group.ID,
		ScheduledTime: now,
		Status:        model.StatusProcessing,
		Format:        model.FormatSMS,
	}

	rows := make([]model.Schedule, 0, len(members)+1)
	rows = append(rows, parent)
	for _, member := range members {
		member := member
		rows = append(rows, model.Schedule{
			ID:            uuid.NewString(),
			OrgID:         orgID,
			Text:          req.Message,
			MessageParts:  parts,
			ContactID:     &member.ID,
			Phone:         member.PhoneNumber,
			ParentID:      &parent.ID,
			ScheduledTime: now,
			Status:        model.StatusProcessing,
			Format:        model.FormatSMS,
		})
	}

	windowStart := utils.StartOfDayIn(now, s.quotaLoc)
	if err := s.scheduleRepo.CreateWithCapacity(ctx, rows, model.FormatSMS, parts*len(members), windowStart); err != nil {
		observer.IncMessageSubmitted(string(model.FormatSMS), orgID, "rejected")
		return nil, err
	}

	sentCount := 0
	for _, child := range rows[1:] {
		result, sendErr := s.gateway.SendSms(ctx, child.Phone, req.Message)
		settled, settleErr := s.settleImmediate(ctx, child.ID, model.FormatSMS, result, sendErr, log)
		if settleErr != nil {
			log.Warn("Failed to settle group send child",
				zap.String("scheduleId", child.ID),
				zap.Error(settleErr))
			continue
		}
		if settled.Status == model.StatusSent {
			sentCount++
		}
	}
	failedCount := len(members) - sentCount

	// The parent finishes sent when any recipient got the message; a full
	// failure is recorded with the counts. Partial failures keep the detail
	// in the audit metadata.
	finalize := func(sc *model.Schedule) {
		if sentCount > 0 || len(members) == 0 {
			sc.MarkSent(utils.Now())
		} else {
			sc.MarkFailed(fmt.Sprintf("all %d recipients failed", failedCount))
		}
		sc.LastMetadata = datatypes.JSON(utils.MustMarshalJSON(map[string]int{
			"total":      len(members),
			"successful": sentCount,
			"failed":     failedCount,
		}))
	}
	if err := s.scheduleRepo.Transition(ctx, parent.ID, model.StatusProcessing, parentOutcome(sentCount, len(members)), finalize); err != nil {
		return nil, err
	}
	return s.scheduleRepo.FindByID(ctx, parent.ID)
}

func parentOutcome(sentCount, memberCount int) model.ScheduleStatus {
	if sentCount > 0 || memberCount == 0 {
		return model.StatusSent
	}
	return model.StatusFailed
}

// UploadFile stores MMS media through the gateway and returns its URL.
func (s *MessagingService) UploadFile(ctx context.Context, originalName, contentType string, data []byte) (*provider.UploadResult, error) {
	if _, err := tenant.FromContext(ctx); err != nil {
		return nil, err
	}
	return s.gateway.UploadFile(ctx, originalName, contentType, data)
}

// settleImmediate records a provider outcome on a processing row. Transport
// errors and rejected recipients both finish the row as failed; only settle
// errors bubble up.
func (s *MessagingService) settleImmediate(ctx context.Context, id string, format model.MessageFormat, result *provider.SendResult, sendErr error, log *zap.Logger) (*model.Schedule, error) {
	orgID := tenant.MustFromContext(ctx)

	var to model.ScheduleStatus
	var mutate func(*model.Schedule)

	switch {
	case sendErr != nil:
		log.Warn("Provider rejected message",
			zap.String("scheduleId", id),
			zap.Error(sendErr))
		to = model.StatusFailed
		mutate = func(sc *model.Schedule) { sc.MarkFailed(sendErr.Error()) }
	case !result.Accepted:
		to = model.StatusFailed
		mutate = func(sc *model.Schedule) { sc.MarkFailed(result.FailureReason) }
	default:
		sentAt := utils.Now()
		to = model.StatusSent
		mutate = func(sc *model.Schedule) {
			sc.MarkSent(sentAt)
			sc.LastMetadata = datatypes.JSON(utils.MustMarshalJSON(map[string]string{
				"provider_ref": result.ProviderRef,
			}))
		}
	}

	if err := s.scheduleRepo.Transition(ctx, id, model.StatusProcessing, to, mutate); err != nil {
		return nil, err
	}
	if to == model.StatusSent {
		observer.IncMessageSubmitted(string(format), orgID, "sent")
	} else {
		observer.IncMessageSubmitted(string(format), orgID, "failed")
	}
	if sendErr != nil && apperrors.IsRetryable(sendErr) {
		// The row is settled as failed; surface nothing further.
		log.Debug("Transient provider failure recorded as failed send", zap.String("scheduleId", id))
	}
	return s.scheduleRepo.FindByID(ctx, id)
}
