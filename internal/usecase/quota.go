package usecase

import (
	"context"
	"strconv"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// LimitInfo reports an org's quota position for one format over the current
// daily window. Limited false means no cap is configured.
type LimitInfo struct {
	Format    model.MessageFormat `json:"format"`
	Limited   bool                `json:"limited"`
	Limit     int                 `json:"limit,omitempty"`
	Used      int                 `json:"used"`
	Remaining int                 `json:"remaining,omitempty"`
}

// QuotaInfo returns the calling org's current quota position. This is a
// read-only snapshot; the authoritative check happens inside the schedule
// repository under lock at reservation time.
func (s *MessagingService) QuotaInfo(ctx context.Context, format model.MessageFormat) (*LimitInfo, error) {
	windowStart := utils.StartOfDayIn(utils.Now(), s.quotaLoc)

	used, err := s.scheduleRepo.CountUsage(ctx, format, windowStart)
	if err != nil {
		return nil, err
	}

	info := &LimitInfo{Format: format, Used: used}

	entry, err := s.configRepo.Get(ctx, model.LimitConfigName(format))
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return info, nil
		}
		return nil, err
	}

	limit, err := strconv.Atoi(entry.Value)
	if err != nil {
		return nil, apperrors.NewFatal(apperrors.ErrBadRequest, "config %s holds non-integer value %q", entry.Name, entry.Value)
	}
	if limit < 0 {
		// Negative limits disable the cap.
		return info, nil
	}

	info.Limited = true
	info.Limit = limit
	if remaining := limit - used; remaining > 0 {
		info.Remaining = remaining
	}
	return info, nil
}

// SetDailyLimit stores the daily cap for a format. A negative value disables
// the cap; the change applies to the next reservation attempt.
func (s *MessagingService) SetDailyLimit(ctx context.Context, format model.MessageFormat, limit int) error {
	return s.configRepo.Set(ctx, model.LimitConfigName(format), strconv.Itoa(limit))
}
