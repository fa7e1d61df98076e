package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
)

func TestQuotaInfo(t *testing.T) {
	ctx := testContext(t)

	t.Run("LimitedWithRemaining", func(t *testing.T) {
		svc, m := newTestService(t)

		m.scheduleRepo.On("CountUsage", mock.Anything, model.FormatSMS, mock.Anything).Return(30, nil).Once()
		m.configRepo.On("Get", mock.Anything, model.ConfigSMSDailyLimit).
			Return(&model.ConfigEntry{OrgID: testOrgID, Name: model.ConfigSMSDailyLimit, Value: "100"}, nil).Once()

		info, err := svc.QuotaInfo(ctx, model.FormatSMS)
		require.NoError(t, err)
		assert.True(t, info.Limited)
		assert.Equal(t, 100, info.Limit)
		assert.Equal(t, 30, info.Used)
		assert.Equal(t, 70, info.Remaining)
	})

	t.Run("NoConfigMeansUnlimited", func(t *testing.T) {
		svc, m := newTestService(t)

		m.scheduleRepo.On("CountUsage", mock.Anything, model.FormatMMS, mock.Anything).Return(12, nil).Once()
		m.configRepo.On("Get", mock.Anything, model.ConfigMMSDailyLimit).Return(nil, apperrors.ErrNotFound).Once()

		info, err := svc.QuotaInfo(ctx, model.FormatMMS)
		require.NoError(t, err)
		assert.False(t, info.Limited)
		assert.Equal(t, 12, info.Used)
	})

	t.Run("NegativeLimitDisablesCap", func(t *testing.T) {
		svc, m := newTestService(t)

		m.scheduleRepo.On("CountUsage", mock.Anything, model.FormatSMS, mock.Anything).Return(500, nil).Once()
		m.configRepo.On("Get", mock.Anything, model.ConfigSMSDailyLimit).
			Return(&model.ConfigEntry{OrgID: testOrgID, Name: model.ConfigSMSDailyLimit, Value: "-1"}, nil).Once()

		info, err := svc.QuotaInfo(ctx, model.FormatSMS)
		require.NoError(t, err)
		assert.False(t, info.Limited)
	})

	t.Run("MalformedLimitValue", func(t *testing.T) {
		svc, m := newTestService(t)

		m.scheduleRepo.On("CountUsage", mock.Anything, model.FormatSMS, mock.Anything).Return(0, nil).Once()
		m.configRepo.On("Get", mock.Anything, model.ConfigSMSDailyLimit).
			Return(&model.ConfigEntry{OrgID: testOrgID, Name: model.ConfigSMSDailyLimit, Value: "lots"}, nil).Once()

		_, err := svc.QuotaInfo(ctx, model.FormatSMS)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	})
}

func TestSetDailyLimit(t *testing.T) {
	ctx := testContext(t)

	svc, m := newTestService(t)
	m.configRepo.On("Set", mock.Anything, model.ConfigMMSDailyLimit, "25").Return(nil).Once()

	require.NoError(t, svc.SetDailyLimit(ctx, model.FormatMMS, 25))
	m.configRepo.AssertExpectations(t)
}
