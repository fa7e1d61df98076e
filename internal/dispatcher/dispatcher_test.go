package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/config"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/provider"
	storagemock "gitlab.com/paragonau/api/drover-sms-platform/internal/storage/mock"
)

func testDispatcherConfig() config.DispatcherConfig {
	return config.DispatcherConfig{
		Enabled:      true,
		PoolSize:     2,
		PollInterval: 10 * time.Millisecond,
		ClaimBatch:   10,
		MaxBlock:     time.Second,
		ExpiryTime:   time.Minute,
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *storagemock.ScheduleRepoMock, *provider.MockMessageProvider) {
	t.Helper()

	scheduleRepo := new(storagemock.ScheduleRepoMock)
	messages := provider.NewMockMessageProvider()
	gateway := provider.NewGateway(messages, provider.NewMockStorageProvider())

	d, err := NewDispatcher(testDispatcherConfig(), scheduleRepo, gateway, time.UTC, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(d.Stop)
	return d, scheduleRepo, messages
}

func claimedSchedule(orgID string) model.Schedule {
	s := model.NewSchedule(&model.Schedule{OrgID: orgID, Status: model.StatusProcessing})
	s.ScheduledTime = time.Now().Add(-time.Minute)
	return *s
}

// notify returns a Run hook signalling ch, and a wait helper for the test.
func notify(t *testing.T, size int) (func(mock.Arguments), func(n int)) {
	t.Helper()
	ch := make(chan struct{}, size)
	hook := func(mock.Arguments) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	wait := func(n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			select {
			case <-ch:
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for signal %d of %d", i+1, n)
			}
		}
	}
	return hook, wait
}

func TestDispatcherPoll(t *testing.T) {
	t.Run("DeliversClaimedSchedules", func(t *testing.T) {
		d, scheduleRepo, messages := newTestDispatcher(t)
		settled, wait := notify(t, 2)

		rows := []model.Schedule{claimedSchedule("org-a"), claimedSchedule("org-b")}
		scheduleRepo.On("ClaimDuePending", mock.Anything, mock.Anything, 10).Return(rows, nil).Once()
		scheduleRepo.On("VerifyCapacity", mock.Anything, model.FormatSMS, mock.Anything).Return(nil).Twice()
		scheduleRepo.On("Transition", mock.Anything, mock.Anything, model.StatusProcessing, model.StatusSent, mock.Anything).
			Run(settled).Return(nil).Twice()
		scheduleRepo.On("ResolveDueParents", mock.Anything, mock.Anything).Return(0, nil).Once()

		d.poll(context.Background())
		wait(2)

		assert.Len(t, messages.Sent(), 2)
		scheduleRepo.AssertExpectations(t)
	})

	t.Run("InvalidNumberSettlesFailed", func(t *testing.T) {
		d, scheduleRepo, messages := newTestDispatcher(t)
		settled, wait := notify(t, 1)

		bad := claimedSchedule("org-a")
		bad.Phone = "0298765432" // landline, rejected before the provider
		scheduleRepo.On("ClaimDuePending", mock.Anything, mock.Anything, 10).
			Return([]model.Schedule{bad}, nil).Once()
		scheduleRepo.On("VerifyCapacity", mock.Anything, model.FormatSMS, mock.Anything).Return(nil).Once()
		scheduleRepo.On("Transition", mock.Anything, bad.ID, model.StatusProcessing, model.StatusFailed, mock.Anything).
			Run(settled).Return(nil).Once()
		scheduleRepo.On("ResolveDueParents", mock.Anything, mock.Anything).Return(0, nil).Once()

		d.poll(context.Background())
		wait(1)

		assert.Empty(t, messages.Sent())
		scheduleRepo.AssertExpectations(t)
	})

	t.Run("MmsRowsUseMmsTransport", func(t *testing.T) {
		d, scheduleRepo, messages := newTestDispatcher(t)
		settled, wait := notify(t, 1)

		row := claimedSchedule("org-a")
		row.Format = model.FormatMMS
		row.MediaURL = "https://storage.mock.invalid/media/pic.png"
		scheduleRepo.On("ClaimDuePending", mock.Anything, mock.Anything, 10).
			Return([]model.Schedule{row}, nil).Once()
		scheduleRepo.On("VerifyCapacity", mock.Anything, model.FormatMMS, mock.Anything).Return(nil).Once()
		scheduleRepo.On("Transition", mock.Anything, row.ID, model.StatusProcessing, model.StatusSent, mock.Anything).
			Run(settled).Return(nil).Once()
		scheduleRepo.On("ResolveDueParents", mock.Anything, mock.Anything).Return(0, nil).Once()

		d.poll(context.Background())
		wait(1)

		sent := messages.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].ProviderRef, "mock-mms-")
	})

	t.Run("CapacityLoweredAfterReservationFailsRow", func(t *testing.T) {
		d, scheduleRepo, messages := newTestDispatcher(t)
		settled, wait := notify(t, 1)

		row := claimedSchedule("org-a")
		scheduleRepo.On("ClaimDuePending", mock.Anything, mock.Anything, 10).
			Return([]model.Schedule{row}, nil).Once()
		scheduleRepo.On("VerifyCapacity", mock.Anything, model.FormatSMS, mock.Anything).
			Return(apperrors.NewCapacityError(5, 8, 0)).Once()
		scheduleRepo.On("Transition", mock.Anything, row.ID, model.StatusProcessing, model.StatusFailed, mock.Anything).
			Run(settled).Return(nil).Once()
		scheduleRepo.On("ResolveDueParents", mock.Anything, mock.Anything).Return(0, nil).Once()

		d.poll(context.Background())
		wait(1)

		assert.Empty(t, messages.Sent(), "capacity-blocked rows never reach the provider")
		scheduleRepo.AssertExpectations(t)
	})

	t.Run("ClaimErrorSkipsCycle", func(t *testing.T) {
		d, scheduleRepo, messages := newTestDispatcher(t)

		scheduleRepo.On("ClaimDuePending", mock.Anything, mock.Anything, 10).
			Return(nil, assert.AnError).Once()

		d.poll(context.Background())

		assert.Empty(t, messages.Sent())
		scheduleRepo.AssertNotCalled(t, "ResolveDueParents", mock.Anything, mock.Anything)
	})
}

func TestDispatcherStartStop(t *testing.T) {
	d, scheduleRepo, _ := newTestDispatcher(t)
	polled, wait := notify(t, 8)

	scheduleRepo.On("ClaimDuePending", mock.Anything, mock.Anything, 10).
		Run(polled).Return([]model.Schedule{}, nil)
	scheduleRepo.On("ResolveDueParents", mock.Anything, mock.Anything).Return(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Start(ctx)
	wait(2)
	d.Stop()
}
