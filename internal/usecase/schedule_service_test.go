package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
)

func TestCreateSchedule(t *testing.T) {
	ctx := testContext(t)
	scheduledTime := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)

	t.Run("RawPhoneRecipient", func(t *testing.T) {
		svc, m := newTestService(t)

		var inserted []model.Schedule
		var windowStart time.Time
		m.scheduleRepo.On("CreateWithCapacity", mock.Anything, mock.Anything, model.FormatSMS, 1, mock.Anything).
			Run(func(args mock.Arguments) {
				inserted = args.Get(1).([]model.Schedule)
				windowStart = args.Get(4).(time.Time)
			}).Return(nil).Once()
		m.scheduleRepo.On("FindByID", mock.Anything, mock.Anything).
			Return(model.NewSchedule(&model.Schedule{OrgID: testOrgID}), nil).Once()

		_, err := svc.CreateSchedule(ctx, model.CreateScheduleRequest{
			Phone:         "0412345678",
			Text:          "appointment reminder",
			ScheduledTime: scheduledTime,
		})
		require.NoError(t, err)

		require.Len(t, inserted, 1)
		assert.Equal(t, model.ScheduleStatus(""), inserted[0].Status, "status is assigned by storage")
		assert.Equal(t, "0412345678", inserted[0].Phone)
		assert.Equal(t, scheduledTime, inserted[0].ScheduledTime)
		assert.Equal(t, time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC), windowStart,
			"quota window follows the scheduled day, not the creation day")
	})

	t.Run("TemplateOverridesInlineText", func(t *testing.T) {
		svc, m := newTestService(t)

		template := model.NewTemplate(&model.Template{OrgID: testOrgID, Text: "template body"})
		m.templateRepo.On("FindByID", mock.Anything, template.ID).Return(template, nil).Once()

		var inserted []model.Schedule
		m.scheduleRepo.On("CreateWithCapacity", mock.Anything, mock.Anything, model.FormatSMS, 1, mock.Anything).
			Run(func(args mock.Arguments) {
				inserted = args.Get(1).([]model.Schedule)
			}).Return(nil).Once()
		m.scheduleRepo.On("FindByID", mock.Anything, mock.Anything).
			Return(model.NewSchedule(&model.Schedule{OrgID: testOrgID}), nil).Once()

		_, err := svc.CreateSchedule(ctx, model.CreateScheduleRequest{
			Phone:         "0412345678",
			TemplateID:    template.ID,
			Text:          "inline text loses",
			ScheduledTime: scheduledTime,
		})
		require.NoError(t, err)
		require.Len(t, inserted, 1)
		assert.Equal(t, "template body", inserted[0].Text)
		require.NotNil(t, inserted[0].TemplateID)
		assert.Equal(t, template.ID, *inserted[0].TemplateID)
	})

	t.Run("InactiveTemplateRejected", func(t *testing.T) {
		svc, m := newTestService(t)

		template := model.NewTemplate(&model.Template{OrgID: testOrgID})
		template.IsActive = false
		m.templateRepo.On("FindByID", mock.Anything, template.ID).Return(template, nil).Once()

		_, err := svc.CreateSchedule(ctx, model.CreateScheduleRequest{
			Phone:         "0412345678",
			TemplateID:    template.ID,
			ScheduledTime: scheduledTime,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("MmsRequiresMediaURL", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.CreateSchedule(ctx, model.CreateScheduleRequest{
			Phone:         "0412345678",
			Text:          "hi",
			Format:        model.FormatMMS,
			ScheduledTime: scheduledTime,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("EmptyTextRejectedForSms", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.CreateSchedule(ctx, model.CreateScheduleRequest{
			Phone:         "0412345678",
			ScheduledTime: scheduledTime,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})
}

func TestCreateBatchSchedule(t *testing.T) {
	ctx := testContext(t)
	scheduledTime := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)

	t.Run("SnapshotsMembershipAtCreation", func(t *testing.T) {
		svc, m := newTestService(t)

		group := model.NewContactGroup(&model.ContactGroup{OrgID: testOrgID})
		members := []model.Contact{
			*model.NewContact(&model.Contact{OrgID: testOrgID}),
			*model.NewContact(&model.Contact{OrgID: testOrgID}),
			*model.NewContact(&model.Contact{OrgID: testOrgID}),
		}
		m.groupRepo.On("FindByID", mock.Anything, group.ID).Return(group, nil).Once()
		m.groupRepo.On("EligibleMembers", mock.Anything, group.ID).Return(members, nil).Once()

		var inserted []model.Schedule
		var requested int
		m.scheduleRepo.On("CreateWithCapacity", mock.Anything, mock.Anything, model.FormatSMS, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				inserted = args.Get(1).([]model.Schedule)
				requested = args.Get(3).(int)
			}).Return(nil).Once()
		m.scheduleRepo.On("FindByID", mock.Anything, mock.Anything).
			Return(model.NewSchedule(&model.Schedule{OrgID: testOrgID, GroupID: &group.ID}), nil).Once()

		_, err := svc.CreateBatchSchedule(ctx, model.CreateBatchScheduleRequest{
			Name:          "spring campaign",
			GroupID:       group.ID,
			Text:          "sale on now",
			ScheduledTime: scheduledTime,
		})
		require.NoError(t, err)

		require.Len(t, inserted, 4)
		assert.Equal(t, 3, requested, "parent reserves no units of its own")

		parent := inserted[0]
		assert.Equal(t, "spring campaign", parent.Name)
		require.NotNil(t, parent.GroupID)
		assert.Nil(t, parent.ParentID)
		for i, child := range inserted[1:] {
			require.NotNil(t, child.ParentID)
			assert.Equal(t, parent.ID, *child.ParentID)
			assert.Nil(t, child.GroupID)
			assert.Equal(t, members[i].PhoneNumber, child.Phone)
			assert.Equal(t, scheduledTime, child.ScheduledTime)
		}
	})

	t.Run("QuotaRejectionDropsWholeBatch", func(t *testing.T) {
		svc, m := newTestService(t)

		group := model.NewContactGroup(&model.ContactGroup{OrgID: testOrgID})
		members := []model.Contact{*model.NewContact(&model.Contact{OrgID: testOrgID})}
		m.groupRepo.On("FindByID", mock.Anything, group.ID).Return(group, nil).Once()
		m.groupRepo.On("EligibleMembers", mock.Anything, group.ID).Return(members, nil).Once()
		m.scheduleRepo.On("CreateWithCapacity", mock.Anything, mock.Anything, model.FormatSMS, 1, mock.Anything).
			Return(apperrors.NewCapacityError(100, 100, 1)).Once()

		_, err := svc.CreateBatchSchedule(ctx, model.CreateBatchScheduleRequest{
			Name:          "campaign",
			GroupID:       group.ID,
			Text:          "sale",
			ScheduledTime: scheduledTime,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCapacityExceededError(err))

		capErr, ok := apperrors.AsCapacityError(err)
		require.True(t, ok)
		assert.Equal(t, 100, capErr.Limit)
	})
}

func TestUpdateSchedule(t *testing.T) {
	ctx := testContext(t)

	t.Run("IndividualPendingUpdated", func(t *testing.T) {
		svc, m := newTestService(t)

		existing := model.NewSchedule(&model.Schedule{OrgID: testOrgID, Text: "old text"})
		m.scheduleRepo.On("FindByID", mock.Anything, existing.ID).Return(existing, nil).Twice()

		var updated model.Schedule
		m.scheduleRepo.On("Update", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				updated = args.Get(1).(model.Schedule)
			}).Return(nil).Once()

		newText := "new text"
		_, err := svc.UpdateSchedule(ctx, existing.ID, model.UpdateScheduleRequest{Text: &newText})
		require.NoError(t, err)
		assert.Equal(t, "new text", updated.Text)
		assert.Equal(t, 1, updated.MessageParts)
	})

	t.Run("NonPendingConflicts", func(t *testing.T) {
		svc, m := newTestService(t)

		existing := model.NewSchedule(&model.Schedule{OrgID: testOrgID, Status: model.StatusSent})
		m.scheduleRepo.On("FindByID", mock.Anything, existing.ID).Return(existing, nil).Once()

		newText := "too late"
		_, err := svc.UpdateSchedule(ctx, existing.ID, model.UpdateScheduleRequest{Text: &newText})
		require.Error(t, err)
		assert.True(t, apperrors.IsStateConflictError(err))
	})

	t.Run("BatchParentPropagates", func(t *testing.T) {
		svc, m := newTestService(t)

		groupID := "group-1"
		parent := model.NewSchedule(&model.Schedule{OrgID: testOrgID, GroupID: &groupID})
		m.scheduleRepo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil).Twice()
		m.scheduleRepo.On("PropagateUpdate", mock.Anything, parent.ID, mock.Anything).Return(nil).Once()

		newText := "revised"
		_, err := svc.UpdateSchedule(ctx, parent.ID, model.UpdateScheduleRequest{Text: &newText})
		require.NoError(t, err)
		m.scheduleRepo.AssertExpectations(t)
	})

	t.Run("SetAndClearTemplateConflict", func(t *testing.T) {
		svc, _ := newTestService(t)

		templateID := "tpl-1"
		_, err := svc.UpdateSchedule(ctx, "sched-1", model.UpdateScheduleRequest{
			TemplateID:    &templateID,
			ClearTemplate: true,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})
}

func TestCancelSchedule(t *testing.T) {
	ctx := testContext(t)

	svc, m := newTestService(t)
	m.scheduleRepo.On("CascadeCancel", mock.Anything, "sched-1").Return(4, nil).Once()

	cancelled, err := svc.CancelSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 4, cancelled)
}

func TestGetScheduleChildren(t *testing.T) {
	ctx := testContext(t)

	t.Run("BatchParent", func(t *testing.T) {
		svc, m := newTestService(t)

		groupID := "group-1"
		parent := model.NewSchedule(&model.Schedule{OrgID: testOrgID, GroupID: &groupID})
		children := []model.Schedule{*model.NewSchedule(&model.Schedule{OrgID: testOrgID})}
		m.scheduleRepo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil).Once()
		m.scheduleRepo.On("FindChildren", mock.Anything, parent.ID).Return(children, nil).Once()

		got, err := svc.GetScheduleChildren(ctx, parent.ID)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("IndividualRejected", func(t *testing.T) {
		svc, m := newTestService(t)

		individual := model.NewSchedule(&model.Schedule{OrgID: testOrgID})
		m.scheduleRepo.On("FindByID", mock.Anything, individual.ID).Return(individual, nil).Once()

		_, err := svc.GetScheduleChildren(ctx, individual.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})
}
