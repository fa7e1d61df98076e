package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
)

func TestSyncOrganisation(t *testing.T) {
	ctx := testContext(t)

	t.Run("UpsertsWithDefaults", func(t *testing.T) {
		svc, m := newTestService(t)

		var upserted model.Organisation
		m.orgRepo.On("Upsert", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				upserted = args.Get(1).(model.Organisation)
			}).Return(nil).Once()

		err := svc.SyncOrganisation(ctx, model.OrganisationUpsertPayload{
			OrgID: "org-abc",
			Name:  "Acme Pty Ltd",
			Slug:  "acme",
		})
		require.NoError(t, err)
		assert.Equal(t, "org-abc", upserted.ID)
		assert.True(t, upserted.IsActive, "active unless the event says otherwise")
	})

	t.Run("DeactivationCarriesThrough", func(t *testing.T) {
		svc, m := newTestService(t)

		inactive := false
		var upserted model.Organisation
		m.orgRepo.On("Upsert", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				upserted = args.Get(1).(model.Organisation)
			}).Return(nil).Once()

		err := svc.SyncOrganisation(ctx, model.OrganisationUpsertPayload{
			OrgID:    "org-abc",
			Name:     "Acme Pty Ltd",
			IsActive: &inactive,
		})
		require.NoError(t, err)
		assert.False(t, upserted.IsActive)
	})

	t.Run("MissingFieldsAreFatal", func(t *testing.T) {
		svc, _ := newTestService(t)

		err := svc.SyncOrganisation(ctx, model.OrganisationUpsertPayload{OrgID: "org-abc"})
		require.Error(t, err)
		assert.True(t, apperrors.IsFatal(err), "malformed events must not be redelivered")
	})
}

func TestSyncMembership(t *testing.T) {
	ctx := testContext(t)

	t.Run("Upserts", func(t *testing.T) {
		svc, m := newTestService(t)

		org := model.NewOrganisation(&model.Organisation{ID: "org-abc"})
		m.orgRepo.On("FindByID", mock.Anything, "org-abc").Return(org, nil).Once()
		m.orgRepo.On("UpsertMembership", mock.Anything, mock.Anything).Return(nil).Once()

		err := svc.SyncMembership(ctx, model.MembershipUpsertPayload{
			UserID: "user-1",
			OrgID:  "org-abc",
			Role:   "admin",
		})
		require.NoError(t, err)
		m.orgRepo.AssertExpectations(t)
	})

	t.Run("UnknownOrgIsRetryable", func(t *testing.T) {
		svc, m := newTestService(t)

		m.orgRepo.On("FindByID", mock.Anything, "org-later").Return(nil, apperrors.ErrNotFound).Once()

		err := svc.SyncMembership(ctx, model.MembershipUpsertPayload{
			UserID: "user-1",
			OrgID:  "org-later",
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsRetryable(err), "out of order events retry once the org lands")
	})
}

func TestAuthoriseMember(t *testing.T) {
	ctx := testContext(t)

	t.Run("ActiveMembership", func(t *testing.T) {
		svc, m := newTestService(t)

		membership := &model.OrganisationMembership{UserID: "user-1", OrgID: testOrgID, Role: "member", IsActive: true}
		m.orgRepo.On("FindMembership", mock.Anything, "user-1", testOrgID).Return(membership, nil).Once()

		got, err := svc.AuthoriseMember(ctx, "user-1", testOrgID)
		require.NoError(t, err)
		assert.Equal(t, "member", got.Role)
	})

	t.Run("NoMembership", func(t *testing.T) {
		svc, m := newTestService(t)

		m.orgRepo.On("FindMembership", mock.Anything, "user-2", testOrgID).Return(nil, apperrors.ErrNotFound).Once()

		_, err := svc.AuthoriseMember(ctx, "user-2", testOrgID)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("InactiveMembership", func(t *testing.T) {
		svc, m := newTestService(t)

		membership := &model.OrganisationMembership{UserID: "user-3", OrgID: testOrgID, IsActive: false}
		m.orgRepo.On("FindMembership", mock.Anything, "user-3", testOrgID).Return(membership, nil).Once()

		_, err := svc.AuthoriseMember(ctx, "user-3", testOrgID)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}
