package orgsync

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/config"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

type orgEventServiceMock struct {
	mock.Mock
}

func (m *orgEventServiceMock) SyncOrganisation(ctx context.Context, payload model.OrganisationUpsertPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *orgEventServiceMock) SyncMembership(ctx context.Context, payload model.MembershipUpsertPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func newTestConsumer(t *testing.T) (*Consumer, *orgEventServiceMock) {
	t.Helper()
	service := new(orgEventServiceMock)
	c := &Consumer{
		service:              service,
		cfg:                  config.Config{},
		baseLogger:           zaptest.NewLogger(t),
		retryInitialInterval: time.Millisecond,
		retryMaxElapsedTime:  50 * time.Millisecond,
	}
	return c, service
}

func orgMsg(t *testing.T, payload interface{}) *nats.Msg {
	t.Helper()
	return &nats.Msg{Subject: "identity.test", Data: utils.MustMarshalJSON(payload)}
}

func TestHandleOrganisation(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidEventSynced", func(t *testing.T) {
		c, service := newTestConsumer(t)

		payload := model.OrganisationUpsertPayload{OrgID: "org-1", Name: "Acme"}
		service.On("SyncOrganisation", mock.Anything, payload).Return(nil).Once()

		c.handleOrganisation(ctx, orgMsg(t, payload))
		service.AssertExpectations(t)
	})

	t.Run("MalformedJSONDropped", func(t *testing.T) {
		c, service := newTestConsumer(t)

		c.handleOrganisation(ctx, &nats.Msg{Subject: "identity.test", Data: []byte("{not json")})
		service.AssertNotCalled(t, "SyncOrganisation", mock.Anything, mock.Anything)
	})

	t.Run("FatalServiceErrorDropped", func(t *testing.T) {
		c, service := newTestConsumer(t)

		payload := model.OrganisationUpsertPayload{OrgID: "org-1"}
		service.On("SyncOrganisation", mock.Anything, payload).
			Return(apperrors.NewFatal(apperrors.ErrValidation, "missing name")).Once()

		// Must not panic or retry; the event is logged and dropped.
		c.handleOrganisation(ctx, orgMsg(t, payload))
		service.AssertExpectations(t)
	})
}

func TestHandleMembership(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidEventSynced", func(t *testing.T) {
		c, service := newTestConsumer(t)

		payload := model.MembershipUpsertPayload{UserID: "user-1", OrgID: "org-1", Role: "admin"}
		service.On("SyncMembership", mock.Anything, payload).Return(nil).Once()

		c.handleMembership(ctx, orgMsg(t, payload))
		service.AssertExpectations(t)
	})

	// A membership event arriving before its organisation event succeeds once
	// the organisation lands, without waiting on any broker redelivery.
	t.Run("OutOfOrderEventReplayedUntilOrgArrives", func(t *testing.T) {
		c, service := newTestConsumer(t)

		payload := model.MembershipUpsertPayload{UserID: "user-1", OrgID: "org-later"}
		service.On("SyncMembership", mock.Anything, payload).
			Return(apperrors.NewRetryable(apperrors.ErrNotFound, "organisation not yet synchronised")).Twice()
		service.On("SyncMembership", mock.Anything, payload).Return(nil).Once()

		c.handleMembership(ctx, orgMsg(t, payload))
		service.AssertExpectations(t)
	})

	t.Run("RetryableErrorDroppedAfterReplayExhausted", func(t *testing.T) {
		c, service := newTestConsumer(t)

		payload := model.MembershipUpsertPayload{UserID: "user-1", OrgID: "org-never"}
		service.On("SyncMembership", mock.Anything, payload).
			Return(apperrors.NewRetryable(apperrors.ErrNotFound, "organisation not yet synchronised"))

		c.handleMembership(ctx, orgMsg(t, payload))
		service.AssertExpectations(t)
		service.AssertCalled(t, "SyncMembership", mock.Anything, payload)
	})
}

func TestRecordClassification(t *testing.T) {
	c, _ := newTestConsumer(t)
	log := zaptest.NewLogger(t)

	// None of these may panic regardless of error shape.
	c.record(log, "organisation", "org-1", nil)
	c.record(log, "organisation", "org-1", apperrors.NewRetryable(apperrors.ErrDatabase, "db down"))
	c.record(log, "organisation", "org-1", apperrors.NewFatal(apperrors.ErrValidation, "bad payload"))
	c.record(log, "organisation", "org-1", assert.AnError)

	require.NotNil(t, c)
}
