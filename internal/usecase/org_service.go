package usecase

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/validator"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
)

// Organisation and membership records are projections of an upstream identity
// service; the sync consumer feeds them through here. These paths are not
// tenant scoped because the event itself names the org.

// SyncOrganisation creates or refreshes an organisation record.
func (s *MessagingService) SyncOrganisation(ctx context.Context, payload model.OrganisationUpsertPayload) error {
	if err := validator.Validate(payload); err != nil {
		return apperrors.NewFatal(err, "invalid organisation payload")
	}

	org := model.Organisation{
		ID:   payload.OrgID,
		Name: payload.Name,
		Slug: payload.Slug,
	}
	if payload.IsActive != nil {
		org.IsActive = *payload.IsActive
	} else {
		org.IsActive = true
	}

	if err := s.orgRepo.Upsert(ctx, org); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Organisation synchronised",
		zap.String("orgId", org.ID),
		zap.Bool("isActive", org.IsActive))
	return nil
}

// SyncMembership creates or refreshes a user's membership in an organisation.
// The organisation must already be known.
func (s *MessagingService) SyncMembership(ctx context.Context, payload model.MembershipUpsertPayload) error {
	if err := validator.Validate(payload); err != nil {
		return apperrors.NewFatal(err, "invalid membership payload")
	}

	if _, err := s.orgRepo.FindByID(ctx, payload.OrgID); err != nil {
		if apperrors.IsNotFoundError(err) {
			// Events can arrive out of order; retry once the org lands.
			return apperrors.NewRetryable(err, "organisation %s not yet synchronised", payload.OrgID)
		}
		return err
	}

	membership := model.OrganisationMembership{
		UserID: payload.UserID,
		OrgID:  payload.OrgID,
		Role:   payload.Role,
	}
	if payload.IsActive != nil {
		membership.IsActive = *payload.IsActive
	} else {
		membership.IsActive = true
	}

	if err := s.orgRepo.UpsertMembership(ctx, membership); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Membership synchronised",
		zap.String("userId", payload.UserID),
		zap.String("orgId", payload.OrgID))
	return nil
}

// AuthoriseMember verifies that a user holds an active membership in an
// organisation. Missing or inactive memberships are unauthorized.
func (s *MessagingService) AuthoriseMember(ctx context.Context, userID, orgID string) (*model.OrganisationMembership, error) {
	membership, err := s.orgRepo.FindMembership(ctx, userID, orgID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewFatal(apperrors.ErrUnauthorized, "user %s is not a member of organisation %s", userID, orgID)
		}
		return nil, err
	}
	if !membership.IsActive {
		return nil, apperrors.NewFatal(apperrors.ErrUnauthorized, "membership of user %s in organisation %s is inactive", userID, orgID)
	}
	return membership, nil
}
