package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/observer"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// --- Organisation Repository Methods ---
//
// Organisation rows come from the identity sync feed, not from tenant-scoped
// requests, so these methods do not read the tenant context.

// UpsertOrganisation creates or refreshes an organisation record.
func (r *PostgresRepo) UpsertOrganisation(ctx context.Context, org model.Organisation) error {
	org.UpdatedAt = utils.Now()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = org.UpdatedAt
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "slug", "is_active", "updated_at"}),
		}).Create(&org)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertOrganisation", operation)
	observer.ObserveDbOperationDuration("upsert", "organisation", org.ID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert organisation after retries",
			zap.String("org_id", org.ID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindOrganisationByID returns the organisation record, active or not.
func (r *PostgresRepo) FindOrganisationByID(ctx context.Context, id string) (*model.Organisation, error) {
	var org model.Organisation
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&org)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: organisation %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindOrganisationByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "organisation", id, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find organisation after retries",
			zap.String("org_id", id),
			zap.Error(findErr))
		return nil, findErr
	}
	return &org, nil
}

// UpsertMembership creates or refreshes a user's membership in an organisation.
func (r *PostgresRepo) UpsertMembership(ctx context.Context, membership model.OrganisationMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	membership.UpdatedAt = utils.Now()
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = membership.UpdatedAt
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "org_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "is_active", "updated_at"}),
		}).Create(&membership)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertMembership", operation)
	observer.ObserveDbOperationDuration("upsert", "membership", membership.OrgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert membership after retries",
			zap.String("user_id", membership.UserID),
			zap.String("org_id", membership.OrgID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindMembership returns the membership linking a user to an organisation.
func (r *PostgresRepo) FindMembership(ctx context.Context, userID, orgID string) (*model.OrganisationMembership, error) {
	var membership model.OrganisationMembership
	operation := func() error {
		result := r.db.WithContext(ctx).Where("user_id = ? AND org_id = ?", userID, orgID).First(&membership)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: membership %s/%s: %w", apperrors.ErrNotFound, userID, orgID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindMembership", operation)
	observer.ObserveDbOperationDuration("find", "membership", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find membership after retries",
			zap.String("user_id", userID),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &membership, nil
}
