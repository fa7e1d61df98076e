package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/observer"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/tenant"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// --- Config Repository Methods ---

// SetConfig creates or replaces a named config entry for the tenant in context.
func (r *PostgresRepo) SetConfig(ctx context.Context, name, value string) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	entry := model.ConfigEntry{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		Value:     value,
		CreatedAt: utils.Now(),
		UpdatedAt: utils.Now(),
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SetConfig", operation)
	observer.ObserveDbOperationDuration("set", "config", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to set config after retries",
			zap.String("name", name),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// GetConfig returns the named config entry for the tenant in context.
func (r *PostgresRepo) GetConfig(ctx context.Context, name string) (*model.ConfigEntry, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var entry model.ConfigEntry
	operation := func() error {
		result := r.db.WithContext(ctx).Where("org_id = ? AND name = ?", orgID, name).First(&entry)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: config %s: %w", apperrors.ErrNotFound, name, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "GetConfig", operation)
	observer.ObserveDbOperationDuration("get", "config", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to get config after retries",
			zap.String("name", name),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &entry, nil
}

// GetConfigInt parses the named entry as an integer. A missing entry returns
// fallback; a malformed value is a bad request so operators notice.
func (r *PostgresRepo) GetConfigInt(ctx context.Context, name string, fallback int) (int, error) {
	entry, err := r.GetConfig(ctx, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fallback, nil
		}
		return 0, err
	}

	value, err := strconv.Atoi(entry.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: config %s has non-integer value %q", apperrors.ErrBadRequest, name, entry.Value)
	}
	return value, nil
}
