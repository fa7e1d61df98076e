package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/observer"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/tenant"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// --- Template Repository Methods ---

// SaveTemplate inserts a new message template for the tenant in context.
func (r *PostgresRepo) SaveTemplate(ctx context.Context, template model.Template) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if template.OrgID != orgID {
		return fmt.Errorf("%w: template OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, template.OrgID, orgID)
	}
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.Version == 0 {
		template.Version = 1
	}
	template.CreatedAt = utils.Now()
	template.UpdatedAt = template.CreatedAt

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&template).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveTemplate", operation)
	observer.ObserveDbOperationDuration("save", "template", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save template after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindTemplateByID finds a template by its ID within the tenant scope.
func (r *PostgresRepo) FindTemplateByID(ctx context.Context, id string) (*model.Template, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var template model.Template
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&template)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: template_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindTemplateByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "template", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find template by ID after retries",
			zap.String("template_id", id),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &template, nil
}

// ListTemplates returns the tenant's active templates ordered by name.
func (r *PostgresRepo) ListTemplates(ctx context.Context) ([]model.Template, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var templates []model.Template
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("org_id = ? AND is_active = ?", orgID, true).
			Order("name ASC").
			Find(&templates)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "ListTemplates", operation)
	observer.ObserveDbOperationDuration("list", "template", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to list templates after retries",
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	if templates == nil {
		return []model.Template{}, nil
	}
	return templates, nil
}
