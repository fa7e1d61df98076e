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

// --- Contact Repository Methods ---

// SaveContact inserts a new contact record for the tenant in context.
func (r *PostgresRepo) SaveContact(ctx context.Context, contact model.Contact) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if contact.OrgID != orgID {
		return fmt.Errorf("%w: contact OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, contact.OrgID, orgID)
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	contact.CreatedAt = utils.Now()
	contact.UpdatedAt = contact.CreatedAt

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&contact).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveContact", operation)
	observer.ObserveDbOperationDuration("save", "contact", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save contact after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpdateContact updates an existing contact record.
func (r *PostgresRepo) UpdateContact(ctx context.Context, contact model.Contact) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if contact.OrgID != orgID {
		return fmt.Errorf("%w: contact OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, contact.OrgID, orgID)
	}
	contact.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.Contact{}).
			Where("id = ? AND org_id = ?", contact.ID, orgID).
			Select("phone_number", "first_name", "last_name", "email", "company", "assigned_to", "opt_out", "is_active", "updated_by", "updated_at").
			Updates(contact)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, contact.ID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateContact", operation)
	observer.ObserveDbOperationDuration("update", "contact", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update contact after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindContactByID finds a contact by its ID within the tenant scope.
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find contact by ID after retries",
			zap.String("contact_id", id),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &contact, nil
}

// FindContactByPhone finds a contact by its canonical phone number.
func (r *PostgresRepo) FindContactByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where("phone_number = ? AND org_id = ?", phone, orgID).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: phone %s: %w", apperrors.ErrNotFound, phone, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByPhone", operation)
	observer.ObserveDbOperationDuration("find_by_phone", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find contact by phone after retries",
			zap.String("phone", phone),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &contact, nil
}

// ListContacts returns the tenant's contacts ordered by creation time.
func (r *PostgresRepo) ListContacts(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contacts []model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("org_id = ?", orgID).
			Order("created_at ASC").
			Limit(limit).
			Offset(offset).
			Find(&contacts)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "ListContacts", operation)
	observer.ObserveDbOperationDuration("list", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to list contacts after retries",
			zap.String("org_id", orgID),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Error(findErr))
		return nil, findErr
	}
	if contacts == nil {
		return []model.Contact{}, nil
	}
	return contacts, nil
}
