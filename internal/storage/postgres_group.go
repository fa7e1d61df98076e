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

// --- Contact Group Repository Methods ---

// SaveGroup inserts a new contact group for the tenant in context.
func (r *PostgresRepo) SaveGroup(ctx context.Context, group model.ContactGroup) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if group.OrgID != orgID {
		return fmt.Errorf("%w: group OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, group.OrgID, orgID)
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.CreatedAt = utils.Now()
	group.UpdatedAt = group.CreatedAt

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&group).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveGroup", operation)
	observer.ObserveDbOperationDuration("save", "group", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save group after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindGroupByID finds a contact group by its ID within the tenant scope.
func (r *PostgresRepo) FindGroupByID(ctx context.Context, id string) (*model.ContactGroup, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var group model.ContactGroup
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&group)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindGroupByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "group", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find group by ID after retries",
			zap.String("group_id", id),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &group, nil
}

// AddGroupMember links a contact to a group. Both rows must belong to the
// tenant in context; the membership row itself carries no org column.
func (r *PostgresRepo) AddGroupMember(ctx context.Context, groupID, contactID string) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		var count int64
		if countErr := tx.Model(&model.ContactGroup{}).Where("id = ? AND org_id = ?", groupID, orgID).Count(&count).Error; countErr != nil {
			txErr = fmt.Errorf("%w: group lookup failed: %w", apperrors.ErrDatabase, countErr)
			return txErr
		}
		if count == 0 {
			txErr = fmt.Errorf("%w: group %s", apperrors.ErrNotFound, groupID)
			return txErr
		}
		if countErr := tx.Model(&model.Contact{}).Where("id = ? AND org_id = ?", contactID, orgID).Count(&count).Error; countErr != nil {
			txErr = fmt.Errorf("%w: contact lookup failed: %w", apperrors.ErrDatabase, countErr)
			return txErr
		}
		if count == 0 {
			txErr = fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, contactID)
			return txErr
		}

		member := model.ContactGroupMember{
			ID:        uuid.NewString(),
			GroupID:   groupID,
			ContactID: contactID,
			JoinedAt:  utils.Now(),
		}
		if createErr := tx.Create(&member).Error; createErr != nil {
			txErr = checkConstraintViolation(createErr)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit membership transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AddGroupMember Commit", operation)
	observer.ObserveDbOperationDuration("add_member", "group", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to add group member after retries",
			zap.String("group_id", groupID),
			zap.String("contact_id", contactID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// RemoveGroupMember unlinks a contact from a group.
func (r *PostgresRepo) RemoveGroupMember(ctx context.Context, groupID, contactID string) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("group_id = ? AND contact_id = ?", groupID, contactID).
			Where("group_id IN (?)", r.db.Model(&model.ContactGroup{}).Select("id").Where("org_id = ?", orgID)).
			Delete(&model.ContactGroupMember{})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: member %s of group %s", apperrors.ErrNotFound, contactID, groupID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "RemoveGroupMember", operation)
	observer.ObserveDbOperationDuration("remove_member", "group", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to remove group member after retries",
			zap.String("group_id", groupID),
			zap.String("contact_id", contactID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindEligibleGroupMembers returns the group's active, not opted out contacts
// in membership creation order.
func (r *PostgresRepo) FindEligibleGroupMembers(ctx context.Context, groupID string) ([]model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var contacts []model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).
			Joins("JOIN contact_group_members ON contact_group_members.contact_id = contacts.id").
			Joins("JOIN contact_groups ON contact_groups.id = contact_group_members.group_id").
			Where("contact_group_members.group_id = ?", groupID).
			Where("contact_groups.org_id = ?", orgID).
			Where("contacts.org_id = ?", orgID).
			Where("contacts.is_active = ? AND contacts.opt_out = ?", true, false).
			Order("contact_group_members.joined_at ASC").
			Find(&contacts)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindEligibleGroupMembers", operation)
	observer.ObserveDbOperationDuration("eligible_members", "group", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to load eligible group members after retries",
			zap.String("group_id", groupID),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	if contacts == nil {
		return []model.Contact{}, nil
	}
	return contacts, nil
}
