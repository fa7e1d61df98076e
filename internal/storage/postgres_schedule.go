package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
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

// --- Schedule Repository Methods ---

// usageQuery builds the quota usage filter: non-parent rows of the format
// whose status still holds or consumed capacity, falling inside the daily
// window. Cancelled and failed rows release their units.
func usageQuery(tx *gorm.DB, orgID string, format model.MessageFormat, windowStart time.Time) *gorm.DB {
	windowEnd := windowStart.AddDate(0, 0, 1)
	return tx.Model(&model.Schedule{}).
		Where("org_id = ?", orgID).
		Where("format = ?", format).
		Where("group_id IS NULL").
		Where("status IN ?", []model.ScheduleStatus{model.StatusPending, model.StatusProcessing, model.StatusSent}).
		Where("COALESCE(sent_time, scheduled_time) >= ? AND COALESCE(sent_time, scheduled_time) < ?", windowStart, windowEnd)
}

// lockedLimit reads the org's daily limit for the format with the config row
// locked, serialising concurrent reservations. A missing row means unlimited
// and returns (0, false).
func lockedLimit(tx *gorm.DB, orgID string, format model.MessageFormat) (int, bool, error) {
	var entry model.ConfigEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND name = ?", orgID, model.LimitConfigName(format)).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: failed to lock quota config: %w", apperrors.ErrDatabase, err)
	}

	limit, convErr := strconv.Atoi(entry.Value)
	if convErr != nil {
		return 0, false, fmt.Errorf("%w: config %s has non-integer value %q", apperrors.ErrBadRequest, entry.Name, entry.Value)
	}
	if limit < 0 {
		return 0, false, nil
	}
	return limit, true, nil
}

// CreateWithCapacity inserts schedules and reserves their quota units in one
// transaction. The quota config row stays locked from the usage count to the
// insert, so two concurrent reservations cannot both fit into the same
// remaining capacity.
func (r *PostgresRepo) CreateWithCapacity(ctx context.Context, schedules []model.Schedule, format model.MessageFormat, requested int, windowStart time.Time) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if len(schedules) == 0 {
		return fmt.Errorf("%w: no schedules to create", apperrors.ErrBadRequest)
	}

	now := utils.Now()
	for i := range schedules {
		if schedules[i].OrgID != orgID {
			return fmt.Errorf("%w: schedule OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, schedules[i].OrgID, orgID)
		}
		if shapeErr := schedules[i].ValidateShape(); shapeErr != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrValidation, shapeErr)
		}
		if schedules[i].ID == "" {
			schedules[i].ID = uuid.NewString()
		}
		// Immediate send paths insert rows already in processing so the
		// dispatcher cannot claim them; everything else starts pending.
		if schedules[i].Status != model.StatusProcessing {
			schedules[i].Status = model.StatusPending
		}
		schedules[i].CreatedAt = now
		schedules[i].UpdatedAt = now
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

		limit, limited, limitErr := lockedLimit(tx, orgID, format)
		if limitErr != nil {
			txErr = limitErr
			return txErr
		}

		if limited {
			var used int64
			if countErr := usageQuery(tx, orgID, format, windowStart).
				Select("COALESCE(SUM(message_parts), 0)").
				Scan(&used).Error; countErr != nil {
				txErr = fmt.Errorf("%w: usage count failed: %w", apperrors.ErrDatabase, countErr)
				return txErr
			}
			if int(used)+requested > limit {
				txErr = apperrors.NewCapacityError(limit, int(used), requested)
				return backoff.Permanent(txErr)
			}
		}

		if createErr := tx.Create(&schedules).Error; createErr != nil {
			txErr = checkConstraintViolation(createErr)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit reservation transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateWithCapacity Commit", operation)
	observer.ObserveDbOperationDuration("create_with_capacity", "schedule", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		if apperrors.IsCapacityExceededError(commitErr) {
			observer.IncQuotaRejection(string(format), orgID)
			return commitErr
		}
		logger.FromContext(ctx).Error("Failed to create schedules after retries", zap.Error(commitErr))
		return commitErr
	}
	observer.AddQuotaUnitsReserved(string(format), orgID, requested)
	return nil
}

// UpdateSchedule persists the full schedule row. The write only lands while
// the row is still pending; a row claimed or settled in the meantime is left
// untouched and the caller gets a state conflict.
func (r *PostgresRepo) UpdateSchedule(ctx context.Context, schedule model.Schedule) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if schedule.OrgID != orgID {
		return fmt.Errorf("%w: schedule OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, schedule.OrgID, orgID)
	}
	schedule.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("id = ? AND org_id = ? AND status = ?", schedule.ID, orgID, model.StatusPending).
			Save(&schedule)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			var current model.Schedule
			findErr := r.db.WithContext(ctx).
				Where("id = ? AND org_id = ?", schedule.ID, orgID).
				First(&current).Error
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return backoff.Permanent(fmt.Errorf("%w: schedule %s", apperrors.ErrNotFound, schedule.ID))
				}
				return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, findErr)
			}
			return backoff.Permanent(fmt.Errorf("%w: schedule %s is %s, only pending schedules can be updated",
				apperrors.ErrStateConflict, schedule.ID, current.Status))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateSchedule", operation)
	observer.ObserveDbOperationDuration("update", "schedule", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update schedule after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindScheduleByID finds a schedule by its ID within the tenant scope.
func (r *PostgresRepo) FindScheduleByID(ctx context.Context, id string) (*model.Schedule, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var schedule model.Schedule
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&schedule)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: schedule_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindScheduleByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "schedule", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find schedule by ID after retries",
			zap.String("schedule_id", id),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &schedule, nil
}

// FindScheduleChildren returns a batch parent's children in creation order.
func (r *PostgresRepo) FindScheduleChildren(ctx context.Context, parentID string) ([]model.Schedule, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var children []model.Schedule
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("parent_id = ? AND org_id = ?", parentID, orgID).
			Order("created_at ASC, id ASC").
			Find(&children)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindScheduleChildren", operation)
	observer.ObserveDbOperationDuration("find_children", "schedule", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find schedule children after retries",
			zap.String("parent_id", parentID),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	if children == nil {
		return []model.Schedule{}, nil
	}
	return children, nil
}

// ListSchedules returns the tenant's schedules, optionally filtered by status.
func (r *PostgresRepo) ListSchedules(ctx context.Context, statuses []model.ScheduleStatus, limit, offset int) ([]model.Schedule, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var schedules []model.Schedule
	operation := func() error {
		query := r.db.WithContext(ctx).Where("org_id = ?", orgID)
		if len(statuses) > 0 {
			query = query.Where("status IN ?", statuses)
		}
		result := query.
			Order("scheduled_time ASC, id ASC").
			Limit(limit).
			Offset(offset).
			Find(&schedules)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "ListSchedules", operation)
	observer.ObserveDbOperationDuration("list", "schedule", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to list schedules after retries",
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	if schedules == nil {
		return []model.Schedule{}, nil
	}
	return schedules, nil
}

// CountScheduleUsage returns quota units consumed in the daily window.
// VerifyCapacity re-checks committed usage against the current limit without
// reserving anything. The dispatcher runs this before delivering rows whose
// reservation may predate a lowered limit.
func (r *PostgresRepo) VerifyCapacity(ctx context.Context, format model.MessageFormat, windowStart time.Time) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		var entry model.ConfigEntry
		findErr := r.db.WithContext(ctx).
			Where("org_id = ? AND name = ?", orgID, model.LimitConfigName(format)).
			First(&entry).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if findErr != nil {
			return fmt.Errorf("%w: failed to read quota config: %w", apperrors.ErrDatabase, findErr)
		}

		limit, convErr := strconv.Atoi(entry.Value)
		if convErr != nil {
			return backoff.Permanent(fmt.Errorf("%w: config %s has non-integer value %q", apperrors.ErrBadRequest, entry.Name, entry.Value))
		}
		if limit < 0 {
			return nil
		}

		var used int64
		if countErr := usageQuery(r.db.WithContext(ctx), orgID, format, windowStart).
			Select("COALESCE(SUM(message_parts), 0)").
			Scan(&used).Error; countErr != nil {
			return fmt.Errorf("%w: usage count failed: %w", apperrors.ErrDatabase, countErr)
		}
		if int(used) > limit {
			return backoff.Permanent(apperrors.NewCapacityError(limit, int(used), 0))
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	verifyErr := retryableOperation(ctx, readPolicy, "VerifyCapacity", operation)
	observer.ObserveDbOperationDuration("verify_capacity", "schedule", orgID, time.Since(startTime), verifyErr)
	return verifyErr
}

func (r *PostgresRepo) CountScheduleUsage(ctx context.Context, format model.MessageFormat, windowStart time.Time) (int, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var used int64
	operation := func() error {
		if countErr := usageQuery(r.db.WithContext(ctx), orgID, format, windowStart).
			Select("COALESCE(SUM(message_parts), 0)").
			Scan(&used).Error; countErr != nil {
			return fmt.Errorf("%w: usage count failed: %w", apperrors.ErrDatabase, countErr)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "CountScheduleUsage", operation)
	observer.ObserveDbOperationDuration("count_usage", "schedule", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to count schedule usage after retries",
			zap.String("org_id", orgID),
			zap.String("format", string(format)),
			zap.Error(findErr))
		return 0, findErr
	}
	return int(used), nil
}

// TransitionSchedule moves a schedule between states under a row lock,
// enforcing the lifecycle. mutate runs on the locked row before the write so
// callers can stamp sent_time or an error reason in the same step.
func (r *PostgresRepo) TransitionSchedule(ctx context.Context, id string, from, to model.ScheduleStatus, mutate func(*model.Schedule)) error {
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

		var schedule model.Schedule
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND org_id = ?", id, orgID).
			First(&schedule)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: schedule %s", apperrors.ErrNotFound, id)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock schedule row: %w", apperrors.ErrDatabase, result.Error)
			return txErr
		}

		if schedule.Status != from || !from.CanTransitionTo(to) {
			txErr = fmt.Errorf("%w: schedule %s is %s, cannot move %s -> %s",
				apperrors.ErrStateConflict, id, schedule.Status, from, to)
			return backoff.Permanent(txErr)
		}

		schedule.Status = to
		if mutate != nil {
			mutate(&schedule)
			schedule.Status = to
		}
		schedule.UpdatedAt = utils.Now()

		if saveErr := tx.Save(&schedule).Error; saveErr != nil {
			txErr = checkConstraintViolation(saveErr)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit transition transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "TransitionSchedule Commit", operation)
	observer.ObserveDbOperationDuration("transition", "schedule", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		if apperrors.IsStateConflictError(commitErr) || errors.Is(commitErr, apperrors.ErrNotFound) {
			return commitErr
		}
		logger.FromContext(ctx).Error("Failed to transition schedule after retries",
			zap.String("schedule_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(commitErr))
		return commitErr
	}
	observer.IncScheduleTransition(orgID, string(from), string(to))
	return nil
}

// CascadeCancelSchedule cancels a pending schedule. A batch parent drags its
// pending children along; children already past pending keep their state.
func (r *PostgresRepo) CascadeCancelSchedule(ctx context.Context, id string) (int, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var cancelled int
	operation := func() error {
		cancelled = 0
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

		var schedule model.Schedule
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND org_id = ?", id, orgID).
			First(&schedule)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: schedule %s", apperrors.ErrNotFound, id)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock schedule row: %w", apperrors.ErrDatabase, result.Error)
			return txErr
		}

		if schedule.Status != model.StatusPending {
			txErr = fmt.Errorf("%w: schedule %s is %s, only pending schedules can be cancelled",
				apperrors.ErrStateConflict, id, schedule.Status)
			return backoff.Permanent(txErr)
		}

		now := utils.Now()
		if schedule.Kind() == model.KindBatch {
			childResult := tx.Model(&model.Schedule{}).
				Where("parent_id = ? AND org_id = ? AND status = ?", id, orgID, model.StatusPending).
				Updates(map[string]interface{}{"status": model.StatusCancelled, "updated_at": now})
			if childResult.Error != nil {
				txErr = checkConstraintViolation(childResult.Error)
				return txErr
			}
			cancelled += int(childResult.RowsAffected)
		}

		parentResult := tx.Model(&model.Schedule{}).
			Where("id = ? AND org_id = ?", id, orgID).
			Updates(map[string]interface{}{"status": model.StatusCancelled, "updated_at": now})
		if parentResult.Error != nil {
			txErr = checkConstraintViolation(parentResult.Error)
			return txErr
		}
		cancelled += int(parentResult.RowsAffected)

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit cancel transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CascadeCancelSchedule Commit", operation)
	observer.ObserveDbOperationDuration("cascade_cancel", "schedule", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		if apperrors.IsStateConflictError(commitErr) || errors.Is(commitErr, apperrors.ErrNotFound) {
			return 0, commitErr
		}
		logger.FromContext(ctx).Error("Failed to cancel schedule after retries",
			zap.String("schedule_id", id),
			zap.Error(commitErr))
		return 0, commitErr
	}
	observer.IncScheduleTransition(orgID, string(model.StatusPending), string(model.StatusCancelled))
	return cancelled, nil
}

// PropagateScheduleUpdate mutates a pending batch parent and mirrors the
// shared fields onto its pending children. Children past pending are left
// untouched.
func (r *PostgresRepo) PropagateScheduleUpdate(ctx context.Context, parentID string, apply func(*model.Schedule)) error {
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

		var parent model.Schedule
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND org_id = ?", parentID, orgID).
			First(&parent)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: schedule %s", apperrors.ErrNotFound, parentID)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock schedule row: %w", apperrors.ErrDatabase, result.Error)
			return txErr
		}

		if parent.Kind() != model.KindBatch {
			txErr = fmt.Errorf("%w: schedule %s is not a batch parent", apperrors.ErrBadRequest, parentID)
			return backoff.Permanent(txErr)
		}
		if parent.Status != model.StatusPending {
			txErr = fmt.Errorf("%w: schedule %s is %s, only pending schedules can be updated",
				apperrors.ErrStateConflict, parentID, parent.Status)
			return backoff.Permanent(txErr)
		}

		apply(&parent)
		parent.Status = model.StatusPending
		parent.UpdatedAt = utils.Now()

		if saveErr := tx.Save(&parent).Error; saveErr != nil {
			txErr = checkConstraintViolation(saveErr)
			return txErr
		}

		childResult := tx.Model(&model.Schedule{}).
			Where("parent_id = ? AND org_id = ? AND status = ?", parentID, orgID, model.StatusPending).
			Updates(map[string]interface{}{
				"name":           parent.Name,
				"text":           parent.Text,
				"template_id":    parent.TemplateID,
				"message_parts":  parent.MessageParts,
				"scheduled_time": parent.ScheduledTime,
				"updated_at":     parent.UpdatedAt,
			})
		if childResult.Error != nil {
			txErr = checkConstraintViolation(childResult.Error)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit propagate transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "PropagateScheduleUpdate Commit", operation)
	observer.ObserveDbOperationDuration("propagate_update", "schedule", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		if apperrors.IsStateConflictError(commitErr) || errors.Is(commitErr, apperrors.ErrNotFound) || errors.Is(commitErr, apperrors.ErrBadRequest) {
			return commitErr
		}
		logger.FromContext(ctx).Error("Failed to propagate schedule update after retries",
			zap.String("parent_id", parentID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// ClaimDuePendingSchedules marks up to limit due pending rows as processing
// and returns them. SKIP LOCKED lets concurrent dispatchers partition the
// backlog without blocking each other. Batch parents are never claimed.
func (r *PostgresRepo) ClaimDuePendingSchedules(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	var claimed []model.Schedule
	operation := func() error {
		claimed = nil
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

		result := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", model.StatusPending).
			Where("scheduled_time <= ?", now).
			Where("group_id IS NULL").
			Order("scheduled_time ASC, id ASC").
			Limit(limit).
			Find(&claimed)
		if result.Error != nil {
			txErr = fmt.Errorf("%w: claim query failed: %w", apperrors.ErrDatabase, result.Error)
			return txErr
		}

		if len(claimed) > 0 {
			ids := make([]string, len(claimed))
			for i := range claimed {
				ids[i] = claimed[i].ID
			}
			updateResult := tx.Model(&model.Schedule{}).
				Where("id IN ?", ids).
				Updates(map[string]interface{}{"status": model.StatusProcessing, "updated_at": now})
			if updateResult.Error != nil {
				txErr = checkConstraintViolation(updateResult.Error)
				return txErr
			}
			for i := range claimed {
				claimed[i].Status = model.StatusProcessing
				claimed[i].UpdatedAt = now
			}
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit claim transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ClaimDuePendingSchedules Commit", operation)
	observer.ObserveDbOperationDuration("claim_due", "schedule", "", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to claim due schedules after retries", zap.Error(commitErr))
		return nil, commitErr
	}
	return claimed, nil
}

// ResolveDueBatchParents drives batch parent lifecycles: due pending parents
// move to processing, and processing parents whose children have all settled
// are finalised. A parent ends sent when at least one child was sent, failed
// when every child failed or was cancelled. Parents with no children at all
// end sent; an empty batch has nothing left to deliver.
func (r *PostgresRepo) ResolveDueBatchParents(ctx context.Context, now time.Time) (int, error) {
	resolved := 0
	operation := func() error {
		resolved = 0
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

		dueResult := tx.Model(&model.Schedule{}).
			Where("group_id IS NOT NULL AND status = ? AND scheduled_time <= ?", model.StatusPending, now).
			Updates(map[string]interface{}{"status": model.StatusProcessing, "updated_at": now})
		if dueResult.Error != nil {
			txErr = checkConstraintViolation(dueResult.Error)
			return txErr
		}

		var parents []model.Schedule
		result := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("group_id IS NOT NULL AND status = ?", model.StatusProcessing).
			Where("NOT EXISTS (SELECT 1 FROM schedules c WHERE c.parent_id = schedules.id AND c.status IN ?)",
				[]model.ScheduleStatus{model.StatusPending, model.StatusProcessing}).
			Find(&parents)
		if result.Error != nil {
			txErr = fmt.Errorf("%w: parent query failed: %w", apperrors.ErrDatabase, result.Error)
			return txErr
		}

		for i := range parents {
			var sentChildren int64
			if countErr := tx.Model(&model.Schedule{}).
				Where("parent_id = ? AND status = ?", parents[i].ID, model.StatusSent).
				Count(&sentChildren).Error; countErr != nil {
				txErr = fmt.Errorf("%w: child count failed: %w", apperrors.ErrDatabase, countErr)
				return txErr
			}
			var totalChildren int64
			if countErr := tx.Model(&model.Schedule{}).
				Where("parent_id = ?", parents[i].ID).
				Count(&totalChildren).Error; countErr != nil {
				txErr = fmt.Errorf("%w: child count failed: %w", apperrors.ErrDatabase, countErr)
				return txErr
			}

			if sentChildren > 0 || totalChildren == 0 {
				parents[i].MarkSent(now)
			} else {
				parents[i].MarkFailed("all recipients failed or were cancelled")
			}
			parents[i].UpdatedAt = now
			if saveErr := tx.Save(&parents[i]).Error; saveErr != nil {
				txErr = checkConstraintViolation(saveErr)
				return txErr
			}
			observer.IncScheduleTransition(parents[i].OrgID, string(model.StatusProcessing), string(parents[i].Status))
			resolved++
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit resolve transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ResolveDueBatchParents Commit", operation)
	observer.ObserveDbOperationDuration("resolve_parents", "schedule", "", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to resolve batch parents after retries", zap.Error(commitErr))
		return 0, commitErr
	}
	return resolved, nil
}
