package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/config"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/observer"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/provider"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/storage"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/tenant"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// taskData carries one claimed schedule row into a worker goroutine.
type taskData struct {
	ctx      context.Context
	schedule model.Schedule
}

// IDispatcher defines the interface for the deferred-send dispatcher.
type IDispatcher interface {
	Start(ctx context.Context)
	Stop()
}

// Dispatcher polls for due pending schedules, claims them and delivers each
// through a bounded worker pool. Claimed rows are already in processing, so a
// second dispatcher instance can run against the same database safely.
type Dispatcher struct {
	pool         *ants.PoolWithFunc
	scheduleRepo storage.ScheduleRepo
	gateway      *provider.Gateway
	cfg          config.DispatcherConfig
	quotaLoc     *time.Location
	baseLogger   *zap.Logger
	stopOnce     sync.Once
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// Ensure Dispatcher implements IDispatcher
var _ IDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates the dispatcher and its worker pool.
func NewDispatcher(
	cfg config.DispatcherConfig,
	scheduleRepo storage.ScheduleRepo,
	gateway *provider.Gateway,
	quotaLoc *time.Location,
	baseLogger *zap.Logger,
) (*Dispatcher, error) {
	d := &Dispatcher{
		scheduleRepo: scheduleRepo,
		gateway:      gateway,
		cfg:          cfg,
		quotaLoc:     quotaLoc,
		baseLogger:   baseLogger.Named("dispatcher"),
		stopCh:       make(chan struct{}),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(taskData)
		if !ok {
			d.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		d.processTask(task)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.ClaimBatch),
		ants.WithPanicHandler(func(err interface{}) {
			d.baseLogger.Error("Panic recovered in dispatcher worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher pool: %w", err)
	}
	d.pool = pool
	d.baseLogger.Info("Dispatcher pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("claim_batch", cfg.ClaimBatch),
	)
	return d, nil
}

// Start begins the polling loop. The loop stops when ctx is cancelled or
// Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	utils.SafeGo(func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				d.baseLogger.Info("Dispatcher poll loop stopping, context cancelled")
				return
			case <-d.stopCh:
				d.baseLogger.Info("Dispatcher poll loop stopping")
				return
			case <-ticker.C:
				d.poll(ctx)
			}
		}
	}, func(r interface{}, stack []byte) {
		d.baseLogger.Error("Panic recovered in dispatcher poll loop", zap.Any("panic_error", r), zap.ByteString("stack", stack))
	})
}

// Stop halts the poll loop and releases the worker pool after in-flight
// tasks drain.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.wg.Wait()
		d.pool.Release()
		d.baseLogger.Info("Dispatcher stopped")
	})
}

// poll claims one batch of due rows and submits them to the pool, then
// finalises any batch parents whose children have all settled.
func (d *Dispatcher) poll(ctx context.Context) {
	now := utils.Now()

	claimed, err := d.scheduleRepo.ClaimDuePending(ctx, now, d.cfg.ClaimBatch)
	if err != nil {
		d.baseLogger.Error("Failed to claim due schedules", zap.Error(err))
		return
	}
	if len(claimed) > 0 {
		observer.IncDispatcherClaimed(len(claimed))
		d.baseLogger.Debug("Claimed due schedules", zap.Int("count", len(claimed)))
	}

	for _, schedule := range claimed {
		taskCtx := tenant.WithOrgID(ctx, schedule.OrgID)
		observer.SetDispatcherQueueLength(d.pool.Waiting())

		if err := d.pool.Invoke(taskData{ctx: taskCtx, schedule: schedule}); err != nil {
			// The row stays in processing; a restart or operator action
			// has to resolve it. Overload is the only expected cause.
			d.baseLogger.Warn("Failed to submit claimed schedule to pool",
				zap.String("schedule_id", schedule.ID),
				zap.String("org_id", schedule.OrgID),
				zap.Error(err),
			)
			if errors.Is(err, ants.ErrPoolOverload) {
				return
			}
		}
	}

	resolved, err := d.scheduleRepo.ResolveDueParents(ctx, now)
	if err != nil {
		d.baseLogger.Error("Failed to resolve batch parents", zap.Error(err))
		return
	}
	if resolved > 0 {
		d.baseLogger.Debug("Resolved batch parents", zap.Int("count", resolved))
	}
}

// processTask delivers one claimed schedule and records the outcome on the
// row. Provider rejections settle the row as failed; they are not retried.
func (d *Dispatcher) processTask(task taskData) {
	schedule := task.schedule
	log := logger.FromContextOr(task.ctx, d.baseLogger).With(
		zap.String("schedule_id", schedule.ID),
		zap.String("org_id", schedule.OrgID),
		zap.String("format", string(schedule.Format)),
	)

	start := time.Now()
	log.Debug("Dispatching schedule")

	// The reservation was taken at creation time; a limit lowered since then
	// still blocks delivery.
	windowStart := utils.StartOfDayIn(schedule.ScheduledTime, d.quotaLoc)
	if err := d.scheduleRepo.VerifyCapacity(task.ctx, schedule.Format, windowStart); err != nil {
		if apperrors.IsCapacityExceededError(err) {
			log.Warn("Capacity exceeded at dispatch time", zap.Error(err))
			reason := err.Error()
			failErr := d.scheduleRepo.Transition(task.ctx, schedule.ID, model.StatusProcessing, model.StatusFailed,
				func(sc *model.Schedule) { sc.MarkFailed(reason) })
			if failErr != nil {
				log.Error("Failed to settle capacity-blocked schedule", zap.Error(failErr))
			}
			observer.IncQuotaRejection(string(schedule.Format), schedule.OrgID)
			observer.IncMessageSubmitted(string(schedule.Format), schedule.OrgID, string(model.StatusFailed))
		} else {
			// The row stays in processing for a later resolution pass.
			log.Error("Capacity verification failed", zap.Error(err))
		}
		return
	}

	var result *provider.SendResult
	var err error
	if schedule.Format == model.FormatMMS {
		result, err = d.gateway.SendMms(task.ctx, schedule.Phone, schedule.Text, schedule.MediaURL, schedule.Subject)
	} else {
		result, err = d.gateway.SendSms(task.ctx, schedule.Phone, schedule.Text)
	}

	var to model.ScheduleStatus
	var mutate func(*model.Schedule)
	switch {
	case err != nil:
		log.Warn("Provider rejected scheduled message", zap.Error(err))
		to = model.StatusFailed
		reason := err.Error()
		mutate = func(sc *model.Schedule) { sc.MarkFailed(reason) }
	case !result.Accepted:
		to = model.StatusFailed
		reason := result.FailureReason
		mutate = func(sc *model.Schedule) { sc.MarkFailed(reason) }
	default:
		sentAt := utils.Now()
		ref := result.ProviderRef
		to = model.StatusSent
		mutate = func(sc *model.Schedule) {
			sc.MarkSent(sentAt)
			sc.LastMetadata = datatypes.JSON(utils.MustMarshalJSON(map[string]string{
				"provider_ref": ref,
			}))
		}
	}

	if err := d.scheduleRepo.Transition(task.ctx, schedule.ID, model.StatusProcessing, to, mutate); err != nil {
		log.Error("Failed to settle dispatched schedule", zap.Error(err))
	}

	observer.ObserveDispatchDuration(time.Since(start))
	observer.IncMessageSubmitted(string(schedule.Format), schedule.OrgID, string(to))
	log.Debug("Schedule dispatched", zap.String("outcome", string(to)))
}
