package orgsync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/config"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/observer"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// Core NATS subscriptions have no redelivery, so retryable failures are
// replayed in process. The elapsed bound mainly covers membership events
// arriving ahead of their organisation event.
const (
	syncRetryInitialInterval = 500 * time.Millisecond
	syncRetryMaxElapsedTime  = 30 * time.Second
)

// OrgEventService is the slice of the messaging service the consumer needs.
type OrgEventService interface {
	SyncOrganisation(ctx context.Context, payload model.OrganisationUpsertPayload) error
	SyncMembership(ctx context.Context, payload model.MembershipUpsertPayload) error
}

// Consumer subscribes to the identity service's organisation and membership
// events and projects them into local storage. Subscriptions share a queue
// group so multiple instances split the feed.
type Consumer struct {
	nc         *nats.Conn
	service    OrgEventService
	cfg        config.Config
	baseLogger *zap.Logger
	subs       []*nats.Subscription

	retryInitialInterval time.Duration
	retryMaxElapsedTime  time.Duration
}

// NewConsumer connects to NATS and returns a consumer ready to Start.
func NewConsumer(cfg config.Config, service OrgEventService, baseLogger *zap.Logger) (*Consumer, error) {
	log := baseLogger.Named("orgsync")

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, s *nats.Subscription, err error) {
			log.Error("NATS error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Consumer{
		nc:                   nc,
		service:              service,
		cfg:                  cfg,
		baseLogger:           log,
		retryInitialInterval: syncRetryInitialInterval,
		retryMaxElapsedTime:  syncRetryMaxElapsedTime,
	}, nil
}

// Start subscribes to both event subjects.
func (c *Consumer) Start(ctx context.Context) error {
	orgSub, err := c.nc.QueueSubscribe(c.cfg.NATS.OrgSubject, c.cfg.NATS.QueueGroup, func(msg *nats.Msg) {
		c.handleOrganisation(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.cfg.NATS.OrgSubject, err)
	}
	c.subs = append(c.subs, orgSub)

	memberSub, err := c.nc.QueueSubscribe(c.cfg.NATS.MembershipSubject, c.cfg.NATS.QueueGroup, func(msg *nats.Msg) {
		c.handleMembership(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.cfg.NATS.MembershipSubject, err)
	}
	c.subs = append(c.subs, memberSub)

	c.baseLogger.Info("Organisation sync consumer started",
		zap.String("org_subject", c.cfg.NATS.OrgSubject),
		zap.String("membership_subject", c.cfg.NATS.MembershipSubject),
		zap.String("queue_group", c.cfg.NATS.QueueGroup),
	)
	return nil
}

// Stop drains the subscriptions and closes the connection.
func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.baseLogger.Warn("Failed to drain subscription", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	if err := c.nc.Drain(); err != nil {
		c.baseLogger.Warn("Failed to drain NATS connection", zap.Error(err))
	}
	c.baseLogger.Info("Organisation sync consumer stopped")
}

func (c *Consumer) handleOrganisation(ctx context.Context, msg *nats.Msg) {
	log := c.baseLogger.With(zap.String("subject", msg.Subject))

	var payload model.OrganisationUpsertPayload
	if err := utils.UnmarshalJSON(msg.Data, &payload); err != nil {
		log.Error("Failed to unmarshal organisation event", zap.Error(err))
		observer.IncOrgSyncEvent("organisation", "unmarshal_error")
		return
	}

	err := c.withRetry(ctx, log, "organisation", func() error {
		return c.service.SyncOrganisation(ctx, payload)
	})
	c.record(log, "organisation", payload.OrgID, err)
}

func (c *Consumer) handleMembership(ctx context.Context, msg *nats.Msg) {
	log := c.baseLogger.With(zap.String("subject", msg.Subject))

	var payload model.MembershipUpsertPayload
	if err := utils.UnmarshalJSON(msg.Data, &payload); err != nil {
		log.Error("Failed to unmarshal membership event", zap.Error(err))
		observer.IncOrgSyncEvent("membership", "unmarshal_error")
		return
	}

	err := c.withRetry(ctx, log, "membership", func() error {
		return c.service.SyncMembership(ctx, payload)
	})
	c.record(log, "membership", payload.OrgID, err)
}

// withRetry replays op while it fails retryably, blocking the subscription
// callback so later events on the subject wait their turn. Fatal errors stop
// the replay immediately.
func (c *Consumer) withRetry(ctx context.Context, log *zap.Logger, eventType string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitialInterval
	b.MaxElapsedTime = c.retryMaxElapsedTime
	b.Reset()

	notify := func(err error, d time.Duration) {
		log.Warn("Retrying identity event",
			zap.String("event_type", eventType),
			zap.Error(err),
			zap.Duration("after", d),
		)
	}
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), notify)
}

// record classifies the handler outcome. Fatal errors are dropped after
// logging; retryable ones are dropped once the in-process replay gives up.
func (c *Consumer) record(log *zap.Logger, eventType, orgID string, err error) {
	switch {
	case err == nil:
		observer.IncOrgSyncEvent(eventType, "success")
		log.Debug("Processed identity event", zap.String("event_type", eventType), zap.String("org_id", orgID))
	case apperrors.IsRetryable(err):
		observer.IncOrgSyncEvent(eventType, "error_retryable")
		log.Warn("Transient failure processing identity event",
			zap.String("event_type", eventType),
			zap.String("org_id", orgID),
			zap.Error(err),
		)
	default:
		observer.IncOrgSyncEvent(eventType, "error_fatal")
		log.Error("Dropped unprocessable identity event",
			zap.String("event_type", eventType),
			zap.String("org_id", orgID),
			zap.Error(err),
		)
	}
}
