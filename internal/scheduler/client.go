package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/config"
	"dialer_sync_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client admits recompute jobs into the durable store and enqueues them.
// It is the router's BroadcastEnqueuer.
type Client struct {
	client   *asynq.Client
	repo     *Repository
	log      *logger.Logger
	queue    string
	maxRetry int
}

// NewClient creates a scheduler client from config.
func NewClient(cfg config.SchedulerConfig, repo *Repository, log *logger.Logger) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client:   asynq.NewClient(opt),
		repo:     repo,
		log:      log,
		queue:    queue,
		maxRetry: cfg.GetJobMaxRetry(),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueRecompute admits and enqueues an analytics recompute for the
// broadcast behind a delivery event. A dedupe-key collision means an
// equivalent job is already queued, which is a silent no-op.
func (c *Client) EnqueueRecompute(ctx context.Context, ev intake.BroadcastEvent, correlationID uuid.UUID) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("job queue not configured")
	}
	if ev.BroadcastID == "" {
		return fmt.Errorf("broadcast event %s has no broadcast id", correlationID)
	}

	dedupeKey := RecomputeDedupeKey(ev.BroadcastID, time.Now())
	jobID, admitted, err := c.repo.Admit(ctx, ev.BroadcastID, ev.EventType, dedupeKey, nil)
	if err != nil {
		return fmt.Errorf("admit recompute job: %w", err)
	}
	if !admitted {
		c.log.WithContext(ctx).Debug("recompute job already queued",
			"broadcast_id", ev.BroadcastID, "dedupe_key", dedupeKey)
		return nil
	}

	task, err := NewAnalyticsRecomputeTask(AnalyticsRecomputePayload{BroadcastEventID: jobID.String()})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue recompute task: %w", err)
	}

	c.log.WithContext(ctx).Info("recompute job enqueued",
		"broadcast_id", ev.BroadcastID, "job_id", jobID, "correlation_id", correlationID)
	return nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}

	tlsConfig := opt.TLSConfig
	if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
