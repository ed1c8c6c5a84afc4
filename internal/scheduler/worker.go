package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"dialer_sync_backend/internal/audit"
	"dialer_sync_backend/platform/config"
	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Recomputer is the analytics entrypoint the worker drives.
type Recomputer interface {
	RecomputeAndPush(ctx context.Context, broadcastID string) error
}

// AuditSink records terminal job outcomes.
type AuditSink interface {
	Append(ctx context.Context, entry audit.Entry) (uuid.UUID, error)
}

// Worker pulls jobs and executes their handlers. Failed handlers are
// redelivered by asynq with exponential backoff; exhausting retries marks
// the job failed and surfaces it through the audit trail.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	repo      *Repository
	analytics Recomputer
	audits    AuditSink
	log       *logger.Logger
	maxRetry  int
}

// NewWorker creates the job worker from config.
func NewWorker(cfg config.SchedulerConfig, repo *Repository, analytics Recomputer, audits AuditSink, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	retryBase := cfg.GetJobRetryBase()
	if retryBase <= 0 {
		retryBase = 30 * time.Second
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return retryBase * time.Duration(math.Pow(2, float64(n)))
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		repo:      repo,
		analytics: analytics,
		audits:    audits,
		log:       log,
		maxRetry:  cfg.GetJobMaxRetry(),
	}

	mux.HandleFunc(TaskAnalyticsRecompute, w.handleAnalyticsRecompute)

	return w, nil
}

// Run serves the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAnalyticsRecompute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAnalyticsRecomputePayload(task)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(payload.BroadcastEventID)
	if err != nil {
		return fmt.Errorf("invalid broadcast event id %q: %w", payload.BroadcastEventID, err)
	}

	// The payload is just a reference; the job row is the truth.
	job, err := w.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == JobDone {
		return nil
	}

	started := time.Now()
	if err := w.analytics.RecomputeAndPush(ctx, job.BroadcastID); err != nil {
		return w.jobFailed(ctx, job, started, err)
	}

	if err := w.repo.MarkDone(ctx, jobID); err != nil {
		return err
	}
	if _, err := w.audits.Append(ctx, audit.NewSuccess(
		audit.DirectionAnalyticsToCRM, "broadcast", job.BroadcastID, job.BroadcastID, nil, started, job.ID,
	)); err != nil {
		w.log.DatabaseError("append job audit", err)
	}
	return nil
}

// jobFailed records the retry, and on the final attempt marks the job
// permanently failed with an audit entry before re-returning the error.
func (w *Worker) jobFailed(ctx context.Context, job BroadcastJob, started time.Time, cause error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	metrics.JobRetriesTotal.WithLabelValues(TaskAnalyticsRecompute).Inc()
	w.log.JobFailure(TaskAnalyticsRecompute, retried, w.maxRetry, cause)

	if retried >= w.maxRetry {
		if err := w.repo.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
			w.log.DatabaseError("mark job failed", err)
		}
		if _, err := w.audits.Append(ctx, audit.NewFailure(
			audit.DirectionAnalyticsToCRM, "broadcast", job.BroadcastID, started, job.ID, cause,
		)); err != nil {
			w.log.DatabaseError("append job audit", err)
		}
	}
	return cause
}
