// Package scheduler is the durable job queue for deferred work. Jobs are
// admitted through the same dedupe-by-unique-key gate as webhook intake,
// then dispatched at-least-once by asynq with retry and backoff.
package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const TaskAnalyticsRecompute = "analytics.recompute"

// AnalyticsRecomputePayload carries only a reference id; the handler
// resolves the full record from the job store so stale enqueued data is
// never trusted.
type AnalyticsRecomputePayload struct {
	BroadcastEventID string `json:"broadcastEventId"`
}

func NewAnalyticsRecomputeTask(payload AnalyticsRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsRecompute, data), nil
}

func ParseAnalyticsRecomputePayload(task *asynq.Task) (AnalyticsRecomputePayload, error) {
	var payload AnalyticsRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AnalyticsRecomputePayload{}, err
	}
	return payload, nil
}

// RecomputeDedupeKey fingerprints a recompute job by broadcast, purpose
// and hour bucket, so a burst of delivery events for one campaign still
// collapses to one recompute per hour.
func RecomputeDedupeKey(broadcastID string, at time.Time) string {
	bucket := at.UTC().Format("2006010215")
	input := strings.Join([]string{TaskAnalyticsRecompute, broadcastID, bucket}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
