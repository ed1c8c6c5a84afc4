// Package intake provides the webhook ingestion and deduplication boundary.
// Collaborators translate each external system's native webhook body into the
// normalized Envelope before calling Admit; the unique constraint on the
// dedupe key is the sole idempotency gate against webhook redelivery.
package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Webhook sources.
const (
	SourceCRM    = "crm"
	SourceDialer = "dialer"
)

// Entity types carried by webhook events.
const (
	EntityContact       = "contact"
	EntityAppointment   = "appointment"
	EntityCall          = "call"
	EntityRecording     = "recording"
	EntityTranscription = "transcription"
	EntityVoicemail     = "voicemail"
	EntityMessage       = "message"
	EntityBroadcast     = "broadcast"
)

// Webhook event lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Envelope is the normalized inbound webhook shape.
type Envelope struct {
	Source     string          `json:"source" validate:"required,oneof=crm dialer"`
	EventType  string          `json:"eventType" validate:"required,max=100"`
	EntityType string          `json:"entityType" validate:"required,max=50"`
	EntityID   string          `json:"entityId" validate:"required,max=200"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
	// Nonce is the provider's delivery or event id when it supplies one.
	// Without it the dedupe key falls back to a payload digest, so byte-equal
	// redeliveries still collapse to one admission.
	Nonce string `json:"nonce"`
}

// WebhookEvent is one admitted webhook row. Rows are never deleted, only
// superseded by newer events; status is mutated exclusively by the router.
type WebhookEvent struct {
	ID           uuid.UUID       `json:"id"`
	ReceivedAt   time.Time       `json:"receivedAt"`
	Source       string          `json:"source"`
	EventType    string          `json:"eventType"`
	EntityType   string          `json:"entityType"`
	EntityID     string          `json:"entityId"`
	RawPayload   json.RawMessage `json:"rawPayload"`
	DedupeKey    string          `json:"dedupeKey"`
	Status       string          `json:"status"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
}

// AdmitResult is the outcome of an admission attempt.
type AdmitResult struct {
	Admitted bool      `json:"admitted"`
	EventID  uuid.UUID `json:"eventId"`
}

// DedupeKey computes the deterministic fingerprint for an envelope.
// Identical redeliveries always map to the same key.
func DedupeKey(env Envelope) string {
	nonce := env.Nonce
	if nonce == "" {
		sum := sha256.Sum256(env.Payload)
		nonce = hex.EncodeToString(sum[:])
	}
	input := strings.Join([]string{env.Source, env.EntityType, env.EntityID, env.EventType, nonce}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
