package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/adbroker/internal/domain"
)

const (
	headerSignature = "X-Adbroker-Signature"
	headerTimestamp = "X-Adbroker-Timestamp"
)

// Destination describes where and how a notification is delivered.
type Destination struct {
	URL      string
	AuthType domain.WebhookAuthType
	// AuthToken is the bearer credential or the HMAC signing secret,
	// depending on AuthType.
	AuthToken string
}

// Metadata identifies the delivery for logging.
type Metadata struct {
	TenantID         uuid.UUID
	PrincipalID      uuid.UUID
	ObjectType       string
	ObjectID         string
	NotificationType string
}

// Sender POSTs notifications with retry, backoff, and per-attempt
// delivery logging. Failed deliveries are logged, never raised.
type Sender struct {
	client      *http.Client
	logs        domain.DeliveryLogRepository
	maxAttempts int
	backoffCap  time.Duration

	// sleep and now are swapped out by tests.
	sleep func(time.Duration)
	now   func() time.Time
}

func NewSender(logs domain.DeliveryLogRepository, maxAttempts int, attemptTimeout, backoffCap time.Duration) *Sender {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Sender{
		client:      &http.Client{Timeout: attemptTimeout},
		logs:        logs,
		maxAttempts: maxAttempts,
		backoffCap:  backoffCap,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// SetSleep replaces the backoff sleep function. Tests use it to avoid
// real waits.
func (s *Sender) SetSleep(fn func(time.Duration)) {
	s.sleep = fn
}

// Send delivers the notification, retrying transient failures with
// exponential backoff. It returns whether delivery ultimately succeeded.
// A 4xx response is permanent and stops retrying; 5xx and network
// errors are transient. Every attempt updates the same delivery log row.
func (s *Sender) Send(ctx context.Context, dest Destination, n *Notification, meta Metadata) bool {
	body, err := n.Body()
	if err != nil {
		log.Error().Err(err).Str("url", dest.URL).Msg("webhook.Send: serialize payload")
		return false
	}

	taskID, seq := n.Ref()
	entry := &domain.DeliveryLogEntry{
		ID:               uuid.New(),
		TenantID:         meta.TenantID,
		PrincipalID:      meta.PrincipalID,
		ObjectType:       meta.ObjectType,
		ObjectID:         meta.ObjectID,
		URL:              dest.URL,
		NotificationType: meta.NotificationType,
		Sequence:         seq,
		PayloadBytes:     len(body),
		CreatedAt:        s.now().UTC(),
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		entry.Attempts = attempt

		status, elapsedMS, attemptErr := s.attempt(ctx, dest, body)
		entry.HTTPStatus = status
		entry.ResponseTimeMS = elapsedMS

		switch {
		case attemptErr == nil && status >= 200 && status < 300:
			entry.Status = domain.DeliveryStatusSuccess
			entry.ErrorMessage = ""
			entry.NextRetryAt = nil
			completed := s.now().UTC()
			entry.CompletedAt = &completed
			s.record(ctx, entry)
			return true

		case attemptErr == nil && status >= 400 && status < 500:
			// Client errors will not self-resolve.
			entry.Status = domain.DeliveryStatusFailed
			entry.ErrorMessage = fmt.Sprintf("permanent failure: HTTP %d", status)
			entry.NextRetryAt = nil
			completed := s.now().UTC()
			entry.CompletedAt = &completed
			s.record(ctx, entry)
			log.Warn().Str("url", dest.URL).Str("task_id", taskID).Int("status", status).
				Msg("webhook.Send: permanent delivery failure")
			return false

		default:
			if attemptErr != nil {
				entry.ErrorMessage = attemptErr.Error()
			} else {
				entry.ErrorMessage = fmt.Sprintf("transient failure: HTTP %d", status)
			}

			if attempt == s.maxAttempts {
				entry.Status = domain.DeliveryStatusFailed
				entry.NextRetryAt = nil
				completed := s.now().UTC()
				entry.CompletedAt = &completed
				s.record(ctx, entry)
				log.Warn().Str("url", dest.URL).Str("task_id", taskID).Int("attempts", attempt).
					Msg("webhook.Send: delivery failed after retries")
				return false
			}

			backoff := s.backoff(attempt)
			next := s.now().UTC().Add(backoff)
			entry.Status = domain.DeliveryStatusRetrying
			entry.NextRetryAt = &next
			s.record(ctx, entry)
			s.sleep(backoff)
		}
	}

	return false
}

func (s *Sender) attempt(ctx context.Context, dest Destination, body []byte) (int, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	switch dest.AuthType {
	case domain.WebhookAuthBearer:
		req.Header.Set("Authorization", "Bearer "+dest.AuthToken)
	case domain.WebhookAuthSigned:
		ts := strconv.FormatInt(s.now().Unix(), 10)
		req.Header.Set(headerTimestamp, ts)
		req.Header.Set(headerSignature, Sign(dest.AuthToken, ts, body))
	case domain.WebhookAuthNone:
	}

	start := s.now()
	resp, err := s.client.Do(req)
	elapsedMS := s.now().Sub(start).Milliseconds()
	if err != nil {
		return 0, elapsedMS, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, elapsedMS, nil
}

func (s *Sender) backoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * time.Second
	if d > s.backoffCap {
		d = s.backoffCap
	}
	return d
}

func (s *Sender) record(ctx context.Context, entry *domain.DeliveryLogEntry) {
	if err := s.logs.Upsert(ctx, entry); err != nil {
		log.Error().Err(err).Str("url", entry.URL).Msg("webhook.Send: write delivery log")
	}
}

// Sign computes the hex HMAC-SHA256 of timestamp + "." + body under the
// shared secret. Receivers recompute it to verify integrity and recency.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
