package webhook_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/webhook"
)

type mockDeliveryLogRepo struct {
	mu      sync.Mutex
	entries []domain.DeliveryLogEntry

	upsertFunc func(ctx context.Context, e *domain.DeliveryLogEntry) error
}

func (m *mockDeliveryLogRepo) Upsert(ctx context.Context, e *domain.DeliveryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, e)
	}
	return nil
}

func (m *mockDeliveryLogRepo) ListByObject(_ context.Context, _ uuid.UUID, _, _ string, _ int) ([]*domain.DeliveryLogEntry, error) {
	return nil, nil
}

func (m *mockDeliveryLogRepo) NextSequence(_ context.Context, _ uuid.UUID, _, _, _ string) (int64, error) {
	return 1, nil
}

func (m *mockDeliveryLogRepo) all() []domain.DeliveryLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DeliveryLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func newTestSender(t *testing.T, logs domain.DeliveryLogRepository) *webhook.Sender {
	t.Helper()
	s := webhook.NewSender(logs, 3, 10*time.Second, 60*time.Second)
	s.SetSleep(func(time.Duration) {})
	return s
}

func eventNotification(seq int64) *webhook.Notification {
	return &webhook.Notification{
		Kind:     webhook.KindEvent,
		TaskID:   "task-1",
		Sequence: seq,
		Event: &webhook.StatusEvent{
			TaskID:     "task-1",
			Sequence:   seq,
			ObjectType: "media_buy",
			ObjectID:   "mb-1",
			Status:     "active",
			Timestamp:  time.Now().UTC(),
		},
	}
}

func TestSenderRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logs := &mockDeliveryLogRepo{}
	sender := newTestSender(t, logs)

	ok := sender.Send(t.Context(), webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthNone},
		eventNotification(1), webhook.Metadata{TenantID: uuid.New(), ObjectType: "media_buy", ObjectID: "mb-1"})

	require.True(t, ok)
	assert.EqualValues(t, 3, calls.Load())

	entries := logs.all()
	require.Len(t, entries, 3)
	assert.Equal(t, domain.DeliveryStatusRetrying, entries[0].Status)
	assert.Equal(t, domain.DeliveryStatusRetrying, entries[1].Status)
	assert.Equal(t, domain.DeliveryStatusSuccess, entries[2].Status)
	assert.Equal(t, 3, entries[2].Attempts)
	require.NotNil(t, entries[2].CompletedAt)

	// All attempts of one delivery share one log id.
	assert.Equal(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, entries[1].ID, entries[2].ID)
}

func TestSenderPermanentFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	logs := &mockDeliveryLogRepo{}
	sender := newTestSender(t, logs)

	ok := sender.Send(t.Context(), webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthNone},
		eventNotification(1), webhook.Metadata{TenantID: uuid.New()})

	require.False(t, ok)
	assert.EqualValues(t, 1, calls.Load())

	entries := logs.all()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.DeliveryStatusFailed, entries[0].Status)
	assert.Equal(t, http.StatusNotFound, entries[0].HTTPStatus)
	assert.Nil(t, entries[0].NextRetryAt)
}

func TestSenderExhaustsAttemptsOnRepeat5xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	logs := &mockDeliveryLogRepo{}
	sender := newTestSender(t, logs)

	ok := sender.Send(t.Context(), webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthNone},
		eventNotification(2), webhook.Metadata{TenantID: uuid.New()})

	require.False(t, ok)

	entries := logs.all()
	require.Len(t, entries, 3)
	assert.Equal(t, domain.DeliveryStatusRetrying, entries[0].Status)
	require.NotNil(t, entries[0].NextRetryAt)
	assert.Equal(t, domain.DeliveryStatusFailed, entries[2].Status)
	assert.Equal(t, 3, entries[2].Attempts)
}

func TestSenderNetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	logs := &mockDeliveryLogRepo{}
	sender := newTestSender(t, logs)

	// Nothing listens here.
	ok := sender.Send(t.Context(), webhook.Destination{URL: "http://127.0.0.1:1", AuthType: domain.WebhookAuthNone},
		eventNotification(1), webhook.Metadata{TenantID: uuid.New()})

	require.False(t, ok)

	entries := logs.all()
	require.Len(t, entries, 3)
	assert.Equal(t, domain.DeliveryStatusFailed, entries[2].Status)
	assert.NotEmpty(t, entries[2].ErrorMessage)
}

func TestSenderBearerAuthHeader(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := newTestSender(t, &mockDeliveryLogRepo{})

	ok := sender.Send(t.Context(),
		webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthBearer, AuthToken: "secret-token"},
		eventNotification(1), webhook.Metadata{TenantID: uuid.New()})

	require.True(t, ok)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestSenderSignedAuthHeaders(t *testing.T) {
	t.Parallel()

	var (
		gotSig  string
		gotTS   string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Adbroker-Signature")
		gotTS = r.Header.Get("X-Adbroker-Timestamp")
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		gotBody = body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := newTestSender(t, &mockDeliveryLogRepo{})

	ok := sender.Send(t.Context(),
		webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthSigned, AuthToken: "signing-secret"},
		eventNotification(1), webhook.Metadata{TenantID: uuid.New()})

	require.True(t, ok)
	require.NotEmpty(t, gotSig)
	require.NotEmpty(t, gotTS)

	// Receiver-side verification recomputes the same signature.
	assert.Equal(t, webhook.Sign("signing-secret", gotTS, gotBody), gotSig)
}
