package webhook_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/webhook"
)

func TestDispatcherDeliversAsync(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logs := &mockDeliveryLogRepo{}
	sender := newTestSender(t, logs)
	dispatcher := webhook.NewDispatcher(sender, 16)
	dispatcher.Start(t.Context(), 2)

	for i := range 5 {
		dispatcher.Dispatch(t.Context(),
			webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthNone},
			eventNotification(int64(i+1)),
			webhook.Metadata{TenantID: uuid.New()})
	}

	dispatcher.Stop()

	assert.EqualValues(t, 5, calls.Load())
	assert.Len(t, logs.all(), 5)
}

func TestDispatcherInlineFallbackWhenStopped(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := newTestSender(t, &mockDeliveryLogRepo{})
	dispatcher := webhook.NewDispatcher(sender, 16)

	// Never started: Dispatch must still deliver, inline.
	dispatcher.Dispatch(t.Context(),
		webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthNone},
		eventNotification(1), webhook.Metadata{TenantID: uuid.New()})

	require.EqualValues(t, 1, calls.Load())
}

func TestDispatcherDrainsQueueOnStop(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(10 * time.Millisecond)
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := newTestSender(t, &mockDeliveryLogRepo{})
	dispatcher := webhook.NewDispatcher(sender, 64)
	dispatcher.Start(t.Context(), 1)

	for i := range 10 {
		dispatcher.Dispatch(t.Context(),
			webhook.Destination{URL: srv.URL, AuthType: domain.WebhookAuthNone},
			eventNotification(int64(i+1)), webhook.Metadata{TenantID: uuid.New()})
	}

	dispatcher.Stop()

	assert.EqualValues(t, 10, calls.Load())
}
