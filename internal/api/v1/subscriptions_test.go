package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/adbroker/internal/api/v1"
	"github.com/gosuda/adbroker/internal/domain"
)

func TestCreateSubscription(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	principalID := uuid.New()

	t.Run("happy_path_signed", func(t *testing.T) {
		t.Parallel()

		var created bool
		_, api := humatest.New(t)
		store := &mockDataStore{
			subscriptions: &mockSubscriptionRepo{
				createFunc: func(_ context.Context, sub *domain.PushSubscription) error {
					created = true
					assert.Equal(t, tenantID, sub.TenantID)
					assert.Equal(t, principalID, sub.PrincipalID)
					assert.Equal(t, "https://buyer.example/hooks", sub.URL)
					assert.Equal(t, domain.WebhookAuthSigned, sub.AuthType)
					assert.Equal(t, "shh", sub.AuthToken)
					assert.Equal(t, "media_buy", sub.ObjectType)
					assert.True(t, sub.Active)
					return nil
				},
			},
		}
		v1.RegisterSubscriptionRoutes(api, store)

		resp := api.PostCtx(principalCtx(tenantID, principalID), "/subscriptions", map[string]any{
			"url":         "https://buyer.example/hooks",
			"auth_type":   "signed",
			"auth_token":  "shh",
			"object_type": "media_buy",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.True(t, created, "store.PushSubscriptions().Create must be invoked")
	})

	t.Run("defaults_to_no_auth_all_objects", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			subscriptions: &mockSubscriptionRepo{
				createFunc: func(_ context.Context, sub *domain.PushSubscription) error {
					assert.Equal(t, domain.WebhookAuthNone, sub.AuthType)
					assert.Empty(t, sub.ObjectType)
					return nil
				},
			},
		}
		v1.RegisterSubscriptionRoutes(api, store)

		resp := api.PostCtx(principalCtx(tenantID, principalID), "/subscriptions", map[string]any{
			"url": "https://buyer.example/hooks",
		})

		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("auth_type_without_token", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterSubscriptionRoutes(api, &mockDataStore{})

		resp := api.PostCtx(principalCtx(tenantID, principalID), "/subscriptions", map[string]any{
			"url":       "https://buyer.example/hooks",
			"auth_type": "bearer",
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("rejects_non_http_url", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterSubscriptionRoutes(api, &mockDataStore{})

		resp := api.PostCtx(principalCtx(tenantID, principalID), "/subscriptions", map[string]any{
			"url": "ftp://buyer.example/hooks",
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("missing_principal", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterSubscriptionRoutes(api, &mockDataStore{})

		resp := api.PostCtx(tenantCtx(tenantID), "/subscriptions", map[string]any{
			"url": "https://buyer.example/hooks",
		})

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestListSubscriptions(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	principalID := uuid.New()

	_, api := humatest.New(t)
	store := &mockDataStore{
		subscriptions: &mockSubscriptionRepo{
			listByPrincipalFunc: func(_ context.Context, tid, pid uuid.UUID) ([]*domain.PushSubscription, error) {
				assert.Equal(t, tenantID, tid)
				assert.Equal(t, principalID, pid)
				return []*domain.PushSubscription{
					{ID: uuid.New(), URL: "https://a.example/h"},
					{ID: uuid.New(), URL: "https://b.example/h"},
				}, nil
			},
		},
	}
	v1.RegisterSubscriptionRoutes(api, store)

	resp := api.GetCtx(principalCtx(tenantID, principalID), "/subscriptions")
	require.Equal(t, http.StatusOK, resp.Code)

	var body []*domain.PushSubscription
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body, 2)
}

func TestDeleteSubscription(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	subID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		var deleted bool
		_, api := humatest.New(t)
		store := &mockDataStore{
			subscriptions: &mockSubscriptionRepo{
				deleteFunc: func(_ context.Context, tid, id uuid.UUID) error {
					deleted = true
					assert.Equal(t, tenantID, tid)
					assert.Equal(t, subID, id)
					return nil
				},
			},
		}
		v1.RegisterSubscriptionRoutes(api, store)

		resp := api.DeleteCtx(tenantCtx(tenantID), "/subscriptions/"+subID.String())
		require.Equal(t, http.StatusNoContent, resp.Code)
		assert.True(t, deleted)
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			subscriptions: &mockSubscriptionRepo{
				deleteFunc: func(_ context.Context, _, _ uuid.UUID) error {
					return domain.ErrNotFound
				},
			},
		}
		v1.RegisterSubscriptionRoutes(api, store)

		resp := api.DeleteCtx(tenantCtx(tenantID), "/subscriptions/"+uuid.New().String())
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestListObjectDeliveries(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	_, api := humatest.New(t)
	store := &mockDataStore{
		deliveryLogs: &mockDeliveryLogRepo{
			listByObjectFunc: func(_ context.Context, tid uuid.UUID, objectType, objectID string, limit int) ([]*domain.DeliveryLogEntry, error) {
				assert.Equal(t, tenantID, tid)
				assert.Equal(t, "media_buy", objectType)
				assert.Equal(t, "mb-1", objectID)
				assert.Equal(t, 25, limit)
				return []*domain.DeliveryLogEntry{
					{ID: uuid.New(), Status: domain.DeliveryStatusSuccess, Attempts: 1, Sequence: 4},
				}, nil
			},
		},
	}
	v1.RegisterSubscriptionRoutes(api, store)

	resp := api.GetCtx(tenantCtx(tenantID), "/objects/media_buy/mb-1/deliveries?limit=25")
	require.Equal(t, http.StatusOK, resp.Code)

	var body []*domain.DeliveryLogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, domain.DeliveryStatusSuccess, body[0].Status)
	assert.EqualValues(t, 4, body[0].Sequence)
}
