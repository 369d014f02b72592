package adserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockAdapter simulates an ad server that approves orders after a
// configurable number of reconcile checks. Tenants without a real ad
// server integration run against it.
type MockAdapter struct {
	approveAfter int

	mu     sync.Mutex
	checks map[string]int
}

func NewMockAdapter(settings map[string]any) (Adapter, error) {
	approveAfter := 2
	if v, ok := settings["approve_after_checks"].(float64); ok {
		approveAfter = int(v)
	}
	if approveAfter < 0 {
		return nil, fmt.Errorf("adserver.NewMockAdapter: approve_after_checks must be >= 0, got %d", approveAfter)
	}

	return &MockAdapter{
		approveAfter: approveAfter,
		checks:       make(map[string]int),
	}, nil
}

func (m *MockAdapter) CreateOrder(_ context.Context, req OrderRequest) (string, error) {
	if req.OrderName == "" {
		return "", fmt.Errorf("adserver.MockAdapter.CreateOrder: empty order name")
	}
	return "mock-order-" + uuid.NewString(), nil
}

func (m *MockAdapter) Reconcile(_ context.Context, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks[resourceID]++
	if m.checks[resourceID] <= m.approveAfter {
		return ErrNotReady
	}

	return nil
}
