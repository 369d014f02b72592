package notify_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	slacklib "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/notify"
)

type mockSlackAPI struct {
	postMessageFunc func(channelID string, options ...slacklib.MsgOption) (string, string, error)
	calls           int
	lastChannel     string
}

func (m *mockSlackAPI) PostMessage(channelID string, options ...slacklib.MsgOption) (string, string, error) {
	m.calls++
	m.lastChannel = channelID
	if m.postMessageFunc != nil {
		return m.postMessageFunc(channelID, options...)
	}
	return channelID, "1234.5678", nil
}

func TestStepRequiresApprovalPostsToChannel(t *testing.T) {
	t.Parallel()

	api := &mockSlackAPI{}
	n := notify.NewSlackNotifier(api, "C0APPROVALS")

	err := n.StepRequiresApproval(t.Context(), &domain.WorkflowStep{
		ID:        uuid.New(),
		StepType:  domain.StepTypeApproval,
		Owner:     domain.OwnerPublisher,
		Status:    domain.StepRequiresApproval,
		Operation: "create_media_buy",
		Assignee:  "ops@pub.example",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, api.calls)
	assert.Equal(t, "C0APPROVALS", api.lastChannel)
}

func TestStepRequiresApprovalWrapsAPIError(t *testing.T) {
	t.Parallel()

	api := &mockSlackAPI{
		postMessageFunc: func(string, ...slacklib.MsgOption) (string, string, error) {
			return "", "", errors.New("channel_not_found")
		},
	}
	n := notify.NewSlackNotifier(api, "C0MISSING")

	err := n.StepRequiresApproval(t.Context(), &domain.WorkflowStep{
		ID:     uuid.New(),
		Status: domain.StepRequiresApproval,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}
