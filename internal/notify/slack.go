package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/adbroker/internal/domain"
)

// SlackAPI abstracts the subset of the Slack client used by SlackNotifier.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessage(channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackNotifier pings a publisher ops channel when a workflow step needs
// a human decision.
type SlackNotifier struct {
	api     SlackAPI
	channel string
}

func NewSlackNotifier(api SlackAPI, channel string) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel}
}

// StepRequiresApproval posts an approval request for the step.
func (n *SlackNotifier) StepRequiresApproval(_ context.Context, step *domain.WorkflowStep) error {
	header := slacklib.NewHeaderBlock(
		slacklib.NewTextBlockObject(slacklib.PlainTextType, "Approval required", false, false))

	fields := []*slacklib.TextBlockObject{
		slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Operation:*\n%s", step.Operation), false, false),
		slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Step:*\n`%s`", step.ID), false, false),
		slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Owner:*\n%s", step.Owner), false, false),
	}
	if step.Assignee != "" {
		fields = append(fields,
			slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Assignee:*\n%s", step.Assignee), false, false))
	}
	section := slacklib.NewSectionBlock(nil, fields, nil)

	_, _, err := n.api.PostMessage(n.channel,
		slacklib.MsgOptionBlocks(header, section),
		slacklib.MsgOptionText(fmt.Sprintf("Approval required: %s (%s)", step.Operation, step.ID), false))
	if err != nil {
		return fmt.Errorf("notify.SlackNotifier.StepRequiresApproval: %w", err)
	}

	return nil
}
