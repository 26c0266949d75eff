// Package slack delivers notify messages to a Slack channel through the
// Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/kpiboard/internal/notify"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts messages to Slack.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // default channel to post to
	// For testing: inject a mock client instead of real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	n := &Notifier{client: opts.Client, channelID: opts.ChannelID}
	if n.client == nil {
		n.client = slackapi.New(opts.BotToken)
	}
	return n, nil
}

// Send posts msg as a single attachment, retrying on rate limits.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) error {
	channelID := msg.ChannelID
	if channelID == "" {
		channelID = n.channelID
	}
	if channelID == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	options := buildMessageOptions(msg)
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := n.client.PostMessageContext(ctx, channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// buildMessageOptions translates a Message into Slack MsgOptions.
func buildMessageOptions(msg notify.Message) []slackapi.MsgOption {
	var options []slackapi.MsgOption
	if msg.Title != "" || msg.Body != "" || len(msg.Fields) > 0 {
		options = append(options, slackapi.MsgOptionAttachments(messageToAttachment(msg)))
	}
	if msg.Text != "" || len(options) == 0 {
		options = append(options, slackapi.MsgOptionText(msg.Text, false))
	}
	return options
}

func messageToAttachment(msg notify.Message) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    msg.Title,
		Text:     msg.Body,
		Color:    msg.Color,
		Fallback: msg.Title,
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
