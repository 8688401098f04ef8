package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackClient replaces the HTTP client used for the webhook.
func WithSlackClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "hitchain",
		iconEmoji:  ":link:",
		client:     http.NewClient(http.WithTimeout(DefaultTimeout)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s *SlackNotifier) Notify(ctx context.Context, summary *Summary) error {
	color := "good"
	emoji := ":white_check_mark:"
	if !summary.Success() {
		color = "danger"
		emoji = ":x:"
	} else if summary.IsRecovery {
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Suite", Value: summary.File, Short: true},
		{Title: "Passed", Value: fmt.Sprintf("%d/%d", summary.Passed, summary.Total), Short: true},
		{Title: "Not run", Value: fmt.Sprint(summary.NotRun), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}

	var text []string
	if summary.Failure != "" {
		text = append(text, fmt.Sprintf("*Failure:* `%s`", summary.Failure))
	}
	if summary.Error != "" {
		text = append(text, fmt.Sprintf("*Error:* `%s`", summary.Error))
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("%s %s", emoji, headline(summary)),
			Text:   strings.Join(text, "\n"),
			Fields: fields,
			Footer: "hitchain " + summary.RunID,
			TS:     time.Now().Unix(),
		}},
	}

	return postJSON(ctx, s.client, s.webhookURL, msg)
}
