package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsClient replaces the HTTP client used for the webhook.
func WithTeamsClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     http.NewClient(http.WithTimeout(DefaultTimeout)),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage wraps an Adaptive Card the way incoming webhooks expect it.
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type   string      `json:"type"`
	Size   string      `json:"size,omitempty"`
	Weight string      `json:"weight,omitempty"`
	Text   string      `json:"text,omitempty"`
	Color  string      `json:"color,omitempty"`
	Wrap   bool        `json:"wrap,omitempty"`
	Facts  []teamsFact `json:"facts,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func (t *TeamsNotifier) Notify(ctx context.Context, summary *Summary) error {
	color := "Good"
	if !summary.Success() {
		color = "Attention"
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: headline(summary), Color: color},
		{Type: "FactSet", Facts: []teamsFact{
			{Title: "Suite", Value: summary.File},
			{Title: "Passed", Value: fmt.Sprintf("%d/%d", summary.Passed, summary.Total)},
			{Title: "Not run", Value: fmt.Sprint(summary.NotRun)},
			{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
			{Title: "Run", Value: summary.RunID},
		}},
	}
	if summary.Failure != "" {
		body = append(body, teamsBlock{Type: "TextBlock", Text: summary.Failure, Color: "Attention", Wrap: true})
	}
	if summary.Error != "" {
		body = append(body, teamsBlock{Type: "TextBlock", Text: summary.Error, Color: "Attention", Wrap: true})
	}

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.4",
				Body:    body,
			},
		}},
	}

	return postJSON(ctx, t.client, t.webhookURL, msg)
}
