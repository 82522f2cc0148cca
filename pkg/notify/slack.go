package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxListedFiles caps how many file names go into one Slack message.
const maxListedFiles = 12

var statusColors = map[Status]string{
	StatusCompleted: "#36a64f",
	StatusPartial:   "#ff9900",
	StatusFailed:    "#cc0000",
}

// SlackNotifier posts summaries to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier. An empty channel
// posts to the webhook's default channel.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client:     defaultHTTPClient(),
	}
}

// WithHTTPClient replaces the client used for posting.
func (s *SlackNotifier) WithHTTPClient(c *http.Client) *SlackNotifier {
	s.client = c
	return s
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, summary Summary) error {
	body, err := json.Marshal(buildSlackMessage(s.channel, summary, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := postJSON(ctx, s.client, s.webhookURL, body, nil); err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	return nil
}

func buildSlackMessage(channel string, summary Summary, now time.Time) slackPayload {
	fields := []slackField{
		{Title: "Months", Value: strings.Join(summary.Months, ", "), Short: true},
		{Title: "Datatypes", Value: strings.Join(summary.Kinds, ", "), Short: true},
		{Title: "Files", Value: strconv.Itoa(len(summary.Files)), Short: true},
		{Title: "Samples", Value: strconv.FormatInt(summary.Samples, 10), Short: true},
	}
	if len(summary.Failures) > 0 {
		fields = append(fields, slackField{Title: "Failures", Value: strings.Join(summary.Failures, "\n")})
	}

	text := summary.Message
	if list := fileList(summary.Files); list != "" {
		text += "\n" + list
	}

	title := fmt.Sprintf("Garmin export %s", summary.Status)
	return slackPayload{
		Channel: channel,
		Text:    title,
		Attachments: []slackAttachment{{
			Color:    statusColors[summary.Status],
			Title:    title,
			Text:     strings.TrimSpace(text),
			Fields:   fields,
			Footer:   "garmin-downloader",
			Ts:       now.Unix(),
			MrkdwnIn: []string{"text"},
		}},
	}
}

// fileList renders base names as a code-formatted list.
func fileList(files []string) string {
	if len(files) == 0 {
		return ""
	}
	shown := files
	if len(shown) > maxListedFiles {
		shown = shown[:maxListedFiles]
	}
	names := make([]string, len(shown))
	for i, f := range shown {
		names[i] = "`" + filepath.Base(f) + "`"
	}
	out := strings.Join(names, " ")
	if extra := len(files) - len(shown); extra > 0 {
		out += fmt.Sprintf(" and %d more", extra)
	}
	return out
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Text     string       `json:"text,omitempty"`
	Fields   []slackField `json:"fields"`
	Footer   string       `json:"footer"`
	Ts       int64        `json:"ts"`
	MrkdwnIn []string     `json:"mrkdwn_in,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
