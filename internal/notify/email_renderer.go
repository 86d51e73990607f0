package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shanehull/classmonitor/internal/types"
)

// NotificationData is the view a rendered email is built from.
type NotificationData struct {
	Notification types.Notification
	Headline     string
	Classes      []string
	SourceURL    string
	SentAt       time.Time
}

// RenderedMessage is a notification ready for an email transport.
type RenderedMessage struct {
	Subject string
	Text    string
	HTML    string
}

// NewNotificationData splits a message into its headline and the class list
// that follows it, one title per line.
func NewNotificationData(n types.Notification, sourceURL string, sentAt time.Time) NotificationData {
	lines := strings.Split(strings.TrimSpace(n.Message), "\n")

	var classes []string
	for _, l := range lines[1:] {
		if l = strings.TrimSpace(l); l != "" {
			classes = append(classes, l)
		}
	}

	return NotificationData{
		Notification: n,
		Headline:     strings.TrimSpace(lines[0]),
		Classes:      classes,
		SourceURL:    sourceURL,
		SentAt:       sentAt,
	}
}

// HTMLEmailRenderer renders notifications as HTML emails with a plain text fallback.
type HTMLEmailRenderer struct {
	tmpl *template.Template
}

func NewHTMLEmailRenderer() *HTMLEmailRenderer {
	t := template.Must(template.New("email").Parse(emailHTMLTemplate))
	return &HTMLEmailRenderer{tmpl: t}
}

func (r *HTMLEmailRenderer) Render(data NotificationData) (*RenderedMessage, error) {
	subject := fmt.Sprintf("%s: %s", data.Notification.Title, data.Headline)

	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &RenderedMessage{
		Subject: subject,
		Text:    renderPlainText(data),
		HTML:    htmlBuf.String(),
	}, nil
}

func renderPlainText(data NotificationData) string {
	var sb strings.Builder

	sb.WriteString(data.Headline + "\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	if len(data.Classes) > 0 {
		sb.WriteString("CLASSES\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for _, c := range data.Classes {
			sb.WriteString(fmt.Sprintf("• %s\n", c))
		}
		sb.WriteString("\n")
	}

	if data.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("URL: %s\n", data.SourceURL))
	}

	return sb.String()
}
