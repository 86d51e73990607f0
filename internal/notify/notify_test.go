package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shanehull/classmonitor/internal/types"

	"github.com/stretchr/testify/require"
	gomail "gopkg.in/mail.v2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var earlyNotification = types.Notification{
	Message:  "New classes available before the deadline:\nAugust Weekend Class\nSunday Class",
	Title:    "Eventbrite Class Alert",
	Priority: 1,
	Rule:     "early_availability",
}

func TestPushoverSender(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":1,"request":"req-123"}`))
	}))
	defer server.Close()

	s := NewPushoverSender(PushoverConfig{UserKey: "user", APIToken: "token", URL: server.URL}, quietLogger())

	require.NoError(t, s.Notify(context.Background(), earlyNotification))
	require.Equal(t, "token", form.Get("token"))
	require.Equal(t, "user", form.Get("user"))
	require.Equal(t, "Eventbrite Class Alert", form.Get("title"))
	require.Equal(t, earlyNotification.Message, form.Get("message"))
	require.Equal(t, "1", form.Get("priority"))
}

func TestPushoverSender_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "invalid token", status: http.StatusBadRequest, body: `{"status":0,"errors":["application token is invalid"]}`, want: "application token is invalid"},
		{name: "status zero on 200", status: http.StatusOK, body: `{"status":0,"errors":["user key is invalid"]}`, want: "user key is invalid"},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, want: "http 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := NewPushoverSender(PushoverConfig{UserKey: "u", APIToken: "t", URL: server.URL}, quietLogger())
			err := s.Notify(context.Background(), earlyNotification)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPushoverConfig_Enabled(t *testing.T) {
	require.False(t, PushoverConfig{}.Enabled())
	require.False(t, PushoverConfig{UserKey: "u"}.Enabled())
	require.True(t, PushoverConfig{UserKey: "u", APIToken: "t"}.Enabled())
}

type recordingNotifier struct {
	name string
	err  error
	got  []types.Notification
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(_ context.Context, n types.Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func TestMulti(t *testing.T) {
	failing := &recordingNotifier{name: "pushover", err: errors.New("network down")}
	ok := &recordingNotifier{name: "email"}
	m := NewMulti(failing, ok)

	err := m.Notify(context.Background(), earlyNotification)

	require.Error(t, err)
	require.Contains(t, err.Error(), "pushover: network down")
	require.Len(t, failing.got, 1)
	require.Len(t, ok.got, 1, "a failing channel must not block the others")
	require.Equal(t, 2, m.Len())
}

func TestMulti_Empty(t *testing.T) {
	require.NoError(t, NewMulti().Notify(context.Background(), earlyNotification))
}

func TestDryRunNotifier(t *testing.T) {
	var buf strings.Builder
	n := NewDryRunNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), earlyNotification))
	require.Contains(t, buf.String(), "August Weekend Class")
}

func TestNewNotificationData(t *testing.T) {
	sentAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	data := NewNotificationData(earlyNotification, "https://example.com", sentAt)
	require.Equal(t, "New classes available before the deadline:", data.Headline)
	require.Equal(t, []string{"August Weekend Class", "Sunday Class"}, data.Classes)

	single := NewNotificationData(types.Notification{Message: "The target class is now available!"}, "", sentAt)
	require.Equal(t, "The target class is now available!", single.Headline)
	require.Empty(t, single.Classes)
}

func TestHTMLEmailRenderer(t *testing.T) {
	r := NewHTMLEmailRenderer()
	data := NewNotificationData(earlyNotification, "https://example.com/o/1", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	data.Classes = append(data.Classes, "<script>alert(1)</script>")

	msg, err := r.Render(data)
	require.NoError(t, err)

	require.Equal(t, "Eventbrite Class Alert: New classes available before the deadline:", msg.Subject)
	require.Contains(t, msg.Text, "• August Weekend Class\n")
	require.Contains(t, msg.Text, "URL: https://example.com/o/1")
	require.Contains(t, msg.HTML, "<li>Sunday Class</li>")
	require.Contains(t, msg.HTML, `href="https://example.com/o/1"`)
	require.NotContains(t, msg.HTML, "<script>alert(1)</script>")
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestEmailSender(t *testing.T) {
	cfg := EmailConfig{SMTPServer: "smtp.example.com", SMTPPort: 587, SMTPUser: "me@example.com", SMTPPass: "pw", ToEmail: "you@example.com"}
	require.True(t, cfg.Enabled())

	s := NewEmailSender(cfg, quietLogger())
	d := &fakeDialer{}
	s.dialer = d

	require.NoError(t, s.Notify(context.Background(), earlyNotification))
	require.Len(t, d.sent, 1)
	require.Equal(t, []string{"me@example.com"}, d.sent[0].GetHeader("From"))
	require.Equal(t, []string{"you@example.com"}, d.sent[0].GetHeader("To"))

	d.err = errors.New("auth failed")
	err := s.Notify(context.Background(), earlyNotification)
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth failed")
}

func TestEmailConfig_Enabled(t *testing.T) {
	require.False(t, EmailConfig{}.Enabled())
	require.False(t, EmailConfig{SMTPServer: "s", SMTPUser: "u", SMTPPass: "p"}.Enabled())
}
