package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digistation/internal/config"
)

const userAgent = "digistation/0.1.0"

// SessionSummary describes a finished capture session.
type SessionSummary struct {
	SessionID  string
	Path       string
	Username   string
	Events     int
	Renamed    int
	Failed     int
	Collisions int
	Elapsed    time.Duration
}

// Service defines the notification surface used by the session lifecycle.
type Service interface {
	NotifySessionStarted(ctx context.Context, sessionID, path, username string) error
	NotifySessionCompleted(ctx context.Context, summary SessionSummary) error
	NotifyRenameCollision(ctx context.Context, catalogNumber, source string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		session:    cfg.Notifications.Session,
		collisions: cfg.Notifications.Collisions,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	session    bool
	collisions bool
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, sessionID, path, username string) error {
	if !n.session {
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = "unknown operator"
	}
	data := payload{
		title:   "digistation - Session Started",
		message: fmt.Sprintf("📷 %s started session %s\nFolder: %s", username, shortID(sessionID), strings.TrimSpace(path)),
		tags:    []string{"digistation", "session", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionCompleted(ctx context.Context, summary SessionSummary) error {
	if !n.session {
		return nil
	}
	elapsed := summary.Elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	title := "digistation - Session Complete"
	message := fmt.Sprintf("✅ Session %s: %d captures, %d files renamed in %s",
		shortID(summary.SessionID), summary.Events, summary.Renamed, elapsed)
	priority := ""
	if summary.Failed > 0 || summary.Collisions > 0 {
		title = "digistation - Session Complete (with errors)"
		message = fmt.Sprintf("%s\n%d failed, %d name collisions", message, summary.Failed, summary.Collisions)
		priority = "high"
	}
	data := payload{
		title:    title,
		message:  message,
		tags:     []string{"digistation", "session", "completed"},
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRenameCollision(ctx context.Context, catalogNumber, source string) error {
	if !n.collisions {
		return nil
	}
	data := payload{
		title:    "digistation - Rename Collision",
		message:  fmt.Sprintf("❌ %s could not be renamed to %s\nManual review required", strings.TrimSpace(source), strings.TrimSpace(catalogNumber)),
		tags:     []string{"digistation", "rename", "collision"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "digistation - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"digistation", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifySessionStarted(context.Context, string, string, string) error { return nil }
func (noopService) NotifySessionCompleted(context.Context, SessionSummary) error      { return nil }
func (noopService) NotifyRenameCollision(context.Context, string, string) error       { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
