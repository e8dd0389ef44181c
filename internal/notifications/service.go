package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"unmark/internal/config"
)

const userAgent = "unmark/0.1"

// Service is the notification surface used by the task orchestrator.
type Service interface {
	NotifyVideoCompleted(ctx context.Context, taskID string, elapsed time.Duration) error
	NotifyVideoFailed(ctx context.Context, taskID, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyVideoCompleted(ctx context.Context, taskID string, elapsed time.Duration) error {
	elapsed = elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return n.send(ctx, payload{
		title:   "unmark - Video Ready",
		message: fmt.Sprintf("Video task %s finished in %s", strings.TrimSpace(taskID), elapsed),
		tags:    []string{"unmark", "video", "completed"},
	})
}

func (n *ntfyService) NotifyVideoFailed(ctx context.Context, taskID, reason string) error {
	var b strings.Builder
	b.WriteString("Video task ")
	b.WriteString(strings.TrimSpace(taskID))
	b.WriteString(" failed")
	if reason = strings.TrimSpace(reason); reason != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	}
	return n.send(ctx, payload{
		title:    "unmark - Video Failed",
		message:  b.String(),
		tags:     []string{"unmark", "video", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "unmark - Test",
		message:  "Notification system test",
		tags:     []string{"unmark", "test"},
		priority: "low",
	})
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

type noopService struct{}

func (noopService) NotifyVideoCompleted(context.Context, string, time.Duration) error { return nil }
func (noopService) NotifyVideoFailed(context.Context, string, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
