package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/boshu2/autoforge/internal/config"
)

var (
	phaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

// ConsoleNotifier renders lifecycle events as styled single lines,
// colorized via lipgloss when the terminal wants colors.
type ConsoleNotifier struct {
	Colors bool
}

func NewConsoleNotifier(colors bool) *ConsoleNotifier {
	return &ConsoleNotifier{Colors: colors}
}

func (n *ConsoleNotifier) Notify(event string, data map[string]any) {
	line := fmt.Sprintf("[%s] %s %v", time.Now().Format("15:04:05"), event, data)
	if !n.Colors {
		fmt.Println(line)
		return
	}
	switch event {
	case EventPhaseFailed, EventWorkflowFailed:
		fmt.Println(failStyle.Render(line))
	case EventBudgetWarning, EventPhaseRetry, EventApprovalNeeded:
		fmt.Println(warnStyle.Render(line))
	case EventWorkflowComplete, EventPhaseComplete:
		fmt.Println(okStyle.Render(line))
	case EventPhaseStarted, EventWorkflowStarted:
		fmt.Println(phaseStyle.Render(line))
	default:
		fmt.Println(line)
	}
}

// WebhookNotifier POSTs each event as JSON to a configured URL.
type WebhookNotifier struct {
	URL    string
	Events map[string]bool // nil means "all events"
	Client *http.Client
}

func (n *WebhookNotifier) Notify(event string, data map[string]any) {
	if n.Events != nil && !n.Events[event] {
		return
	}
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	body, err := json.Marshal(map[string]any{"event": event, "data": data, "time": time.Now().Format(time.RFC3339)})
	if err != nil {
		return
	}
	resp, err := client.Post(n.URL, "application/json", bytes.NewReader(body))
	if err == nil {
		_ = resp.Body.Close()
	}
}

// SlackNotifier posts to a Slack incoming webhook URL.
type SlackNotifier struct {
	WebhookNotifier
}

func (n *SlackNotifier) Notify(event string, data map[string]any) {
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if n.Events != nil && !n.Events[event] {
		return
	}
	body, err := json.Marshal(map[string]string{"text": fmt.Sprintf("%s: %v", event, data)})
	if err != nil {
		return
	}
	resp, err := client.Post(n.URL, "application/json", bytes.NewReader(body))
	if err == nil {
		_ = resp.Body.Close()
	}
}

// FanOutNotifier dispatches to every configured channel. Each channel's
// Notify is called inside a recover-guarded wrapper so a notification
// failure never fails the workflow.
type FanOutNotifier struct {
	Channels []Notifier
}

// NewFanOutNotifier builds the channel set described by cfg.
func NewFanOutNotifier(cfg config.NotificationsConfig) *FanOutNotifier {
	f := &FanOutNotifier{}
	if cfg.Console.Enabled {
		f.Channels = append(f.Channels, NewConsoleNotifier(cfg.Console.Colors))
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		f.Channels = append(f.Channels, &WebhookNotifier{URL: cfg.Webhook.URL, Events: toSet(cfg.Webhook.Events)})
	}
	if cfg.Slack.Enabled && cfg.Slack.URL != "" {
		f.Channels = append(f.Channels, &SlackNotifier{WebhookNotifier{URL: cfg.Slack.URL, Events: toSet(cfg.Slack.Events)}})
	}
	return f
}

func toSet(events []string) map[string]bool {
	if len(events) == 0 {
		return nil
	}
	set := make(map[string]bool, len(events))
	for _, e := range events {
		set[e] = true
	}
	return set
}

func (f *FanOutNotifier) Notify(event string, data map[string]any) {
	for _, ch := range f.Channels {
		notifySafely(ch, event, data)
	}
}

func notifySafely(n Notifier, event string, data map[string]any) {
	defer func() { _ = recover() }()
	n.Notify(event, data)
}
