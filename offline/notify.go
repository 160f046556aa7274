package offline

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// NotificationAction is a button shown on a notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Notification is the payload handed to a Notifier.
type Notification struct {
	Body    string               `json:"body"`
	Icon    string               `json:"icon"`
	Badge   string               `json:"badge"`
	Vibrate []int                `json:"vibrate,omitempty"`
	Tag     string               `json:"tag"`
	Actions []NotificationAction `json:"actions,omitempty"`
}

// Notifier displays notifications to the user.
type Notifier interface {
	Show(ctx context.Context, title string, n Notification) error
}

// LogNotifier writes notifications to a logger. It is the default when no
// delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier that logs at info level.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Show(_ context.Context, title string, note Notification) error {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("body", note.Body),
		zap.String("tag", note.Tag),
	)
	return nil
}

// ShownNotification is one notification captured by a RecordingNotifier.
type ShownNotification struct {
	Title        string
	Notification Notification
}

// RecordingNotifier keeps every notification it is asked to show.
type RecordingNotifier struct {
	mu    sync.Mutex
	shown []ShownNotification
}

func (n *RecordingNotifier) Show(_ context.Context, title string, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, ShownNotification{Title: title, Notification: note})
	return nil
}

// Shown returns a copy of the captured notifications.
func (n *RecordingNotifier) Shown() []ShownNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ShownNotification(nil), n.shown...)
}
