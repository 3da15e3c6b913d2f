package session

import "context"

// Level classifies a user facing notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a transient message for the user of a tab.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier surfaces notifications to the user of one tab.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}
