package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/config"
	"github.com/spec-kit/courier-portal/internal/events"
	"github.com/spec-kit/courier-portal/internal/session"
)

// NotificationService queues user notifications per tab and logs session
// events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	size       int

	mu      sync.Mutex
	inboxes map[string]*Inbox
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.SessionConfig) *NotificationService {
	size := cfg.InboxSize
	if size <= 0 {
		size = 16
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		size:       size,
		inboxes:    make(map[string]*Inbox),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSessionRestored, n.handleSessionChange)
	n.dispatcher.Subscribe(events.EventSessionEstablished, n.handleSessionChange)
	n.dispatcher.Subscribe(events.EventSessionRefreshed, n.handleSessionChange)
	n.dispatcher.Subscribe(events.EventProfileUpdated, n.handleSessionChange)
	n.dispatcher.Subscribe(events.EventSessionCleared, n.handleSessionCleared)
	n.dispatcher.Subscribe(events.EventLoginFailed, n.handleLoginFailed)
	n.dispatcher.Subscribe(events.EventRefreshFailed, n.handleRefreshFailed)
	n.dispatcher.Subscribe(events.EventStorageMigrated, n.handleStorageMigrated)
}

// For returns the notifier feeding the inbox of tab sid.
func (n *NotificationService) For(sid string) session.Notifier {
	return session.NotifierFunc(func(ctx context.Context, note session.Notification) {
		n.inbox(sid).Push(note)
		n.logger.Debug("notification queued",
			zap.String("session_id", sid),
			zap.String("level", string(note.Level)),
			zap.String("message", note.Message))
	})
}

// Drain returns and removes the pending notifications of tab sid.
func (n *NotificationService) Drain(sid string) []session.Notification {
	n.mu.Lock()
	box, ok := n.inboxes[sid]
	n.mu.Unlock()
	if !ok {
		return nil
	}
	return box.Drain()
}

// Forget drops the inbox of tab sid.
func (n *NotificationService) Forget(sid string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.inboxes, sid)
}

func (n *NotificationService) inbox(sid string) *Inbox {
	n.mu.Lock()
	defer n.mu.Unlock()
	box, ok := n.inboxes[sid]
	if !ok {
		box = NewInbox(n.size)
		n.inboxes[sid] = box
	}
	return box
}

func (n *NotificationService) handleSessionChange(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("session_id", event.SessionID),
		zap.String("user_type", string(event.UserType)))
	return nil
}

func (n *NotificationService) handleSessionCleared(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("session_id", event.SessionID), zap.String("user_type", string(event.UserType))}
	if p, ok := event.Payload.(events.ClearedPayload); ok {
		fields = append(fields, zap.String("reason", p.Reason), zap.Bool("silent", p.Silent))
	}
	n.logger.Info("SessionCleared", fields...)
	return nil
}

func (n *NotificationService) handleLoginFailed(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("session_id", event.SessionID)}
	if p, ok := event.Payload.(events.LoginFailedPayload); ok {
		fields = append(fields, zap.String("attempted", string(p.Attempted)), zap.String("message", p.Message))
	}
	n.logger.Info("LoginFailed", fields...)
	return nil
}

func (n *NotificationService) handleRefreshFailed(ctx context.Context, event events.Event) error {
	n.logger.Warn("RefreshFailed", zap.String("session_id", event.SessionID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleStorageMigrated(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("session_id", event.SessionID)}
	if p, ok := event.Payload.(events.MigratedPayload); ok {
		fields = append(fields, zap.Strings("keys", p.Keys))
	}
	n.logger.Info("StorageMigrated", fields...)
	return nil
}
