package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/service"
	"github.com/spec-kit/courier-portal/internal/session"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartSessionJanitor runs idle tab eviction on the registry's schedule.
// The returned func stops it.
func StartSessionJanitor(registry *session.Registry, logger *zap.Logger) (func(), error) {
	if registry == nil {
		return func() {}, nil
	}
	if err := registry.Start(); err != nil {
		return nil, err
	}
	logger.Info("session janitor started")
	return func() {
		registry.Stop()
		logger.Info("session janitor stopped")
	}, nil
}
