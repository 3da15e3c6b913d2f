package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/session"
)

func TestStartSessionJanitor(t *testing.T) {
	r := session.NewRegistry(session.RegistryOptions{IdleTTL: time.Minute, EvictSchedule: "@every 1h"})

	stop, err := StartSessionJanitor(r, zap.NewNop())
	require.NoError(t, err)
	assert.NotPanics(t, stop)
}

func TestStartSessionJanitor_BadSchedule(t *testing.T) {
	r := session.NewRegistry(session.RegistryOptions{EvictSchedule: "sometimes"})

	_, err := StartSessionJanitor(r, zap.NewNop())
	require.Error(t, err)
}

func TestStartNotificationWorker_Nil(t *testing.T) {
	assert.NotPanics(t, func() { StartNotificationWorker(nil) })
}
