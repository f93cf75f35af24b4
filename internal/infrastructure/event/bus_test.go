package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInMemoryEventBus_DeliversByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	queue := newRecordingHandler(transfer.EventTypeEntryApproved, transfer.EventTypeEntryRejected)
	breaker := newRecordingHandler(integration.EventTypeBreakerTransitioned)
	bus.Subscribe(queue)
	bus.Subscribe(breaker)

	tenant := uuid.New()
	err := bus.Publish(context.Background(),
		queueEvent(transfer.EventTypeEntryRejected, tenant),
		breakerEvent(tenant),
		queueEvent(transfer.EventTypeEntryFailed, tenant),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{transfer.EventTypeEntryRejected}, queue.seen())
	assert.Equal(t, []string{integration.EventTypeBreakerTransitioned}, breaker.seen())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := newRecordingHandler(transfer.EventTypeEntryApproved)
	bus.Subscribe(h, transfer.EventTypeEntryFailed)

	require.NoError(t, bus.Publish(context.Background(),
		queueEvent(transfer.EventTypeEntryApproved, uuid.New()),
		queueEvent(transfer.EventTypeEntryFailed, uuid.New()),
	))

	assert.Equal(t, []string{transfer.EventTypeEntryFailed}, h.seen())
}

func TestInMemoryEventBus_FailingHandlersDoNotStopDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := newRecordingHandler()
	failing.err = errors.New("metrics backend down")
	panicking := newRecordingHandler()
	panicking.panics = true
	healthy := newRecordingHandler()
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), breakerEvent(uuid.New()), nil)

	require.NoError(t, err)
	assert.Len(t, healthy.seen(), 1)
	assert.Equal(t, 2, logs.FilterMessage("event handler failed").Len())
}

func TestInMemoryEventBus_UsesContextLogger(t *testing.T) {
	busCore, busLogs := observer.New(zapcore.WarnLevel)
	reqCore, reqLogs := observer.New(zapcore.WarnLevel)
	bus := NewInMemoryEventBus(zap.New(busCore))

	h := newRecordingHandler()
	h.err = errors.New("nope")
	bus.Subscribe(h)

	ctx := logger.WithContext(context.Background(), zap.New(reqCore))
	require.NoError(t, bus.Publish(ctx, breakerEvent(uuid.New())))

	assert.Equal(t, 0, busLogs.Len())
	assert.Equal(t, 1, reqLogs.Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := newRecordingHandler()
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), breakerEvent(uuid.New())))
	assert.Empty(t, h.seen())
}

func TestInMemoryEventBus_StopRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(stopCtx))

	err := bus.Publish(ctx, breakerEvent(uuid.New()))
	assert.ErrorIs(t, err, ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, breakerEvent(uuid.New())))
}

var _ shared.EventHandler = (*recordingHandler)(nil)
