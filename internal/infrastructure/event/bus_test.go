package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingHandler captures handled events for assertions
type recordingHandler struct {
	mu     sync.Mutex
	types  []string
	events []shared.DomainEvent
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func (h *recordingHandler) handled() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func newStockReceivedEvent(t *testing.T) shared.DomainEvent {
	t.Helper()
	line, err := ledger.NewReceiptLine(uuid.New(), uuid.New(),
		decimal.NewFromInt(10), decimal.NewFromInt(3), time.Now())
	require.NoError(t, err)
	return ledger.NewStockReceivedEvent(line)
}

func TestInMemoryEventBus_PublishToSubscribedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := &recordingHandler{types: []string{ledger.EventTypeStockReceived}}
	bus.Subscribe(handler)

	err := bus.Publish(context.Background(), newStockReceivedEvent(t))
	require.NoError(t, err)

	assert.Equal(t, 1, handler.handled())
	assert.Equal(t, ledger.EventTypeStockReceived, handler.events[0].EventType())
}

func TestInMemoryEventBus_TypeFiltering(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	reversalHandler := &recordingHandler{types: []string{ledger.EventTypeAllocationReversed}}
	bus.Subscribe(reversalHandler)

	err := bus.Publish(context.Background(), newStockReceivedEvent(t))
	require.NoError(t, err)

	assert.Equal(t, 0, reversalHandler.handled())
}

func TestInMemoryEventBus_WildcardHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	// No event types means the handler receives everything
	wildcard := &recordingHandler{}
	bus.Subscribe(wildcard)

	err := bus.Publish(context.Background(), newStockReceivedEvent(t))
	require.NoError(t, err)

	assert.Equal(t, 1, wildcard.handled())
}

func TestInMemoryEventBus_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := &recordingHandler{
		types: []string{ledger.EventTypeStockReceived},
		err:   errors.New("downstream unavailable"),
	}
	healthy := &recordingHandler{types: []string{ledger.EventTypeStockReceived}}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newStockReceivedEvent(t))
	require.NoError(t, err)

	assert.Equal(t, 1, failing.handled())
	assert.Equal(t, 1, healthy.handled())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := &recordingHandler{types: []string{ledger.EventTypeStockReceived}}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	err := bus.Publish(context.Background(), newStockReceivedEvent(t))
	require.NoError(t, err)

	assert.Equal(t, 0, handler.handled())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Stop(context.Background()))
}

func TestStockActivityLogger(t *testing.T) {
	logger := NewStockActivityLogger(zap.NewNop())

	assert.Contains(t, logger.EventTypes(), ledger.EventTypeStockReceived)
	assert.Contains(t, logger.EventTypes(), ledger.EventTypeAllocationReversed)

	err := logger.Handle(context.Background(), newStockReceivedEvent(t))
	assert.NoError(t, err)
}

func TestHandlerRegistry(t *testing.T) {
	registry := NewHandlerRegistry()

	typed := &recordingHandler{types: []string{ledger.EventTypeStockAllocated}}
	wildcard := &recordingHandler{}

	registry.Register(typed, typed.types...)
	registry.Register(wildcard)

	t.Run("typed plus wildcard for matching type", func(t *testing.T) {
		handlers := registry.GetHandlers(ledger.EventTypeStockAllocated)
		assert.Len(t, handlers, 2)
	})

	t.Run("only wildcard for other types", func(t *testing.T) {
		handlers := registry.GetHandlers(ledger.EventTypeStockReceived)
		assert.Len(t, handlers, 1)
	})

	t.Run("all handlers deduplicated", func(t *testing.T) {
		assert.Len(t, registry.GetAllHandlers(), 2)
	})

	t.Run("unregister removes everywhere", func(t *testing.T) {
		registry.Unregister(typed)
		assert.Len(t, registry.GetHandlers(ledger.EventTypeStockAllocated), 1)
	})
}
