package events

import (
	"testing"

	"github.com/dujiao-next/storefront/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesCurrentSubscribersOnly(t *testing.T) {
	bus := NewBus[string]("test", logger.Nop())

	var early []string
	unsubscribe := bus.Subscribe(func(v string) { early = append(early, v) })
	bus.Publish("first")

	var late []string
	bus.Subscribe(func(v string) { late = append(late, v) })

	unsubscribe()
	bus.Publish("second")

	assert.Equal(t, []string{"first"}, early)
	assert.Equal(t, []string{"second"}, late, "late subscriber must not see earlier events")
	assert.Equal(t, 1, bus.Len())
}

func TestPanickingSubscriberDoesNotBreakOthers(t *testing.T) {
	bus := NewBus[int]("test", logger.Nop())
	bus.Subscribe(func(int) { panic("boom") })
	got := 0
	bus.Subscribe(func(v int) { got = v })

	require.NotPanics(t, func() { bus.Publish(7) })
	assert.Equal(t, 7, got)
}
