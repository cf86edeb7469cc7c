package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	defer unsubA()
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: TypeReminderDispatched})
	b.Publish(Event{Type: TypeReminderReset})

	require.Len(t, a, 1, "buffer of one keeps only the first event")
	require.Len(t, c, 2)
	e := <-c
	require.Equal(t, TypeReminderDispatched, e.Type)
	require.False(t, e.Time.IsZero())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	require.False(t, ok)
	b.Publish(Event{Type: TypeConfigReloaded})
}
