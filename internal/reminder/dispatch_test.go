package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sleepbot/internal/delivery"
	"sleepbot/internal/escalation"
	"sleepbot/internal/eventbus"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

var dest = delivery.Destination{GroupID: "-100", ChannelID: "5"}

func TestDispatchSkipsFailedRecipients(t *testing.T) {
	rec := &recordingDeliverer{failDirect: map[string]bool{"2": true}}
	st := &memStore{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	d := NewDispatcher(rec, []string{"1", "2", "3"}, dest, logx.Nop(), bus, st)
	rep := d.Dispatch(context.Background(), Effect{Level: escalation.MaxUrgency, At: time.Now()}, Actor{})

	require.NotEmpty(t, rep.ID)
	require.Equal(t, []string{"1", "3"}, rep.Delivered)
	require.Len(t, rep.Failed, 1)
	require.Equal(t, "2", rep.Failed[0].RecipientID)
	require.ErrorIs(t, rep.Failed[0].Err, errBlocked)

	// broadcast names only those who got the DM
	require.True(t, rep.BroadcastAttempted)
	require.NoError(t, rep.BroadcastErr)
	require.Len(t, rec.broadcasts, 1)
	require.Equal(t, []string{"1", "3"}, rec.broadcasts[0].ids)
	require.Equal(t, dest, rec.broadcasts[0].dest)
	require.Equal(t, escalation.Message(escalation.MaxUrgency), rec.broadcasts[0].text)

	select {
	case ev := <-events:
		require.Equal(t, eventbus.TypeReminderDispatched, ev.Type)
		de := ev.Data.(DispatchEvent)
		require.Equal(t, 2, de.OK)
		require.Equal(t, 1, de.Fail)
		require.Contains(t, de.Error, "blocked")
	default:
		t.Fatal("no dispatch event")
	}

	require.Len(t, st.entries, 1)
	require.Equal(t, storage.ActionReminder, st.entries[0].Action)
	require.Equal(t, 4, st.entries[0].Level)
}

func TestDispatchNoBroadcastWhenNobodyReached(t *testing.T) {
	rec := &recordingDeliverer{failDirect: map[string]bool{"1": true}}
	d := NewDispatcher(rec, []string{"1"}, dest, logx.Nop(), nil, nil)

	rep := d.Dispatch(context.Background(), Effect{Level: escalation.AtDeadline}, Actor{})
	require.Empty(t, rep.Delivered)
	require.False(t, rep.BroadcastAttempted)
	require.Empty(t, rec.broadcasts)
}

func TestDispatchWithoutDestination(t *testing.T) {
	rec := &recordingDeliverer{}
	d := NewDispatcher(rec, []string{"1"}, delivery.Destination{}, logx.Nop(), nil, nil)

	rep := d.Dispatch(context.Background(), Effect{Level: escalation.PreWarning}, Actor{})
	require.Equal(t, []string{"1"}, rep.Delivered)
	require.False(t, rep.BroadcastAttempted)
	require.Contains(t, rec.texts[0], "15 minutes")
}

func TestDispatchBroadcastFailureIsRecovered(t *testing.T) {
	rec := &recordingDeliverer{failBroadcast: true}
	d := NewDispatcher(rec, []string{"1", "2"}, dest, logx.Nop(), nil, nil)

	rep := d.Dispatch(context.Background(), Effect{Level: escalation.Escalating2m}, Actor{})
	require.Equal(t, []string{"1", "2"}, rep.Delivered)
	require.True(t, rep.BroadcastAttempted)
	require.ErrorIs(t, rep.BroadcastErr, delivery.ErrNoDestination)
}

func TestDispatchNoRecipients(t *testing.T) {
	rec := &recordingDeliverer{}
	st := &memStore{}
	d := NewDispatcher(rec, nil, dest, logx.Nop(), nil, st)

	rep := d.Dispatch(context.Background(), Effect{Level: escalation.MaxUrgency}, Actor{})
	require.Empty(t, rep.Delivered)
	require.Empty(t, rep.Failed)
	require.Zero(t, rec.directCount())
	require.Empty(t, rec.broadcasts)
	require.Len(t, st.entries, 1)
}

func TestDispatchForcedIsAuditedAsTest(t *testing.T) {
	st := &memStore{}
	d := NewDispatcher(&recordingDeliverer{}, []string{"1"}, delivery.Destination{}, logx.Nop(), nil, st)

	d.Dispatch(context.Background(), Effect{Level: escalation.Escalating5m, Forced: true}, Actor{ID: 42, Username: "owner"})
	require.Len(t, st.entries, 1)
	e := st.entries[0]
	require.Equal(t, storage.ActionTest, e.Action)
	require.Equal(t, int64(42), e.ActorID)
	require.Equal(t, "owner", e.ActorUsername)
}

func TestActorIsScheduler(t *testing.T) {
	require.True(t, Actor{}.IsScheduler())
	require.False(t, Actor{ID: 42}.IsScheduler())
	require.False(t, Actor{Username: "owner"}.IsScheduler())
}
