package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kit "sleepbot/internal/transport"
)

func TestWriterEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "hello", m["message"])
	require.Equal(t, "test", m["comp"])
	require.Equal(t, float64(3), m["n"])
	require.Equal(t, "boom", m["err"])
	require.Contains(t, m["caller"], "logging_test.go:")
}

func TestWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("dropped")
	require.Zero(t, buf.Len())
	require.False(t, log.Enabled(LevelInfo))
	require.True(t, log.Enabled(LevelError))
}

func TestZeroAndNop(t *testing.T) {
	var zero Logger
	require.True(t, zero.IsZero())
	require.False(t, Nop().IsZero())
	zero.Info("no panic")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"trace": LevelTrace, " INFO ": LevelInfo, "warning": LevelWarn, "Error": LevelError} {
		got, ok := ParseLevel(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	_, ok := ParseLevel("loud")
	require.False(t, ok)
}

func TestFormatChatLine(t *testing.T) {
	line := `{"level":"warn","time":"x","message":"send failed","recipient":"42","comp":"delivery"}`
	require.Equal(t, "[WARN] send failed\n- comp=delivery\n- recipient=42", formatChatLine([]byte(line)))
	require.Equal(t, "not json", formatChatLine([]byte(" not json \n")))
	require.Len(t, formatChatLine([]byte(strings.Repeat("x", 5000))), 3500)
}

type chatSink struct {
	mu   sync.Mutex
	msgs []string
	to   []kit.ChatTarget
}

func (c *chatSink) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (c *chatSink) Stop(ctx context.Context) error                         { return nil }
func (c *chatSink) LookupUser(ctx context.Context, id int64) (kit.User, error) {
	return kit.User{ID: id}, nil
}

func (c *chatSink) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	c.to = append(c.to, to)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (c *chatSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestServiceForwardsToChat(t *testing.T) {
	sink := &chatSink{}
	svc, log := New(Config{Level: "debug", Chat: ChatConfig{Enabled: true, MinLevel: "warn", RatePerSec: 10}}, sink)
	defer func() { _ = svc.Close() }()
	svc.SetChatTarget(-100, 7)

	log.Info("below min level")
	log.Warn("reminder failed", String("recipient", "42"))

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.True(t, strings.HasPrefix(sink.msgs[0], "[WARN] reminder failed"))
	require.Equal(t, kit.ChatTarget{ChatID: -100, ThreadID: 7}, sink.to[0])
}

func TestServiceApplyChangesLevel(t *testing.T) {
	svc, log := New(Config{Level: "error"}, nil)
	defer func() { _ = svc.Close() }()
	require.False(t, log.Enabled(LevelInfo))
	svc.Apply(Config{Level: "debug"})
	require.True(t, log.Enabled(LevelDebug))
}
