package delivery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "sleepbot/internal/transport"
	logx "sleepbot/pkg/logx"
)

// ChatConfig controls pacing of outgoing sends.
type ChatConfig struct {
	RatePerSec  int
	SendTimeout time.Duration
}

// Chat delivers through a chat transport adapter. Direct messages open with a
// mention of the recipient; broadcasts open with mentions of every id given.
type Chat struct {
	adapter kit.Adapter
	log     logx.Logger
	limiter *rate.Limiter
	timeout time.Duration

	mu    sync.Mutex
	users map[int64]kit.User
}

// NewChat paces sends at cfg.RatePerSec (default 20/s), each bounded by
// cfg.SendTimeout (default 10s).
func NewChat(adapter kit.Adapter, cfg ChatConfig, log logx.Logger) *Chat {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Chat{
		adapter: adapter,
		log:     log,
		// Token bucket: burst = rate per sec, so one reminder round goes out at once.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		timeout: cfg.SendTimeout,
		users:   map[int64]kit.User{},
	}
}

// DeliverDirect messages recipientID privately, opening with a mention.
func (c *Chat) DeliverDirect(ctx context.Context, recipientID, text string) error {
	id, err := parseChatID(recipientID)
	if err != nil {
		return fmt.Errorf("%w %q", ErrInvalidRecipient, recipientID)
	}
	u, err := c.lookup(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", recipientID, err)
	}
	if err := c.send(ctx, kit.ChatTarget{ChatID: id}, mention(u)+" "+text); err != nil {
		return fmt.Errorf("send to %s: %w", recipientID, err)
	}
	return nil
}

func (c *Chat) DeliverBroadcast(ctx context.Context, recipientIDs []string, dest Destination, text string) error {
	if dest.IsZero() {
		return ErrNoDestination
	}
	chatID, err := parseChatID(dest.GroupID)
	if err != nil {
		return fmt.Errorf("%w: group_id %q", ErrNoDestination, dest.GroupID)
	}
	thread := 0
	if s := strings.TrimSpace(dest.ChannelID); s != "" {
		thread, err = strconv.Atoi(s)
		if err != nil || thread < 0 {
			return fmt.Errorf("%w: channel_id %q", ErrNoDestination, dest.ChannelID)
		}
	}

	mentions := make([]string, 0, len(recipientIDs))
	for _, rid := range recipientIDs {
		id, err := parseChatID(rid)
		if err != nil {
			continue
		}
		u, err := c.lookup(ctx, id)
		if err != nil {
			// Still mention by id; the link renders without a name.
			u = kit.User{ID: id}
		}
		mentions = append(mentions, mention(u))
	}

	body := text
	if len(mentions) > 0 {
		body = strings.Join(mentions, " ") + " " + text
	}
	if err := c.send(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: thread}, body); err != nil {
		return fmt.Errorf("broadcast to %s: %w", dest.GroupID, err)
	}
	return nil
}

func (c *Chat) send(ctx context.Context, to kit.ChatTarget, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.adapter.SendText(sctx, to, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return mapErr(err)
}

func (c *Chat) lookup(ctx context.Context, id int64) (kit.User, error) {
	c.mu.Lock()
	u, ok := c.users[id]
	c.mu.Unlock()
	if ok {
		return u, nil
	}

	lctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	u, err := c.adapter.LookupUser(lctx, id)
	if err != nil {
		return kit.User{}, mapErr(err)
	}
	c.mu.Lock()
	c.users[id] = u
	c.mu.Unlock()
	return u, nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kit.ErrForbidden), errors.Is(err, kit.ErrUnknownChat):
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	default:
		return err
	}
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("zero id")
	}
	return id, nil
}

func mention(u kit.User) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(u.DisplayName()))
}
