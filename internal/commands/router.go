package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kit "sleepbot/internal/transport"
	logx "sleepbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

const ownerOnlyReply = "⛔ owner only"

type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	ID           string
	Chat         kit.ChatTarget
	MessageID    int
	FromID       int64
	FromUsername string
	Command      string
	Args         []string
	Logger       logx.Logger

	adapter kit.Adapter
}

// Reply sends HTML text back to the chat the command came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	if r.adapter == nil {
		return errors.New("no adapter")
	}
	_, err := r.adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

type Config struct {
	// BotName is the bot's @username; "/cmd@other" is ignored when set.
	BotName string
	Owners  []int64
	Timeout time.Duration
}

// Router maps chat messages to registered commands.
type Router struct {
	adapter kit.Adapter
	log     logx.Logger
	botName string
	timeout time.Duration
	owners  map[int64]bool

	mu    sync.RWMutex
	index map[string]*Command // name and aliases
	cmds  []*Command
}

// NewRouter replies through adapter. Timeout defaults to 30s.
func NewRouter(cfg Config, adapter kit.Adapter, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	owners := make(map[int64]bool, len(cfg.Owners))
	for _, id := range cfg.Owners {
		owners[id] = true
	}
	return &Router{
		adapter: adapter,
		log:     log,
		botName: strings.TrimPrefix(strings.TrimSpace(cfg.BotName), "@"),
		timeout: cfg.Timeout,
		owners:  owners,
		index:   map[string]*Command{},
	}
}

// Register adds commands. Names and aliases are case-insensitive and unique.
func (r *Router) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range cmds {
		c := cmds[i]
		if c.Handle == nil || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("command %q: name and handler are required", c.Name)
		}
		keys := append([]string{c.Name}, c.Aliases...)
		for _, k := range keys {
			k = strings.ToLower(strings.TrimSpace(k))
			if _, dup := r.index[k]; dup {
				return fmt.Errorf("command %q: %q already registered", c.Name, k)
			}
		}
		cp := &c
		for _, k := range keys {
			r.index[strings.ToLower(strings.TrimSpace(k))] = cp
		}
		r.cmds = append(r.cmds, cp)
	}
	return nil
}

// Commands returns registered commands sorted by name.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	out := make([]Command, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, *c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Router) IsOwner(id int64) bool { return r.owners[id] }

func (r *Router) lookup(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[name]
}

// Handle runs the command carried by up, if any. Unknown commands are ignored.
func (r *Router) Handle(ctx context.Context, up kit.Update) error {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return nil
	}
	m := up.Message
	name, args, ok := parseCommand(m.Text, r.botName)
	if !ok {
		return nil
	}
	cmd := r.lookup(name)
	if cmd == nil {
		return nil
	}

	req := &Request{
		ID:           uuid.NewString(),
		Chat:         kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID},
		MessageID:    m.ID,
		FromID:       m.FromID,
		FromUsername: m.FromUsername,
		Command:      cmd.Name,
		Args:         args,
		adapter:      r.adapter,
	}
	req.Logger = r.log.With(logx.String("req_id", req.ID))

	if cmd.Access == AccessOwnerOnly && !r.IsOwner(m.FromID) {
		req.Logger.Info("owner-only command denied", logx.String("cmd", cmd.Name), logx.Int64("from_id", m.FromID))
		return req.Reply(ctx, ownerOnlyReply)
	}

	timeout := r.timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	h := Chain(cmd.Handle, MWPanicRecover(), MWRequestLog(), MWTimeout(timeout))
	return h(ctx, req)
}

// Run handles updates until ctx is done or updates is closed.
// Handler errors are logged, never returned.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.Handle(ctx, up); err != nil {
				r.log.Debug("update handling failed", logx.Err(err))
			}
		}
	}
}
