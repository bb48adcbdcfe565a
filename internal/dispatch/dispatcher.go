// Package dispatch routes incoming bot messages to handlers and runs the
// host's startup and shutdown hooks around the polling loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"tgtrigger/internal/runtime/supervisor"
	"tgtrigger/internal/transport"
	logx "tgtrigger/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

var (
	ErrAlreadyRunning = errors.New("dispatcher already running")
	ErrBadCommandName = errors.New("invalid command name")
)

type HandlerFunc func(ctx context.Context, req *Request) error

// Request is one routed message.
type Request struct {
	Message transport.Message
	Command string   // lowercased, without "/" and "@bot" suffix; empty for text routes
	Args    []string // whitespace-separated arguments after the command
	Bot     transport.Adapter
	Logger  logx.Logger
}

// Reply answers the routed message.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Bot.Reply(ctx, &r.Message, text)
	return err
}

type Command struct {
	Name        string
	Description string
	Access      Access
	Timeout     time.Duration // 0 uses the dispatcher default
	Handle      HandlerFunc
}

type textRoute struct {
	match  string
	handle HandlerFunc
}

type Options struct {
	Logger          logx.Logger
	Owners          []int64
	Workers         int
	HandlerTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Dispatcher owns the command table and the lifecycle hooks.
type Dispatcher struct {
	log logx.Logger
	opt Options

	mu       sync.RWMutex
	commands map[string]Command
	texts    []textRoute
	owners   []int64
	startup  []func(ctx context.Context) error
	shutdown []func(ctx context.Context) error

	runMu   sync.Mutex
	running bool
}

func New(opt Options) *Dispatcher {
	if opt.Workers <= 0 {
		opt.Workers = 4
	}
	if opt.HandlerTimeout <= 0 {
		opt.HandlerTimeout = 30 * time.Second
	}
	if opt.ShutdownTimeout <= 0 {
		opt.ShutdownTimeout = 10 * time.Second
	}
	log := opt.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		log:      log.With(logx.String("comp", "dispatch")),
		opt:      opt,
		commands: map[string]Command{},
		owners:   append([]int64(nil), opt.Owners...),
	}
}

// Telegram command names are [a-z0-9_]{1,32}.
var reCommandName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// Command registers (or replaces) a slash command.
func (d *Dispatcher) Command(c Command) error {
	c.Name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Name), "/"))
	if !reCommandName.MatchString(c.Name) {
		return fmt.Errorf("%w: %q", ErrBadCommandName, c.Name)
	}
	if c.Handle == nil {
		return fmt.Errorf("command %q: nil handler", c.Name)
	}
	d.mu.Lock()
	d.commands[c.Name] = c
	d.mu.Unlock()
	return nil
}

// HandleText routes messages whose trimmed text equals text, ignoring case.
func (d *Dispatcher) HandleText(text string, h HandlerFunc) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.texts = append(d.texts, textRoute{match: strings.ToLower(strings.TrimSpace(text)), handle: h})
	d.mu.Unlock()
}

// OnStartup adds a hook that Run calls once before it starts polling.
func (d *Dispatcher) OnStartup(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.startup = append(d.startup, fn)
	d.mu.Unlock()
}

// OnShutdown adds a hook that Run calls after polling stops, in reverse
// registration order.
func (d *Dispatcher) OnShutdown(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.shutdown = append(d.shutdown, fn)
	d.mu.Unlock()
}

// SetOwners replaces the users allowed to run owner-only commands.
func (d *Dispatcher) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	d.mu.Lock()
	d.owners = cp
	d.mu.Unlock()
}

func (d *Dispatcher) isOwner(id int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, o := range d.owners {
		if o == id {
			return true
		}
	}
	return false
}

// Commands returns name -> description for the bot menu.
func (d *Dispatcher) Commands() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.commands))
	for name, c := range d.commands {
		out[name] = c.Description
	}
	return out
}

// CommandNames returns the registered command names, sorted.
func (d *Dispatcher) CommandNames() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	d.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Run fires the startup hooks, starts bot polling, and routes messages with a
// bounded worker pool until ctx is cancelled. Shutdown hooks run before it
// returns.
func (d *Dispatcher) Run(ctx context.Context, bot transport.Adapter) error {
	if bot == nil {
		return errors.New("dispatch: nil bot")
	}
	d.runMu.Lock()
	if d.running {
		d.runMu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.runMu.Unlock()
	defer func() {
		d.runMu.Lock()
		d.running = false
		d.runMu.Unlock()
	}()

	defer d.runShutdown(ctx)
	if err := d.runStartup(ctx); err != nil {
		return err
	}

	updates := make(chan transport.Message, 64)
	if err := bot.Start(ctx, updates); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(d.log))
	for i := 0; i < d.opt.Workers; i++ {
		idx := i
		sup.GoRestart("dispatch.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case m := <-updates:
					d.Dispatch(c, bot, m)
				}
			}
		})
	}
	d.log.Info("dispatcher started", logx.Int("workers", d.opt.Workers))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opt.ShutdownTimeout)
	defer cancel()
	if err := bot.Stop(stopCtx); err != nil {
		d.log.Warn("bot stop failed", logx.Err(err))
	}
	if err := sup.Stop(stopCtx); err != nil && stopCtx.Err() != nil {
		d.log.Warn("dispatcher workers did not stop in time", logx.Err(err))
	}
	d.log.Info("dispatcher stopped")
	return nil
}

func (d *Dispatcher) runStartup(ctx context.Context) error {
	d.mu.RLock()
	hooks := append([]func(context.Context) error(nil), d.startup...)
	d.mu.RUnlock()
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("startup hook %d: %w", i, err)
		}
	}
	return nil
}

func (d *Dispatcher) runShutdown(parent context.Context) {
	d.mu.RLock()
	hooks := append([]func(context.Context) error(nil), d.shutdown...)
	d.mu.RUnlock()
	if len(hooks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.opt.ShutdownTimeout)
	defer cancel()
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			d.log.Warn("shutdown hook failed", logx.Int("hook", i), logx.Err(err))
		}
	}
}

// Dispatch routes one message. It reports whether a handler matched.
func (d *Dispatcher) Dispatch(ctx context.Context, bot transport.Adapter, m transport.Message) bool {
	h, req, timeout, ok := d.route(m)
	if !ok {
		return false
	}
	if req.Command != "" {
		d.mu.RLock()
		c := d.commands[req.Command]
		d.mu.RUnlock()
		if c.Access == AccessOwnerOnly && !d.isOwner(m.FromID) {
			d.log.Debug("owner-only command denied", logx.String("cmd", req.Command), logx.Int64("from", m.FromID))
			_, _ = bot.Reply(ctx, &m, "not allowed")
			return true
		}
	}
	req.Bot = bot
	req.Logger = d.log.With(logx.String("cmd", req.Command), logx.Int64("chat", m.ChatID))

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				d.log.Error("handler panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		return h(hctx, req)
	}()
	if err != nil {
		req.Logger.Warn("handler failed", logx.Duration("took", time.Since(start)), logx.Err(err))
	}
	return true
}

func (d *Dispatcher) route(m transport.Message) (HandlerFunc, *Request, time.Duration, bool) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return nil, nil, 0, false
	}
	req := &Request{Message: m}

	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text[1:])
		if len(fields) == 0 {
			return nil, nil, 0, false
		}
		name := strings.ToLower(fields[0])
		if at := strings.IndexByte(name, '@'); at >= 0 {
			name = name[:at]
		}
		d.mu.RLock()
		c, ok := d.commands[name]
		d.mu.RUnlock()
		if ok {
			req.Command = name
			req.Args = fields[1:]
			timeout := c.Timeout
			if timeout <= 0 {
				timeout = d.opt.HandlerTimeout
			}
			return c.Handle, req, timeout, true
		}
	}

	low := strings.ToLower(text)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.texts {
		if r.match == low {
			return r.handle, req, d.opt.HandlerTimeout, true
		}
	}
	return nil, nil, 0, false
}
