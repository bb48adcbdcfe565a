package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tgtrigger/internal/transport"
)

type fakeBot struct {
	mu      sync.Mutex
	out     chan<- transport.Message
	replies []string
	started chan struct{}
	stopped bool
}

func newFakeBot() *fakeBot { return &fakeBot{started: make(chan struct{})} }

func (b *fakeBot) Start(ctx context.Context, out chan<- transport.Message) error {
	b.mu.Lock()
	b.out = out
	b.mu.Unlock()
	close(b.started)
	return nil
}

func (b *fakeBot) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBot) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	return b.record(text)
}

func (b *fakeBot) Reply(ctx context.Context, to *transport.Message, text string) (transport.MessageRef, error) {
	return b.record(text)
}

func (b *fakeBot) record(text string) (transport.MessageRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, text)
	return transport.MessageRef{MessageID: len(b.replies)}, nil
}

func (b *fakeBot) Replies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.replies...)
}

func TestDispatchRoutes(t *testing.T) {
	t.Parallel()

	d := New(Options{Owners: []int64{1}})
	var gotArgs []string
	if err := d.Command(Command{Name: "/Echo", Handle: func(ctx context.Context, req *Request) error {
		gotArgs = req.Args
		return req.Reply(ctx, "echo")
	}}); err != nil {
		t.Fatalf("Command: %v", err)
	}
	if err := d.Command(Command{Name: "secret", Access: AccessOwnerOnly, Handle: func(ctx context.Context, req *Request) error {
		return req.Reply(ctx, "secret")
	}}); err != nil {
		t.Fatalf("Command: %v", err)
	}
	d.HandleText("Hello", func(ctx context.Context, req *Request) error {
		return req.Reply(ctx, "Hello!")
	})

	bot := newFakeBot()
	ctx := context.Background()
	cases := []struct {
		msg     transport.Message
		matched bool
	}{
		{transport.Message{Text: "/echo@my_bot a b", FromID: 2}, true},
		{transport.Message{Text: "  hello ", FromID: 2}, true},
		{transport.Message{Text: "/secret", FromID: 2}, true},
		{transport.Message{Text: "/secret", FromID: 1}, true},
		{transport.Message{Text: "/unknown", FromID: 1}, false},
		{transport.Message{Text: "", FromID: 1}, false},
	}
	for _, tc := range cases {
		if got := d.Dispatch(ctx, bot, tc.msg); got != tc.matched {
			t.Fatalf("Dispatch(%q) = %v, want %v", tc.msg.Text, got, tc.matched)
		}
	}

	want := []string{"echo", "Hello!", "not allowed", "secret"}
	got := bot.Replies()
	if len(got) != len(want) {
		t.Fatalf("replies = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reply %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(gotArgs) != 2 || gotArgs[0] != "a" || gotArgs[1] != "b" {
		t.Fatalf("args = %q", gotArgs)
	}
}

func TestCommandRejectsBadNames(t *testing.T) {
	t.Parallel()
	d := New(Options{})
	noop := func(context.Context, *Request) error { return nil }
	for _, name := range []string{"", "has space", "way_too_long_for_telegram_command_names"} {
		if err := d.Command(Command{Name: name, Handle: noop}); !errors.Is(err, ErrBadCommandName) {
			t.Fatalf("Command(%q) err = %v, want ErrBadCommandName", name, err)
		}
	}
	if err := d.Command(Command{Name: "ok"}); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	t.Parallel()
	d := New(Options{})
	d.HandleText("boom", func(context.Context, *Request) error { panic("boom") })
	if !d.Dispatch(context.Background(), newFakeBot(), transport.Message{Text: "boom"}) {
		t.Fatal("expected match")
	}
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	d := New(Options{Workers: 1, ShutdownTimeout: time.Second})
	var order []string
	var mu sync.Mutex
	note := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	d.OnStartup(func(context.Context) error { note("start"); return nil })
	d.OnShutdown(func(context.Context) error { note("stop-1"); return nil })
	d.OnShutdown(func(context.Context) error { note("stop-2"); return nil })
	handled := make(chan struct{})
	d.HandleText("ping", func(ctx context.Context, req *Request) error {
		close(handled)
		return nil
	})

	bot := newFakeBot()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, bot) }()

	select {
	case <-bot.started:
	case <-time.After(2 * time.Second):
		t.Fatal("bot was not started")
	}
	if err := d.Run(ctx, bot); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run err = %v, want ErrAlreadyRunning", err)
	}

	bot.mu.Lock()
	out := bot.out
	bot.mu.Unlock()
	out <- transport.Message{Text: "ping"}
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not handled")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"start", "stop-2", "stop-1"}
	if len(order) != len(want) {
		t.Fatalf("hooks = %q, want %q", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hooks = %q, want %q", order, want)
		}
	}
	if !bot.stopped {
		t.Fatal("bot was not stopped")
	}
}

func TestStartupErrorAbortsRun(t *testing.T) {
	t.Parallel()
	d := New(Options{})
	boom := errors.New("boom")
	d.OnStartup(func(context.Context) error { return boom })
	if err := d.Run(context.Background(), newFakeBot()); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want boom", err)
	}
}
