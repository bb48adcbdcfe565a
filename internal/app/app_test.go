package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tgtrigger/internal/config"
	"tgtrigger/internal/transport"
	"tgtrigger/internal/trigger"
	logx "tgtrigger/pkg/logx"
)

type sentMessage struct {
	to   transport.ChatTarget
	text string
}

type recordingBot struct {
	sent []sentMessage
}

func (b *recordingBot) Start(context.Context, chan<- transport.Message) error { return nil }
func (b *recordingBot) Stop(context.Context) error                          { return nil }

func (b *recordingBot) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	b.sent = append(b.sent, sentMessage{to: to, text: text})
	return transport.MessageRef{ChatID: to.ChatID}, nil
}

func (b *recordingBot) Reply(_ context.Context, to *transport.Message, text string) (transport.MessageRef, error) {
	return b.SendText(context.Background(), transport.ChatTarget{ChatID: to.ChatID}, text, nil)
}

func TestRegisterConfigTriggers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "info")
	reg := trigger.NewRegistry()
	err := registerConfigTriggers(reg, log, []config.TriggerConfig{
		{Name: "heartbeat", Every: "30s", Action: "log", Text: "still alive"},
		{Name: "daily", Unit: "day", RunOnStart: true, Action: "message", ChatID: -100, ThreadID: 7, Text: "good morning"},
	})
	if err != nil {
		t.Fatalf("registerConfigTriggers: %v", err)
	}
	defs := reg.Definitions()
	if len(defs) != 2 {
		t.Fatalf("definitions = %d", len(defs))
	}
	if defs[0].Spec != trigger.Every(30*time.Second) || defs[1].Spec.Unit != "day" || !defs[1].RunOnStart {
		t.Fatalf("unexpected definitions %+v", defs)
	}

	bot := &recordingBot{}
	rt := trigger.Runtime{Bot: bot}
	ctx := context.Background()
	if err := defs[0].Callback(ctx, rt); err != nil {
		t.Fatalf("log action: %v", err)
	}
	if !strings.Contains(buf.String(), "still alive") {
		t.Fatalf("log output %q", buf.String())
	}
	if err := defs[1].Callback(ctx, rt); err != nil {
		t.Fatalf("message action: %v", err)
	}
	if len(bot.sent) != 1 || bot.sent[0].to.ChatID != -100 || bot.sent[0].to.ThreadID != 7 || bot.sent[0].text != "good morning" {
		t.Fatalf("sent = %+v", bot.sent)
	}
	if err := defs[1].Callback(ctx, trigger.Runtime{}); err == nil {
		t.Fatal("message action without a bot should fail")
	}
}

func TestRegisterConfigTriggersRejectsSharedUnit(t *testing.T) {
	t.Parallel()
	reg := trigger.NewRegistry()
	err := registerConfigTriggers(reg, logx.Nop(), []config.TriggerConfig{
		{Name: "a", Unit: "minute", Action: "log"},
		{Name: "b", Unit: "minute", Action: "log"},
	})
	if !errors.Is(err, trigger.ErrUnitTaken) {
		t.Fatalf("err = %v, want ErrUnitTaken", err)
	}
}

func TestFormatSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 12, 0, 30, 0, time.UTC)
	s := trigger.Snapshot{
		Started:  true,
		Timezone: "UTC",
		Triggers: []trigger.Status{
			{ID: 1, Name: "tick", Spec: "every 1s", Alive: true, Starts: 1, Fires: 30, LastFire: now.Add(-time.Second), NextFire: now},
			{ID: 2, Name: "daily", Spec: "on day", Starts: 3, LastError: "callback: boom"},
		},
	}
	out := formatSnapshot(s, now)
	for _, want := range []string{
		"Triggers: 2 (running, tz UTC)",
		"#1 tick [every 1s] alive",
		"fires: 30, last 1s ago",
		"next: 2024-03-10 12:00:30",
		"#2 daily [on day] stopped",
		"restarts: 2",
		"last error: callback: boom",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()
	out := formatHelp(map[string]string{"help": "list commands", "triggers": "show"}, []string{"help", "triggers"})
	if out != "Commands:\n/help - list commands\n/triggers - show" {
		t.Fatalf("got %q", out)
	}
}

func TestConfigMapping(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Telegram: config.TelegramConfig{GroupLog: "-1001"},
		Logging: config.LoggingConfig{
			Level:    "debug",
			Telegram: config.LoggingTelegram{Enabled: true, ThreadID: 3, MinLevel: "warn", RatePerSec: 2},
		},
		Storage: config.StorageConfig{Driver: " sqlite ", Path: "./db", BusyTimeout: "2s"},
	}
	lc := logConfig(cfg)
	if lc.Level != "debug" || lc.Telegram.ChatID != -1001 || lc.Telegram.ThreadID != 3 || !lc.Telegram.Enabled {
		t.Fatalf("logConfig = %+v", lc)
	}
	sc, err := storageConfig(cfg)
	if err != nil || sc.Driver != "sqlite" || sc.Path != "./db" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("storageConfig = %+v, %v", sc, err)
	}
}
