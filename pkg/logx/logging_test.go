package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate(strings.Repeat("x", 20), 12); got != strings.Repeat("x", 9)+"..." {
		t.Fatalf("got %q", got)
	}

	// Cyrillic letters are two bytes each, so both cuts land mid-rune.
	msg := "ошибка: триггер упал"
	got := truncate(msg, 12)
	if !utf8.ValidString(got) || got != "ошиб..." {
		t.Fatalf("got %q", got)
	}
	if got := truncate(msg, 5); !utf8.ValidString(got) || got != "ош" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatTelegramJSON(t *testing.T) {
	t.Parallel()
	line := `{"level":"error","time":"x","caller":"a.go:1","message":"trigger failed","trigger":"tick","err":"boom"}`
	want := "[ERROR] trigger failed\n- err=boom\n- trigger=tick"
	if got := formatTelegramJSON([]byte(line)); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := formatTelegramJSON([]byte("  not json \n")); got != "not json" {
		t.Fatalf("got %q", got)
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("nothing", String("k", "v"))
	if Nop().IsZero() {
		t.Fatal("Nop logger is not the zero value")
	}
}

// Not parallel: New rewrites zerolog's global field names.
func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("comp", "trigger"))
	l.Warn("failed", Uint64("trigger_id", 3), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not json: %q", buf.String())
	}
	if m["comp"] != "trigger" || m["trigger_id"] != float64(3) || m["message"] != "failed" || m["level"] != "warn" {
		t.Fatalf("unexpected entry %v", m)
	}
	if m[zerolog.ErrorFieldName] == nil || m["caller"] == nil {
		t.Fatalf("missing err or caller in %v", m)
	}
}

type chanSender chan string

func (c chanSender) SendPlain(_ context.Context, chatID int64, threadID int, text string) error {
	c <- text
	return nil
}

func TestServiceMirrorsErrorsToTelegram(t *testing.T) {
	sent := make(chanSender, 4)
	svc, log := New(Config{
		Level:    "debug",
		Telegram: TelegramConfig{Enabled: true, ChatID: 5, MinLevel: "error", RatePerSec: 10},
	}, sent)
	defer svc.Close()

	log.Info("routine")
	log.Error("trigger failed", String("trigger", "tick"))

	select {
	case msg := <-sent:
		if msg != "[ERROR] trigger failed\n- trigger=tick" {
			t.Fatalf("sent %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error was not mirrored")
	}
	select {
	case msg := <-sent:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
