package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tgtrigger/internal/dispatch"
	"tgtrigger/internal/trigger"
)

func (a *App) registerCommands() error {
	cmds := []dispatch.Command{
		{
			Name:        "triggers",
			Description: "show registered triggers",
			Access:      dispatch.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *dispatch.Request) error {
				return req.Reply(ctx, formatSnapshot(a.emitter.Snapshot(), time.Now()))
			},
		},
		{
			Name:        "help",
			Description: "list commands",
			Handle: func(ctx context.Context, req *dispatch.Request) error {
				return req.Reply(ctx, formatHelp(a.disp.Commands(), a.disp.CommandNames()))
			},
		},
	}
	for _, c := range cmds {
		if err := a.disp.Command(c); err != nil {
			return err
		}
	}
	return nil
}

func formatHelp(desc map[string]string, names []string) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "/%s - %s\n", n, desc[n])
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatSnapshot renders the emitter state as plain text, one block per trigger.
func formatSnapshot(s trigger.Snapshot, now time.Time) string {
	var b strings.Builder
	state := "not started"
	if s.Started {
		state = "running"
	}
	fmt.Fprintf(&b, "Triggers: %d (%s, tz %s)\n", len(s.Triggers), state, s.Timezone)
	for _, t := range s.Triggers {
		status := "stopped"
		if t.Alive {
			status = "alive"
		}
		fmt.Fprintf(&b, "\n#%d %s [%s] %s\n", t.ID, t.Name, t.Spec, status)
		fmt.Fprintf(&b, "  fires: %d", t.Fires)
		if !t.LastFire.IsZero() {
			fmt.Fprintf(&b, ", last %s ago", roundAgo(now.Sub(t.LastFire)))
		}
		b.WriteString("\n")
		if !t.NextFire.IsZero() {
			fmt.Fprintf(&b, "  next: %s\n", t.NextFire.In(locOf(s.Timezone)).Format("2006-01-02 15:04:05"))
		}
		if t.Starts > 1 {
			fmt.Fprintf(&b, "  restarts: %d\n", t.Starts-1)
		}
		if t.LastError != "" {
			fmt.Fprintf(&b, "  last error: %s\n", t.LastError)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func roundAgo(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d.Round(time.Second)
}

func locOf(tz string) *time.Location {
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc
	}
	return time.UTC
}
