package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgtrigger/internal/app"
	"tgtrigger/internal/calendar"
	"tgtrigger/internal/dispatch"
	"tgtrigger/internal/trigger"
	logx "tgtrigger/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config json or yaml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := register(a); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := a.Run(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func register(a *app.App) error {
	log := a.Logger()
	reg := a.Triggers()

	if _, err := reg.Register("heartbeat", trigger.Every(time.Second), false, func(ctx context.Context, rt trigger.Runtime) error {
		log.Debug("trigger on")
		return nil
	}); err != nil {
		return err
	}
	if _, err := reg.Register("new-day", trigger.OnRollover(calendar.Day), false, func(ctx context.Context, rt trigger.Runtime) error {
		log.Info("a new day has started", logx.Int("commands", len(rt.Dispatcher.CommandNames())))
		return nil
	}); err != nil {
		return err
	}

	a.Dispatcher().HandleText("hello", func(ctx context.Context, req *dispatch.Request) error {
		return req.Reply(ctx, "Hi!\nI'm Triggers Bot!")
	})
	return nil
}
