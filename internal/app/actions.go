package app

import (
	"context"
	"fmt"
	"strings"

	"tgtrigger/internal/config"
	"tgtrigger/internal/transport"
	"tgtrigger/internal/trigger"
	logx "tgtrigger/pkg/logx"
)

// registerConfigTriggers turns the triggers declared in the config file into
// registered definitions.
func registerConfigTriggers(reg *trigger.Registry, log logx.Logger, list []config.TriggerConfig) error {
	for i, tc := range list {
		spec, err := tc.Spec()
		if err != nil {
			return fmt.Errorf("triggers[%d] (%s): %w", i, tc.Name, err)
		}
		cb, err := actionCallback(tc, log)
		if err != nil {
			return fmt.Errorf("triggers[%d] (%s): %w", i, tc.Name, err)
		}
		if _, err := reg.Register(tc.Name, spec, tc.RunOnStart, cb); err != nil {
			return fmt.Errorf("triggers[%d] (%s): %w", i, tc.Name, err)
		}
	}
	return nil
}

func actionCallback(tc config.TriggerConfig, log logx.Logger) (trigger.Callback, error) {
	name := strings.TrimSpace(tc.Name)
	text := tc.Text
	switch strings.ToLower(strings.TrimSpace(tc.Action)) {
	case config.ActionLog:
		if strings.TrimSpace(text) == "" {
			text = "trigger fired"
		}
		return func(ctx context.Context, _ trigger.Runtime) error {
			log.Info(text, logx.String("trigger", name))
			return nil
		}, nil
	case config.ActionMessage:
		to := transport.ChatTarget{ChatID: tc.ChatID, ThreadID: tc.ThreadID}
		return func(ctx context.Context, rt trigger.Runtime) error {
			if rt.Bot == nil {
				return fmt.Errorf("no bot to send with")
			}
			_, err := rt.Bot.SendText(ctx, to, text, &transport.SendOptions{DisablePreview: true})
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown action %q", tc.Action)
}
