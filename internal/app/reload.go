package app

import (
	"context"
	"strings"

	"tgtrigger/internal/config"
	"tgtrigger/internal/eventbus"
	logx "tgtrigger/pkg/logx"
)

// reloadLoop applies hot-reloaded config. Logging and owners change live;
// everything else is reported as needing a restart.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case newCfg, ok := <-sub:
			if !ok {
				return nil
			}
			// Coalesce bursts: only the newest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	if newCfg == nil {
		return
	}
	change := config.Diff(oldCfg, newCfg)
	if change.Empty() {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(change.Sections, ","))}, change.Fields...)
	a.log.Info("config reloaded", fields...)
	if len(change.NeedsRestart) > 0 {
		a.log.Warn("config sections changed that only take effect after restart", logx.String("sections", strings.Join(change.NeedsRestart, ",")))
	}

	a.logs.Apply(logConfig(newCfg))
	a.disp.SetOwners(newCfg.Telegram.OwnerUserIDs)
}

// eventLoop mirrors trigger events into the debug log. Failures are already
// logged at error level by the emitter.
func (a *App) eventLoop(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			fields := []logx.Field{
				logx.String("type", e.Type),
				logx.Uint64("trigger_id", e.TriggerID),
				logx.String("trigger", e.Trigger),
			}
			if e.RunID != "" {
				fields = append(fields, logx.String("run_id", e.RunID))
			}
			if e.Type == eventbus.TriggerFailed {
				fields = append(fields, logx.Err(e.Err))
			}
			a.log.Debug("event", fields...)
		}
	}
}
