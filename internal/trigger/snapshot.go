package trigger

import (
	"time"
)

type Status struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Spec       string    `json:"spec"`
	RunOnStart bool      `json:"run_on_start"`
	Alive      bool      `json:"alive"`
	Starts     uint64    `json:"starts"`
	Fires      uint64    `json:"fires"`
	LastFire   time.Time `json:"last_fire"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	LastErrAt  time.Time `json:"last_error_at"`
	NextFire   time.Time `json:"next_fire"`
}

type Snapshot struct {
	Started  bool     `json:"started"`
	Timezone string   `json:"timezone"`
	Triggers []Status `json:"triggers"`
}

// Snapshot reports every trigger. Before Start it lists the registered
// definitions with no runtime data.
func (e *Emitter) Snapshot() Snapshot {
	e.mu.Lock()
	started := e.started
	entries := make([]*entry, len(e.entries))
	copy(entries, e.entries)
	e.mu.Unlock()

	src := e.opt.Source
	snap := Snapshot{Started: started, Timezone: src.Location().String()}
	if !started {
		for _, d := range e.reg.Definitions() {
			snap.Triggers = append(snap.Triggers, Status{ID: d.ID, Name: d.Name, Spec: d.Spec.String(), RunOnStart: d.RunOnStart})
		}
		return snap
	}

	for _, en := range entries {
		en.st.mu.Lock()
		s := Status{
			ID:         en.def.ID,
			Name:       en.def.Name,
			Spec:       en.def.Spec.String(),
			RunOnStart: en.def.RunOnStart,
			Alive:      en.st.alive,
			Starts:     en.st.starts,
			Fires:      en.st.fires,
			LastFire:   en.st.lastFire,
			LastRunID:  en.st.lastRun,
			LastError:  en.st.lastErr,
			LastErrAt:  en.st.lastErrAt,
		}
		since := en.st.since
		en.st.mu.Unlock()

		if s.Alive {
			switch en.def.Spec.Kind {
			case KindCalendar:
				s.NextFire = src.NextRollover(en.def.Spec.Unit)
			case KindDuration:
				base := since
				if s.LastFire.After(base) {
					base = s.LastFire
				}
				s.NextFire = base.Add(en.def.Spec.Every)
			}
		}
		snap.Triggers = append(snap.Triggers, s)
	}
	return snap
}
