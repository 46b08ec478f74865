package journal

import "gridsweep/internal/world"

// Follow records every edit and query published by w.
func (j *Journal) Follow(w *world.World) {
	w.Subscribe(func(ev world.Event) {
		switch ev.Type {
		case world.EventCell:
			j.Emit(NewEntry(ev.Type.String(), ev.Version, ev.Cell))
		case world.EventFill:
			j.Emit(NewEntry(ev.Type.String(), ev.Version, map[string]bool{"blocked": *ev.Fill}))
		case world.EventQuery:
			j.Emit(NewEntry(ev.Type.String(), ev.Version, ev.Query))
		}
	})
}
