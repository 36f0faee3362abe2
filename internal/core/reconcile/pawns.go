package reconcile

import (
	"time"

	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/render"
)

// ObjectiveTaken recolors an objective. Unknown objectives are ignored and
// reported as false.
func (r *Reconciler) ObjectiveTaken(objectiveID, factionID models.ID) bool {
	if !r.store.ApplyObjectiveFactionChange(objectiveID, factionID) {
		r.logger.Debug("Objective taken for unknown objective",
			log.Int64("objective", int64(objectiveID)),
			log.Int64("faction", int64(factionID)),
		)
		return false
	}
	r.stats.Recolored++
	color := r.factionColor(factionID, true)
	err := r.surface.Mutate(render.KeyOf(render.KindObjective, objectiveID), func(p *render.Props) {
		p.Fill = color
	})
	if err != nil {
		r.logger.Debug("Objective has no handle", log.Int64("objective", int64(objectiveID)), log.Error(err))
	}
	return true
}

// ServerPawns reconciles a full pawn snapshot of one server against the
// previous one. Known pawns glide to their new position, new pawns fade in
// and pawns missing from the snapshot fade out and are removed once the fade
// completes. A newer snapshot redirects running animations.
func (r *Reconciler) ServerPawns(serverID models.ID, pawns []models.Pawn) Diff {
	change := r.store.ApplyServerPawns(serverID, pawns)
	diff := Diff{ServerID: serverID, Replayed: change.Replayed}
	r.stats.Snapshots++
	if change.Replayed {
		r.stats.Replays++
		r.logger.Debug("Replayed pawn snapshot", log.Int64("server", int64(serverID)))
	}

	old := make(map[models.ID]bool, len(change.Previous))
	for _, p := range change.Previous {
		old[p.ID] = true
	}

	for _, p := range change.Current {
		key := render.KeyOf(render.KindPawn, p.ID)
		if r.surface.Has(key) {
			if r.update(key, p) {
				diff.Moved++
			}
			diff.Updated = append(diff.Updated, p.ID)
		} else {
			r.enter(key, p)
			diff.Entered = append(diff.Entered, p.ID)
		}
		delete(old, p.ID)
	}

	for _, p := range change.Previous {
		if !old[p.ID] {
			continue
		}
		key := render.KeyOf(render.KindPawn, p.ID)
		if !r.surface.Has(key) {
			continue
		}
		r.exit(key)
		diff.Exited = append(diff.Exited, p.ID)
	}

	r.stats.Entered += len(diff.Entered)
	r.stats.Updated += len(diff.Updated)
	r.stats.Exited += len(diff.Exited)
	return diff
}

func (r *Reconciler) enter(key render.Key, p models.Pawn) {
	props := r.pawnProps(p)
	props.Opacity = 0
	if err := r.surface.Create(key, props); err != nil {
		r.logger.Warn("Create pawn failed", log.String("key", key.String()), log.Error(err))
		return
	}
	r.animate(key, render.Target{render.PropOpacity: 1}, r.config.EnterDuration, r.config.EnterEasing, nil)
}

// update also fades the pawn back in, which cancels a pending exit.
func (r *Reconciler) update(key render.Key, p models.Pawn) bool {
	fill := r.factionColor(p.FactionID, true)
	_ = r.surface.Mutate(key, func(props *render.Props) {
		props.Fill = fill
		props.Label = p.Name
		props.LabelVisible = p.Human || (r.hovering && r.hovered == key)
	})
	r.animate(key, render.Target{render.PropOpacity: 1}, r.config.EnterDuration, r.config.EnterEasing, nil)
	return r.animate(key, render.Target{render.PropX: p.X, render.PropY: p.Y}, r.config.MoveDuration, r.config.MoveEasing, nil)
}

func (r *Reconciler) exit(key render.Key) {
	r.animate(key, render.Target{render.PropOpacity: 0}, r.config.ExitDuration, r.config.ExitEasing, func() {
		if err := r.surface.Remove(key); err != nil {
			r.logger.Debug("Exited pawn already removed", log.String("key", key.String()), log.Error(err))
		}
	})
}

func (r *Reconciler) animate(key render.Key, target render.Target, d time.Duration, ease render.Easing, done func()) bool {
	started, err := r.surface.Animate(key, target, d, ease, done)
	if err != nil {
		r.logger.Warn("Animate failed", log.String("key", key.String()), log.Error(err))
	}
	return started
}

// Hover shows a bot pawn's name while the pointer is over it.
func (r *Reconciler) Hover(key render.Key, entered bool) {
	if key.Kind != render.KindPawn {
		return
	}
	r.hovered, r.hovering = key, entered
	pawn, ok := r.store.Pawn(key.ID)
	if !ok {
		return
	}
	visible := entered || pawn.Human
	_ = r.surface.Mutate(key, func(p *render.Props) { p.LabelVisible = visible })
}

// ServerFor returns the server behind a marker key.
func (r *Reconciler) ServerFor(key render.Key) (models.Server, bool) {
	if key.Kind != render.KindServer {
		return models.Server{}, false
	}
	return r.store.Server(key.ID)
}
