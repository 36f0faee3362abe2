// Package reconcile turns cached entities and realtime snapshots into handle
// operations on the render surface.
package reconcile

import (
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/store"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

// Surface is the subset of the render surface the reconciler drives.
type Surface interface {
	Create(key render.Key, props render.Props) error
	Update(key render.Key, props render.Props) error
	Mutate(key render.Key, fn func(p *render.Props)) error
	Remove(key render.Key) error
	Has(key render.Key) bool
	Keys(kind render.Kind) []render.Key
	Animate(key render.Key, target render.Target, duration time.Duration, ease render.Easing, onComplete func()) (bool, error)
}

// Diff lists the pawn operations issued for one snapshot.
type Diff struct {
	ServerID models.ID
	Entered  []models.ID
	Updated  []models.ID
	Exited   []models.ID
	// Moved counts updates that actually started a movement.
	Moved    int
	Replayed bool
}

// Stats accumulates operation counts over the reconciler's lifetime.
type Stats struct {
	Entered   int `json:"entered"`
	Updated   int `json:"updated"`
	Exited    int `json:"exited"`
	Recolored int `json:"recolored"`
	Snapshots int `json:"snapshots"`
	Replays   int `json:"replays"`
}

// Reconciler is the only mutator of the store and the surface. It must be
// used from the loop.
type Reconciler struct {
	store   *store.Store
	surface Surface
	config  Config
	labels  *template.Template
	logger  log.Log
	stats   Stats

	hovered  render.Key
	hovering bool
}

func New(st *store.Store, surface Surface, config Config, logger log.Log) (*Reconciler, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	labels, err := template.New("server").Funcs(sprig.TxtFuncMap()).Parse(config.ServerLabel)
	if err != nil {
		return nil, errors.Wrap(err, "parse server label template")
	}
	return &Reconciler{
		store:   st,
		surface: surface,
		config:  config,
		labels:  labels,
		logger:  logger.With(log.String("component", "reconcile")),
	}, nil
}

func (r *Reconciler) Stats() Stats { return r.stats }

// Place brings every static layer in line with the store and creates handles
// for cached pawns that have none. framed is the margin-expanded map box in
// flipped world units; ok is false while no area exists.
func (r *Reconciler) Place(framed viewport.Rect, ok bool) {
	var terrain []placement
	if ok {
		c := framed.Center()
		terrain = append(terrain, placement{render.KeyOf(render.KindTerrain, 0), render.Props{
			Shape:   render.ShapeRect,
			X:       c.X,
			Y:       -c.Y,
			Width:   framed.Width(),
			Height:  framed.Height(),
			Fill:    colorTerrain,
			Opacity: 1,
		}})
	}
	r.sync(render.KindTerrain, terrain)
	r.sync(render.KindRegion, r.regionProps())
	r.sync(render.KindArea, r.areaProps())
	r.sync(render.KindLink, r.linkProps())
	r.sync(render.KindObjective, r.objectiveProps())
	r.sync(render.KindServer, r.serverProps())

	for _, p := range r.store.AllPawns() {
		key := render.KeyOf(render.KindPawn, p.ID)
		if r.surface.Has(key) {
			continue
		}
		props := r.pawnProps(p)
		props.Opacity = 1
		r.create(key, props)
	}
}

type placement struct {
	key   render.Key
	props render.Props
}

// sync makes the handles of kind match want, updating handles that already
// exist so their identity survives.
func (r *Reconciler) sync(kind render.Kind, want []placement) {
	keep := make(map[render.Key]bool, len(want))
	for _, p := range want {
		keep[p.key] = true
	}
	for _, key := range r.surface.Keys(kind) {
		if !keep[key] {
			_ = r.surface.Remove(key)
		}
	}
	for _, p := range want {
		if r.surface.Has(p.key) {
			if err := r.surface.Update(p.key, p.props); err != nil {
				r.logger.Warn("Update handle failed", log.String("key", p.key.String()), log.Error(err))
			}
			continue
		}
		r.create(p.key, p.props)
	}
}

func (r *Reconciler) create(key render.Key, props render.Props) {
	if err := r.surface.Create(key, props); err != nil {
		r.logger.Warn("Create handle failed", log.String("key", key.String()), log.Error(err))
	}
}

func (r *Reconciler) regionProps() []placement {
	var out []placement
	for _, region := range r.store.Regions() {
		out = append(out, placement{render.KeyOf(render.KindRegion, region.ID), render.Props{
			Shape:        render.ShapeText,
			X:            region.X,
			Y:            region.Y,
			Fill:         colorRegion,
			Opacity:      1,
			Label:        region.Name,
			LabelVisible: true,
		}})
	}
	return out
}

func (r *Reconciler) areaProps() []placement {
	var out []placement
	for _, area := range r.store.Areas() {
		out = append(out, placement{render.KeyOf(render.KindArea, area.ID), render.Props{
			Shape:        render.ShapeRect,
			X:            area.X,
			Y:            area.Y,
			Width:        area.SizeX,
			Height:       area.SizeY,
			Stroke:       colorOutline,
			StrokeWidth:  1,
			Opacity:      1,
			Label:        area.Name,
			LabelVisible: true,
		}})
	}
	return out
}

// linkProps draws each undirected link once, whichever end lists it.
func (r *Reconciler) linkProps() []placement {
	var out []placement
	drawn := make(map[render.Key]bool)
	for _, obj := range r.store.Objectives() {
		for _, linkedID := range obj.LinkedObjectiveIDs {
			if linkedID == obj.ID {
				continue
			}
			linked, ok := r.store.Objective(linkedID)
			if !ok {
				r.logger.Debug("Link to unknown objective skipped",
					log.Int64("objective", int64(obj.ID)),
					log.Int64("linked", int64(linkedID)),
				)
				continue
			}
			key := render.LinkKey(obj.ID, linkedID)
			if drawn[key] {
				continue
			}
			drawn[key] = true
			out = append(out, placement{key, render.Props{
				Shape:       render.ShapeLine,
				X:           obj.X,
				Y:           obj.Y,
				X2:          linked.X,
				Y2:          linked.Y,
				Stroke:      colorOutline,
				StrokeWidth: 1,
				Opacity:     1,
			}})
		}
	}
	return out
}

func (r *Reconciler) objectiveProps() []placement {
	var out []placement
	for _, obj := range r.store.Objectives() {
		var faction models.ID
		if obj.FactionID != nil {
			faction = *obj.FactionID
		}
		out = append(out, placement{render.KeyOf(render.KindObjective, obj.ID), render.Props{
			Shape:        render.ShapeSquare,
			X:            obj.X,
			Y:            obj.Y,
			Radius:       r.config.ObjectiveRadius,
			Fill:         r.factionColor(faction, obj.FactionID != nil),
			Stroke:       colorOutline,
			StrokeWidth:  1,
			Opacity:      1,
			Label:        obj.Name,
			LabelVisible: true,
		}})
	}
	return out
}

func (r *Reconciler) serverProps() []placement {
	var out []placement
	for _, server := range r.store.Servers() {
		if !server.Joinable() {
			continue
		}
		out = append(out, placement{render.KeyOf(render.KindServer, server.ID), render.Props{
			Shape:        render.ShapeSquare,
			X:            server.X,
			Y:            server.Y,
			Radius:       r.config.ServerRadius,
			Fill:         colorServer,
			Stroke:       colorOutline,
			StrokeWidth:  2,
			Opacity:      1,
			Label:        r.serverLabel(server),
			LabelVisible: true,
			Interactive:  true,
		}})
	}
	return out
}

func (r *Reconciler) serverLabel(server models.Server) string {
	data := struct {
		Server models.Server
		Areas  []models.Area
	}{Server: server}
	for _, id := range server.AreaIDs {
		if area, ok := r.store.Area(id); ok {
			data.Areas = append(data.Areas, area)
		}
	}
	var b strings.Builder
	if err := r.labels.Execute(&b, data); err != nil {
		r.logger.Warn("Server label failed", log.Int64("server", int64(server.ID)), log.Error(err))
		return server.Name
	}
	return b.String()
}

func (r *Reconciler) pawnProps(p models.Pawn) render.Props {
	return render.Props{
		Shape:        render.ShapeCircle,
		X:            p.X,
		Y:            p.Y,
		Radius:       r.config.PawnRadius,
		Fill:         r.factionColor(p.FactionID, true),
		Stroke:       colorPawnEdge,
		StrokeWidth:  0.1,
		Label:        p.Name,
		LabelVisible: p.Human,
		Interactive:  true,
	}
}

func (r *Reconciler) factionColor(id models.ID, set bool) string {
	if !set {
		return colorNoFaction
	}
	if f, ok := r.store.Faction(id); ok && f.Color != "" {
		return f.Color
	}
	return colorNoFaction
}
