package store

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/storage"
)

// Snapshot is the result of one bulk load.
type Snapshot struct {
	Regions    []models.Region
	Areas      []models.Area
	Objectives []models.Objective
	Factions   []models.Faction
	Servers    []models.Server
	Pawns      []models.Pawn
}

// Fetch issues every listing call concurrently and fails as a whole if any of
// them fails.
func Fetch(ctx context.Context, lister storage.Lister) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Regions, err = lister.Regions(ctx)
		return errors.Wrap(err, "list regions")
	})
	g.Go(func() (err error) {
		snap.Areas, err = lister.Areas(ctx)
		return errors.Wrap(err, "list areas")
	})
	g.Go(func() (err error) {
		snap.Objectives, err = lister.Objectives(ctx)
		return errors.Wrap(err, "list objectives")
	})
	g.Go(func() (err error) {
		snap.Factions, err = lister.Factions(ctx)
		return errors.Wrap(err, "list factions")
	})
	g.Go(func() (err error) {
		snap.Servers, err = lister.Servers(ctx)
		return errors.Wrap(err, "list servers")
	})
	g.Go(func() (err error) {
		snap.Pawns, err = lister.Pawns(ctx)
		return errors.Wrap(err, "list pawns")
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
