// Package storage defines the collaborators the map engine reads world data
// from and hands server joins to.
package storage

import (
	"context"
	"math"

	"github.com/zeusync/mapsync/internal/core/models"
)

// Lister returns the full current set of each entity kind.
type Lister interface {
	Regions(ctx context.Context) ([]models.Region, error)
	Areas(ctx context.Context) ([]models.Area, error)
	Objectives(ctx context.Context) ([]models.Objective, error)
	Factions(ctx context.Context) ([]models.Faction, error)
	Servers(ctx context.Context) ([]models.Server, error)
	Pawns(ctx context.Context) ([]models.Pawn, error)
}

// JoinRequest asks the join collaborator to register a session on a server.
type JoinRequest struct {
	ServerID models.ID  `json:"destinationServerId"`
	AreaID   *models.ID `json:"destinationAreaId,omitempty"`
}

// Joiner performs session registration for a server marker and returns where
// the external client should connect.
type Joiner interface {
	Join(ctx context.Context, req JoinRequest) (models.Destination, error)
}

// Page is the paging envelope returned by list endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}

// Unpaged is a page size large enough to fetch every row in one request.
const Unpaged = math.MaxInt32
