package render

import (
	"fmt"

	"github.com/zeusync/mapsync/internal/core/models"
)

// Kind classifies handles. The order of the constants is the drawing order.
type Kind uint8

const (
	KindTerrain Kind = iota
	KindRegion
	KindArea
	KindLink
	KindObjective
	KindPawn
	KindEmission
	KindServer
)

var kindNames = [...]string{
	KindTerrain:   "terrain",
	KindRegion:    "region",
	KindArea:      "area",
	KindLink:      "link",
	KindObjective: "objective",
	KindPawn:      "pawn",
	KindEmission:  "emission",
	KindServer:    "server",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Layer is the z-order of the kind. Higher layers draw on top.
func (k Kind) Layer() int { return int(k) }

// Kinds lists every kind in drawing order.
func Kinds() []Kind {
	return []Kind{KindTerrain, KindRegion, KindArea, KindLink, KindObjective, KindPawn, KindEmission, KindServer}
}

// Key addresses a handle. Peer is only used by links, which are keyed by
// both endpoints.
type Key struct {
	Kind Kind
	ID   models.ID
	Peer models.ID
}

func KeyOf(kind Kind, id models.ID) Key {
	return Key{Kind: kind, ID: id}
}

// LinkKey returns the key of the undirected link between a and b. The key is
// the same for (a, b) and (b, a).
func LinkKey(a, b models.ID) Key {
	if b < a {
		a, b = b, a
	}
	return Key{Kind: KindLink, ID: a, Peer: b}
}

func (k Key) String() string {
	if k.Kind == KindLink {
		return fmt.Sprintf("%s:%d-%d", k.Kind, k.ID, k.Peer)
	}
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}
