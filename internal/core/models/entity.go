// Package models holds the world entities mirrored by the map.
package models

// ID identifies an entity within its kind. IDs of different kinds may collide.
type ID int64

// Region is a named label placed in world space. It has no extent.
type Region struct {
	ID   ID      `json:"id" db:"id"`
	Name string  `json:"name" db:"name"`
	X    float64 `json:"x" db:"x"`
	Y    float64 `json:"y" db:"y"`
}

// Area is an axis-aligned rectangle centred on (X, Y).
type Area struct {
	ID       ID      `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	RegionID ID      `json:"regionId,omitempty" db:"region_id"`
	X        float64 `json:"x" db:"x"`
	Y        float64 `json:"y" db:"y"`
	SizeX    float64 `json:"sizeX" db:"size_x"`
	SizeY    float64 `json:"sizeY" db:"size_y"`
	ServerID *ID     `json:"serverId,omitempty" db:"server_id"`
}

// Objective is a capturable point. LinkedObjectiveIDs is directed; the map
// renders it as an undirected graph.
type Objective struct {
	ID                 ID      `json:"id"`
	Name               string  `json:"name"`
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	FactionID          *ID     `json:"factionId"`
	LinkedObjectiveIDs []ID    `json:"linkedObjectiveIds"`
}

// Faction owns objectives and pawns. Color is any CSS-style color string.
type Faction struct {
	ID    ID     `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Color string `json:"color" db:"color"`
}

// Server is a joinable world server hosting one or more areas.
type Server struct {
	ID                  ID      `json:"id"`
	Name                string  `json:"name"`
	X                   float64 `json:"x"`
	Y                   float64 `json:"y"`
	AreaIDs             []ID    `json:"areaIds"`
	WebSocketURL        string  `json:"webSocketUrl"`
	PublicIP            string  `json:"publicIp"`
	PublicWebSocketPort int     `json:"publicWebSocketPort"`
	MapName             string  `json:"mapName"`
}

// Joinable reports whether players can be sent to the server.
func (s Server) Joinable() bool {
	return s.PublicIP != ""
}

// Pawn is a mobile actor broadcast by a server. Its lifetime is bound to the
// owning server's broadcast set.
type Pawn struct {
	ID        ID      `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	X         float64 `json:"x" db:"x"`
	Y         float64 `json:"y" db:"y"`
	FactionID ID      `json:"factionId" db:"faction_id"`
	ServerID  ID      `json:"serverId" db:"server_id"`
	Human     bool    `json:"human" db:"human"`
}

// Spawn is an optional spawn transform handed to the external client.
type Spawn struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Destination is what the join collaborator returns for a server marker.
type Destination struct {
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	WebSocketURL string `json:"webSocketUrl"`
	MapName      string `json:"mapName"`
	UserID       ID     `json:"userId"`
	FactionID    ID     `json:"factionId"`
	Token        string `json:"token"`
	Spawn        *Spawn `json:"spawn,omitempty"`
}

// IDPtr returns a pointer to id.
func IDPtr(id ID) *ID {
	return &id
}
