// Package store caches the world entities the map mirrors and applies the
// incremental changes carried by realtime events.
package store

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
)

// PawnChange describes what a server pawn broadcast did to the cache.
type PawnChange struct {
	ServerID models.ID
	Previous []models.Pawn
	Current  []models.Pawn
	// Migrated maps pawn ids that moved in from another server to that server.
	Migrated map[models.ID]models.ID
	// Replayed is set when the broadcast is identical to the last one applied
	// for the same server.
	Replayed bool
}

// Store is not safe for concurrent use. It is owned by the event loop.
type Store struct {
	logger log.Log

	regions    *table[models.Region]
	areas      *table[models.Area]
	objectives *table[models.Objective]
	factions   *table[models.Faction]
	servers    *table[models.Server]

	pawns   map[models.ID]*table[models.Pawn]
	owner   map[models.ID]models.ID
	digests map[models.ID]uint64
}

func New(logger log.Log) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Store{logger: logger}
	s.Clear()
	return s
}

// Clear drops every cached entity.
func (s *Store) Clear() {
	s.regions = newTable(func(r models.Region) models.ID { return r.ID })
	s.areas = newTable(func(a models.Area) models.ID { return a.ID })
	s.objectives = newTable(func(o models.Objective) models.ID { return o.ID })
	s.factions = newTable(func(f models.Faction) models.ID { return f.ID })
	s.servers = newTable(func(sv models.Server) models.ID { return sv.ID })
	s.pawns = make(map[models.ID]*table[models.Pawn])
	s.owner = make(map[models.ID]models.ID)
	s.digests = make(map[models.ID]uint64)
}

// Load replaces the whole cache with snap. Loading the same snapshot twice
// yields the same state.
func (s *Store) Load(snap Snapshot) {
	s.LoadStatic(snap)

	s.pawns = make(map[models.ID]*table[models.Pawn])
	s.owner = make(map[models.ID]models.ID)
	s.digests = make(map[models.ID]uint64)
	for _, p := range snap.Pawns {
		if prev, ok := s.owner[p.ID]; ok && prev != p.ServerID {
			s.pawnTable(prev).remove(p.ID)
		}
		s.pawnTable(p.ServerID).put(p)
		s.owner[p.ID] = p.ServerID
	}
}

// LoadStatic replaces regions, areas, objectives, factions and servers and
// leaves the pawn sets alone.
func (s *Store) LoadStatic(snap Snapshot) {
	s.regions.load(snap.Regions)
	s.areas.load(snap.Areas)
	s.objectives.load(snap.Objectives)
	s.factions.load(snap.Factions)
	s.servers.load(snap.Servers)
	s.logger.Debug("Store loaded",
		log.Int("regions", s.regions.len()),
		log.Int("areas", s.areas.len()),
		log.Int("objectives", s.objectives.len()),
		log.Int("factions", s.factions.len()),
		log.Int("servers", s.servers.len()),
	)
}

// ApplyObjectiveFactionChange sets the owner of an objective. It reports false
// when the objective is unknown.
func (s *Store) ApplyObjectiveFactionChange(objectiveID, factionID models.ID) bool {
	obj := s.objectives.ptr(objectiveID)
	if obj == nil {
		return false
	}
	obj.FactionID = models.IDPtr(factionID)
	return true
}

// ApplyServerPawns replaces the pawn set of serverID. Pawns carrying another
// server id are attributed to serverID and duplicate ids keep the last entry.
func (s *Store) ApplyServerPawns(serverID models.ID, pawns []models.Pawn) PawnChange {
	next := newTable(func(p models.Pawn) models.ID { return p.ID })
	for _, p := range pawns {
		if p.ServerID != serverID {
			s.logger.Debug("Pawn attributed to broadcasting server",
				log.Int64("pawn", int64(p.ID)),
				log.Int64("claimed", int64(p.ServerID)),
				log.Int64("server", int64(serverID)),
			)
			p.ServerID = serverID
		}
		next.put(p)
	}

	current := next.all()
	prevTable := s.pawnTable(serverID)
	change := PawnChange{
		ServerID: serverID,
		Previous: prevTable.all(),
		Current:  current,
	}

	digest := digestPawns(current)
	if last, ok := s.digests[serverID]; ok && last == digest {
		change.Replayed = true
	}
	s.digests[serverID] = digest

	for _, p := range prevTable.rows {
		if s.owner[p.ID] == serverID {
			delete(s.owner, p.ID)
		}
	}
	for _, p := range current {
		if prev, ok := s.owner[p.ID]; ok && prev != serverID {
			s.pawnTable(prev).remove(p.ID)
			delete(s.digests, prev)
			if change.Migrated == nil {
				change.Migrated = make(map[models.ID]models.ID)
			}
			change.Migrated[p.ID] = prev
		}
		s.owner[p.ID] = serverID
	}
	s.pawns[serverID] = next

	return change
}

func (s *Store) pawnTable(serverID models.ID) *table[models.Pawn] {
	t, ok := s.pawns[serverID]
	if !ok {
		t = newTable(func(p models.Pawn) models.ID { return p.ID })
		s.pawns[serverID] = t
	}
	return t
}

func (s *Store) Regions() []models.Region       { return s.regions.all() }
func (s *Store) Areas() []models.Area           { return s.areas.all() }
func (s *Store) Objectives() []models.Objective { return s.objectives.all() }
func (s *Store) Factions() []models.Faction     { return s.factions.all() }
func (s *Store) Servers() []models.Server       { return s.servers.all() }

func (s *Store) Region(id models.ID) (models.Region, bool)       { return s.regions.get(id) }
func (s *Store) Area(id models.ID) (models.Area, bool)           { return s.areas.get(id) }
func (s *Store) Objective(id models.ID) (models.Objective, bool) { return s.objectives.get(id) }
func (s *Store) Faction(id models.ID) (models.Faction, bool)     { return s.factions.get(id) }
func (s *Store) Server(id models.ID) (models.Server, bool)       { return s.servers.get(id) }

// Pawns returns the current pawn set of a server.
func (s *Store) Pawns(serverID models.ID) []models.Pawn {
	if t, ok := s.pawns[serverID]; ok {
		return t.all()
	}
	return nil
}

// Pawn looks a pawn up across all servers.
func (s *Store) Pawn(id models.ID) (models.Pawn, bool) {
	serverID, ok := s.owner[id]
	if !ok {
		return models.Pawn{}, false
	}
	return s.pawns[serverID].get(id)
}

// AllPawns returns every pawn of every server, ordered by server id.
func (s *Store) AllPawns() []models.Pawn {
	servers := make([]models.ID, 0, len(s.pawns))
	for id := range s.pawns {
		servers = append(servers, id)
	}
	slices.Sort(servers)
	var out []models.Pawn
	for _, id := range servers {
		out = append(out, s.pawns[id].rows...)
	}
	return out
}

// PawnCounts returns the number of pawns per server.
func (s *Store) PawnCounts() map[models.ID]int {
	out := make(map[models.ID]int, len(s.pawns))
	for id, t := range s.pawns {
		if t.len() > 0 {
			out[id] = t.len()
		}
	}
	return out
}

// Counts summarises the cache for status reporting.
type Counts struct {
	Regions    int `json:"regions"`
	Areas      int `json:"areas"`
	Objectives int `json:"objectives"`
	Factions   int `json:"factions"`
	Servers    int `json:"servers"`
	Pawns      int `json:"pawns"`
}

func (s *Store) Counts() Counts {
	return Counts{
		Regions:    s.regions.len(),
		Areas:      s.areas.len(),
		Objectives: s.objectives.len(),
		Factions:   s.factions.len(),
		Servers:    s.servers.len(),
		Pawns:      len(s.owner),
	}
}

func digestPawns(pawns []models.Pawn) uint64 {
	d := xxhash.New()
	var buf [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	putU64(uint64(len(pawns)))
	for _, p := range pawns {
		putU64(uint64(p.ID))
		putU64(uint64(p.FactionID))
		putU64(math.Float64bits(p.X))
		putU64(math.Float64bits(p.Y))
		if p.Human {
			putU64(1)
		} else {
			putU64(0)
		}
		_, _ = d.WriteString(p.Name)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
