// Package sqlite keeps an offline copy of the world catalog for kiosk
// deployments that run without the backend API.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/storage"
	"github.com/zeusync/mapsync/internal/core/store"
)

var _ storage.Lister = (*DB)(nil)

type DB struct {
	conn   *sqlx.DB
	logger log.Log
}

// Open opens or creates the catalog database at path.
func Open(path string, logger log.Log) (*DB, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	conn, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, logger: logger.With(log.String("component", "sqlite"))}
	if err = db.migrate(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS areas (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		region_id INTEGER NOT NULL DEFAULT 0,
		x REAL NOT NULL,
		y REAL NOT NULL,
		size_x REAL NOT NULL,
		size_y REAL NOT NULL,
		server_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS objectives (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		faction_id INTEGER,
		linked_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS factions (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS servers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		area_ids_json TEXT NOT NULL,
		web_socket_url TEXT NOT NULL,
		public_ip TEXT NOT NULL,
		public_web_socket_port INTEGER NOT NULL,
		map_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pawns (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		faction_id INTEGER NOT NULL,
		server_id INTEGER NOT NULL,
		human INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pawns_server ON pawns(server_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type objectiveRow struct {
	ID         models.ID     `db:"id"`
	Name       string        `db:"name"`
	X          float64       `db:"x"`
	Y          float64       `db:"y"`
	FactionID  sql.NullInt64 `db:"faction_id"`
	LinkedJSON string        `db:"linked_json"`
}

type serverRow struct {
	ID                  models.ID `db:"id"`
	Name                string    `db:"name"`
	X                   float64   `db:"x"`
	Y                   float64   `db:"y"`
	AreaIDsJSON         string    `db:"area_ids_json"`
	WebSocketURL        string    `db:"web_socket_url"`
	PublicIP            string    `db:"public_ip"`
	PublicWebSocketPort int       `db:"public_web_socket_port"`
	MapName             string    `db:"map_name"`
}

// Save replaces the whole catalog in one transaction.
func (db *DB) Save(ctx context.Context, snap store.Snapshot) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	for _, table := range []string{"regions", "areas", "objectives", "factions", "servers", "pawns"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}

	if err = insertAll(ctx, tx, `INSERT INTO regions (id, name, x, y) VALUES (:id, :name, :x, :y)`, snap.Regions); err != nil {
		return errors.Wrap(err, "save regions")
	}
	if err = insertAll(ctx, tx, `INSERT INTO areas (id, name, region_id, x, y, size_x, size_y, server_id)
		VALUES (:id, :name, :region_id, :x, :y, :size_x, :size_y, :server_id)`, snap.Areas); err != nil {
		return errors.Wrap(err, "save areas")
	}
	if err = insertAll(ctx, tx, `INSERT INTO factions (id, name, color) VALUES (:id, :name, :color)`, snap.Factions); err != nil {
		return errors.Wrap(err, "save factions")
	}
	if err = insertAll(ctx, tx, `INSERT INTO pawns (id, name, x, y, faction_id, server_id, human)
		VALUES (:id, :name, :x, :y, :faction_id, :server_id, :human)`, snap.Pawns); err != nil {
		return errors.Wrap(err, "save pawns")
	}

	objectives := make([]objectiveRow, 0, len(snap.Objectives))
	for _, o := range snap.Objectives {
		row := objectiveRow{ID: o.ID, Name: o.Name, X: o.X, Y: o.Y, LinkedJSON: encodeIDs(o.LinkedObjectiveIDs)}
		if o.FactionID != nil {
			row.FactionID = sql.NullInt64{Int64: int64(*o.FactionID), Valid: true}
		}
		objectives = append(objectives, row)
	}
	if err = insertAll(ctx, tx, `INSERT INTO objectives (id, name, x, y, faction_id, linked_json)
		VALUES (:id, :name, :x, :y, :faction_id, :linked_json)`, objectives); err != nil {
		return errors.Wrap(err, "save objectives")
	}

	servers := make([]serverRow, 0, len(snap.Servers))
	for _, s := range snap.Servers {
		servers = append(servers, serverRow{
			ID: s.ID, Name: s.Name, X: s.X, Y: s.Y,
			AreaIDsJSON:         encodeIDs(s.AreaIDs),
			WebSocketURL:        s.WebSocketURL,
			PublicIP:            s.PublicIP,
			PublicWebSocketPort: s.PublicWebSocketPort,
			MapName:             s.MapName,
		})
	}
	if err = insertAll(ctx, tx, `INSERT INTO servers (id, name, x, y, area_ids_json, web_socket_url, public_ip, public_web_socket_port, map_name)
		VALUES (:id, :name, :x, :y, :area_ids_json, :web_socket_url, :public_ip, :public_web_socket_port, :map_name)`, servers); err != nil {
		return errors.Wrap(err, "save servers")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	db.logger.Info("Catalog saved",
		log.Int("areas", len(snap.Areas)),
		log.Int("objectives", len(snap.Objectives)),
		log.Int("servers", len(snap.Servers)),
	)
	return nil
}

func insertAll[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return err
		}
	}
	return nil
}

func encodeIDs(ids []models.ID) string {
	if ids == nil {
		ids = []models.ID{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func decodeIDs(data string) ([]models.ID, error) {
	var ids []models.ID
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (db *DB) Regions(ctx context.Context) ([]models.Region, error) {
	var out []models.Region
	err := db.conn.SelectContext(ctx, &out, `SELECT id, name, x, y FROM regions ORDER BY id`)
	return out, errors.Wrap(err, "select regions")
}

func (db *DB) Areas(ctx context.Context) ([]models.Area, error) {
	var out []models.Area
	err := db.conn.SelectContext(ctx, &out, `SELECT id, name, region_id, x, y, size_x, size_y, server_id FROM areas ORDER BY id`)
	return out, errors.Wrap(err, "select areas")
}

func (db *DB) Factions(ctx context.Context) ([]models.Faction, error) {
	var out []models.Faction
	err := db.conn.SelectContext(ctx, &out, `SELECT id, name, color FROM factions ORDER BY id`)
	return out, errors.Wrap(err, "select factions")
}

func (db *DB) Pawns(ctx context.Context) ([]models.Pawn, error) {
	var out []models.Pawn
	err := db.conn.SelectContext(ctx, &out, `SELECT id, name, x, y, faction_id, server_id, human FROM pawns ORDER BY server_id, id`)
	return out, errors.Wrap(err, "select pawns")
}

func (db *DB) Objectives(ctx context.Context) ([]models.Objective, error) {
	var rows []objectiveRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT id, name, x, y, faction_id, linked_json FROM objectives ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "select objectives")
	}
	out := make([]models.Objective, 0, len(rows))
	for _, r := range rows {
		linked, err := decodeIDs(r.LinkedJSON)
		if err != nil {
			return nil, errors.Wrapf(err, "objective %d links", r.ID)
		}
		o := models.Objective{ID: r.ID, Name: r.Name, X: r.X, Y: r.Y, LinkedObjectiveIDs: linked}
		if r.FactionID.Valid {
			o.FactionID = models.IDPtr(models.ID(r.FactionID.Int64))
		}
		out = append(out, o)
	}
	return out, nil
}

func (db *DB) Servers(ctx context.Context) ([]models.Server, error) {
	var rows []serverRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT id, name, x, y, area_ids_json, web_socket_url, public_ip,
		public_web_socket_port, map_name FROM servers ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "select servers")
	}
	out := make([]models.Server, 0, len(rows))
	for _, r := range rows {
		areas, err := decodeIDs(r.AreaIDsJSON)
		if err != nil {
			return nil, errors.Wrapf(err, "server %d areas", r.ID)
		}
		out = append(out, models.Server{
			ID: r.ID, Name: r.Name, X: r.X, Y: r.Y,
			AreaIDs:             areas,
			WebSocketURL:        r.WebSocketURL,
			PublicIP:            r.PublicIP,
			PublicWebSocketPort: r.PublicWebSocketPort,
			MapName:             r.MapName,
		})
	}
	return out, nil
}
