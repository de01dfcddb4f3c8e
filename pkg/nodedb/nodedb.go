// Package nodedb persists device snapshots, mesh nodes, and waypoints
// in a local SQLite database so tool calls can report on the mesh
// without holding a radio link open.
package nodedb

import (
	"database/sql"
	"fmt"
	"time"

	pb "github.com/meshtastic/go/generated"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS owner (
	id        INTEGER PRIMARY KEY,
	name      TEXT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS device_info (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	info_type TEXT UNIQUE,
	data      JSON,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS nodes (
	id                  TEXT PRIMARY KEY,
	long_name           TEXT,
	short_name          TEXT,
	hw_model            TEXT,
	role                TEXT,
	position_lat        REAL,
	position_lon        REAL,
	position_alt        INTEGER,
	battery_level       INTEGER,
	channel_utilization REAL,
	air_util_tx         REAL,
	snr                 REAL,
	hops_away           INTEGER,
	channel             INTEGER,
	last_heard          TIMESTAMP,
	node_data           JSON,
	created             TIMESTAMP,
	last_updated        DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS waypoints (
	id          INTEGER PRIMARY KEY,
	name        TEXT,
	description TEXT,
	latitude    REAL,
	longitude   REAL,
	expire      TIMESTAMP,
	created     DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// DB is a handle to the local node database.
type DB struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open node database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create node database schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// SaveOwner records the device owner name.
func (d *DB) SaveOwner(name string) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO owner (id, name, timestamp)
		VALUES (1, ?, CURRENT_TIMESTAMP)`, name)
	if err != nil {
		return fmt.Errorf("save owner: %w", err)
	}
	return nil
}

// SaveDeviceInfo stores one typed device record ("my_info",
// "metadata") as its JSON form, replacing the previous value.
func (d *DB) SaveDeviceInfo(infoType string, msg proto.Message) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", infoType, err)
	}
	_, err = d.db.Exec(`
		INSERT INTO device_info (info_type, data, timestamp)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(info_type) DO UPDATE SET
			data = excluded.data,
			timestamp = CURRENT_TIMESTAMP`, infoType, string(data))
	if err != nil {
		return fmt.Errorf("save %s: %w", infoType, err)
	}
	return nil
}

// UpsertNode inserts or refreshes one mesh node. The created
// timestamp of an existing row is preserved.
func (d *DB) UpsertNode(n *pb.NodeInfo) error {
	if n == nil {
		return nil
	}

	id := fmt.Sprintf("!%08x", n.Num)
	var longName, shortName, hwModel, role string
	if n.User != nil {
		longName = n.User.LongName
		shortName = n.User.ShortName
		hwModel = n.User.HwModel.String()
		role = n.User.Role.String()
	}

	var lat, lon float64
	var alt int32
	if n.Position != nil {
		lat = float64(n.Position.LatitudeI) / 1e7
		lon = float64(n.Position.LongitudeI) / 1e7
		alt = n.Position.Altitude
	}

	var battery uint32
	var chanUtil, airUtil float32
	if n.DeviceMetrics != nil {
		battery = n.DeviceMetrics.BatteryLevel
		chanUtil = n.DeviceMetrics.ChannelUtilization
		airUtil = n.DeviceMetrics.AirUtilTx
	}

	var lastHeard any
	if n.LastHeard > 0 {
		lastHeard = time.Unix(int64(n.LastHeard), 0).UTC().Format(time.RFC3339)
	}

	data, err := protojson.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", id, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = d.db.Exec(`
		INSERT INTO nodes (
			id, long_name, short_name, hw_model, role,
			position_lat, position_lon, position_alt,
			battery_level, channel_utilization, air_util_tx,
			snr, hops_away, channel, last_heard, node_data,
			created, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			long_name = excluded.long_name,
			short_name = excluded.short_name,
			hw_model = excluded.hw_model,
			role = excluded.role,
			position_lat = excluded.position_lat,
			position_lon = excluded.position_lon,
			position_alt = excluded.position_alt,
			battery_level = excluded.battery_level,
			channel_utilization = excluded.channel_utilization,
			air_util_tx = excluded.air_util_tx,
			snr = excluded.snr,
			hops_away = excluded.hops_away,
			channel = excluded.channel,
			last_heard = excluded.last_heard,
			node_data = excluded.node_data,
			last_updated = CURRENT_TIMESTAMP`,
		id, longName, shortName, hwModel, role,
		lat, lon, alt,
		battery, chanUtil, airUtil,
		n.Snr, n.HopsAway, n.Channel, lastHeard, string(data),
		now)
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", id, err)
	}
	return nil
}

// SaveSnapshot persists a full device snapshot: owner, my-info,
// metadata, and the node list.
func (d *DB) SaveSnapshot(owner string, myInfo *pb.MyNodeInfo, metadata *pb.DeviceMetadata, nodes []*pb.NodeInfo) error {
	if owner != "" {
		if err := d.SaveOwner(owner); err != nil {
			return err
		}
	}
	if myInfo != nil {
		if err := d.SaveDeviceInfo("my_info", myInfo); err != nil {
			return err
		}
	}
	if metadata != nil {
		if err := d.SaveDeviceInfo("metadata", metadata); err != nil {
			return err
		}
	}
	for _, n := range nodes {
		if err := d.UpsertNode(n); err != nil {
			return err
		}
	}
	return nil
}

// NodeRecord is a row of the nodes table.
type NodeRecord struct {
	ID        string
	LongName  string
	ShortName string
	HwModel   string
	Role      string
	Latitude  float64
	Longitude float64
	Altitude  int64
	Battery   int64
	SNR       float64
	HopsAway  int64
	LastHeard string
}

// Nodes returns the stored nodes, most recently heard first.
func (d *DB) Nodes() ([]NodeRecord, error) {
	rows, err := d.db.Query(`
		SELECT id, long_name, short_name, hw_model, role,
		       position_lat, position_lon, position_alt,
		       battery_level, snr, hops_away,
		       COALESCE(last_heard, '')
		FROM nodes
		ORDER BY last_heard DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []NodeRecord
	for rows.Next() {
		var n NodeRecord
		err := rows.Scan(&n.ID, &n.LongName, &n.ShortName, &n.HwModel, &n.Role,
			&n.Latitude, &n.Longitude, &n.Altitude,
			&n.Battery, &n.SNR, &n.HopsAway, &n.LastHeard)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SaveWaypoint records a waypoint that was sent to the mesh.
func (d *DB) SaveWaypoint(wp *pb.Waypoint) error {
	var expire any
	if wp.Expire > 1 {
		expire = time.Unix(int64(wp.Expire), 0).UTC().Format(time.RFC3339)
	}
	_, err := d.db.Exec(`
		INSERT INTO waypoints (id, name, description, latitude, longitude, expire)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			expire = excluded.expire`,
		wp.Id, wp.Name, wp.Description,
		float64(wp.LatitudeI)/1e7, float64(wp.LongitudeI)/1e7, expire)
	if err != nil {
		return fmt.Errorf("save waypoint %d: %w", wp.Id, err)
	}
	return nil
}

// DeleteWaypoint removes a waypoint record.
func (d *DB) DeleteWaypoint(id uint32) error {
	_, err := d.db.Exec(`DELETE FROM waypoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete waypoint %d: %w", id, err)
	}
	return nil
}

// WaypointRecord is a row of the waypoints table.
type WaypointRecord struct {
	ID          uint32
	Name        string
	Description string
	Latitude    float64
	Longitude   float64
	Expire      string
}

// Waypoints returns the recorded waypoints ordered by ID.
func (d *DB) Waypoints() ([]WaypointRecord, error) {
	rows, err := d.db.Query(`
		SELECT id, name, description, latitude, longitude, COALESCE(expire, '')
		FROM waypoints
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query waypoints: %w", err)
	}
	defer rows.Close()

	var out []WaypointRecord
	for rows.Next() {
		var w WaypointRecord
		err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.Latitude, &w.Longitude, &w.Expire)
		if err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
