// Copyright 2016 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sessiondb archives processed sessions and their interval tables in a SQLite database.
package sessiondb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/powdroid/powdroid/table"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	device TEXT NOT NULL,
	created_ms INTEGER NOT NULL,
	start_time INTEGER NOT NULL,  -- window start, Unix ms
	end_time INTEGER NOT NULL,    -- window stop, Unix ms
	intervals INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	consumed_charge_mah REAL NOT NULL,
	energy_j REAL NOT NULL,
	mean_power_w REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS intervals (
	session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	voltage_mv REAL NOT NULL,
	remaining_charge_mah REAL NOT NULL,
	intensity_ma REAL NOT NULL,
	power_w REAL NOT NULL,
	consumed_charge_mah REAL NOT NULL,
	energy_j REAL NOT NULL,
	top_app TEXT NOT NULL,
	screen INTEGER NOT NULL,
	gps INTEGER NOT NULL,
	mobile_radio INTEGER NOT NULL,
	wifi INTEGER NOT NULL,
	wifi_radio INTEGER NOT NULL,
	camera INTEGER NOT NULL,
	video INTEGER NOT NULL,
	audio INTEGER NOT NULL,
	wakelock_in TEXT NOT NULL,
	voltage_resolved INTEGER NOT NULL,
	current_resolved INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intervals_session ON intervals(session_id, start_time);
`

const intervalColumns = `start_time, end_time, duration_ms, voltage_mv, remaining_charge_mah, intensity_ma,
	power_w, consumed_charge_mah, energy_j, top_app, screen, gps, mobile_radio, wifi, wifi_radio,
	camera, video, audio, wakelock_in, voltage_resolved, current_resolved`

// Session describes one archived session.
type Session struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Device  string    `json:"device"`
	Created time.Time `json:"created"`
	// StartMs and EndMs bound the processed window.
	StartMs     int64   `json:"start_time"`
	EndMs       int64   `json:"end_time"`
	Intervals   int     `json:"intervals"`
	DurationMs  int64   `json:"duration_ms"`
	ConsumedMAh float64 `json:"consumed_charge_mah"`
	EnergyJ     float64 `json:"energy_j"`
	MeanPowerW  float64 `json:"mean_power_w"`
}

// DB is a session archive.
type DB struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens the archive at path, creating the file and its schema when missing.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database at %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// Path returns the database file name.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Save stores s with the rows of t and returns the new session ID.
// The totals of s are taken from t; s.StartMs and s.EndMs are kept as given.
func (d *DB) Save(ctx context.Context, s Session, t *table.Table) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sum := t.Summary()
	if s.Created.IsZero() {
		s.Created = time.Now()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO sessions (name, device, created_ms, start_time, end_time, intervals,
		duration_ms, consumed_charge_mah, energy_j, mean_power_w)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Device, s.Created.UnixMilli(), s.StartMs, s.EndMs, sum.Intervals,
		sum.DurationMs, sum.ConsumedMAh, sum.EnergyJ, sum.MeanPowerW)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO intervals (session_id, `+intervalColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare interval insert: %w", err)
	}
	defer stmt.Close()
	for i, r := range t.Records() {
		if _, err := stmt.ExecContext(ctx, id,
			r.StartMs, r.EndMs, r.DurationMs, r.VoltageMV, r.RemainingChargeMAh, r.IntensityMA,
			r.PowerW, r.ConsumedMAh, r.EnergyJ, r.TopApp, r.Screen, r.GPS, r.MobileRadio, r.Wifi, r.WifiRadio,
			r.Camera, r.Video, r.Audio, r.WakelockIn, r.VoltageResolved, r.CurrentResolved,
		); err != nil {
			return 0, fmt.Errorf("failed to insert interval %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

// List returns every archived session, oldest first.
func (d *DB) List(ctx context.Context) ([]Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, `
	SELECT id, name, device, created_ms, start_time, end_time, intervals,
		duration_ms, consumed_charge_mah, energy_j, mean_power_w
	FROM sessions
	ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var created int64
		if err := rows.Scan(&s.ID, &s.Name, &s.Device, &created, &s.StartMs, &s.EndMs, &s.Intervals,
			&s.DurationMs, &s.ConsumedMAh, &s.EnergyJ, &s.MeanPowerW); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.Created = time.UnixMilli(created)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Intervals returns the rows of session id in time order.
// An unknown session gives no rows and no error.
func (d *DB) Intervals(ctx context.Context, id int64) ([]table.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, `SELECT `+intervalColumns+`
	FROM intervals
	WHERE session_id = ?
	ORDER BY start_time`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals of session %d: %w", id, err)
	}
	defer rows.Close()

	var out []table.Record
	for rows.Next() {
		var r table.Record
		if err := rows.Scan(&r.StartMs, &r.EndMs, &r.DurationMs, &r.VoltageMV, &r.RemainingChargeMAh, &r.IntensityMA,
			&r.PowerW, &r.ConsumedMAh, &r.EnergyJ, &r.TopApp, &r.Screen, &r.GPS, &r.MobileRadio, &r.Wifi, &r.WifiRadio,
			&r.Camera, &r.Video, &r.Audio, &r.WakelockIn, &r.VoltageResolved, &r.CurrentResolved); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
