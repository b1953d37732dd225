// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package statestore persists the engine's carried state between
// process restarts, and keeps a fault-event log for the operator UI.
// The engine itself never touches this package: the supervisor saves
// and restores on its behalf.
package statestore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"coolplant/internal/engine"
)

type FaultEvent struct {
	ID        string
	Condition string
	Alarm     string
	RaisedAt  time.Time
}

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	schema := `
CREATE TABLE IF NOT EXISTS carried_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    saved_at TEXT NOT NULL,
    state TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fault_events (
    id TEXT PRIMARY KEY,
    condition TEXT NOT NULL,
    alarm TEXT NOT NULL,
    raised_at TEXT NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveState replaces the single persisted state row.
func (s *Store) SaveState(st *engine.State) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
INSERT INTO carried_state (id, saved_at, state) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, state = excluded.state`,
		time.Now().UTC().Format(time.RFC3339), string(blob))
	return err
}

// LoadState returns the persisted state, or nil if none was saved.
func (s *Store) LoadState() (*engine.State, error) {
	var blob string
	err := s.db.QueryRow(`SELECT state FROM carried_state WHERE id = 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st engine.State
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) RecordFault(condition, alarm string, raisedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO fault_events (id, condition, alarm, raised_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), condition, alarm, raisedAt.UTC().Format(time.RFC3339))
	return err
}

// RecentFaults returns up to limit fault events, newest first.
func (s *Store) RecentFaults(limit int) ([]FaultEvent, error) {
	rows, err := s.db.Query(`
SELECT id, condition, alarm, raised_at FROM fault_events
ORDER BY raised_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FaultEvent
	for rows.Next() {
		var ev FaultEvent
		var ts string
		if err := rows.Scan(&ev.ID, &ev.Condition, &ev.Alarm, &ts); err != nil {
			return nil, err
		}
		ev.RaisedAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}
