// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlio persists grouped results in a SQLite database, one set of
// rows per run, so results of successive runs can be queried and compared.
package sqlio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"lostluck.dev/jobsched"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at DATETIME,
	keys INTEGER,
	records INTEGER
);
CREATE TABLE IF NOT EXISTS run_groups (
	run_id TEXT,
	group_key TEXT,
	value_count INTEGER,
	PRIMARY KEY (run_id, group_key)
);
CREATE TABLE IF NOT EXISTS run_values (
	run_id TEXT,
	group_key TEXT,
	seq INTEGER,
	value TEXT,
	PRIMARY KEY (run_id, group_key, seq)
);
`

// Store is a SQLite database holding the results of runs.
type Store struct {
	path string
	db   *sql.DB
}

// Open opens or creates the database at path and ensures its tables exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlio: opening %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "sqlio: creating tables in %s", path)
	}
	return &Store{path: path, db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run summarizes one stored run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Keys      int
	Records   int
}

// Runs lists the stored runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, keys, records FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlio")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Keys, &r.Records); err != nil {
			return nil, errors.Wrap(err, "sqlio")
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "sqlio")
}

// Counts returns the number of values per key stored for a run.
func (s *Store) Counts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_key, value_count FROM run_groups WHERE run_id = ?`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlio")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, errors.Wrap(err, "sqlio")
		}
		counts[k] = n
	}
	return counts, errors.Wrap(rows.Err(), "sqlio")
}

// Values decodes the values stored under key for a run, in grouped order.
func Values[V any](ctx context.Context, s *Store, runID, key string) ([]V, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM run_values WHERE run_id = ? AND group_key = ? ORDER BY seq`, runID, key)
	if err != nil {
		return nil, errors.Wrap(err, "sqlio")
	}
	defer rows.Close()

	var vs []V
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "sqlio")
		}
		var v V
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, errors.Wrapf(err, "sqlio: decoding value of %s", key)
		}
		vs = append(vs, v)
	}
	return vs, errors.Wrap(rows.Err(), "sqlio")
}

// Sink returns a Sink storing each grouped result in s under the id of the
// run that produced it. Keys are stored in their fmt form and values as
// JSON. With values unset only per key counts are kept.
func Sink[K jobsched.Keys, V any](s *Store, values bool) jobsched.Sink[K, V] {
	return jobsched.SinkFunc[K, V](func(ctx context.Context, g *jobsched.Grouped[K, V]) error {
		if err := store(ctx, s, g, values); err != nil {
			return &jobsched.SinkOutputError{Sink: s.path, Err: err}
		}
		return nil
	})
}

// store writes g in a single transaction, so a failed write leaves no
// trace of the run.
func store[K jobsched.Keys, V any](ctx context.Context, s *Store, g *jobsched.Grouped[K, V], values bool) error {
	runID := jobsched.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := insert(ctx, tx, runID, g, values); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insert[K jobsched.Keys, V any](ctx context.Context, tx *sql.Tx, runID string, g *jobsched.Grouped[K, V], values bool) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (id, created_at, keys, records) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UTC(), g.Len(), g.Total()); err != nil {
		return err
	}
	grp, err := tx.PrepareContext(ctx, `INSERT INTO run_groups (run_id, group_key, value_count) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer grp.Close()
	val, err := tx.PrepareContext(ctx, `INSERT INTO run_values (run_id, group_key, seq, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer val.Close()

	for k, vs := range g.All() {
		key := fmt.Sprint(k)
		if _, err := grp.ExecContext(ctx, runID, key, len(vs)); err != nil {
			return err
		}
		if !values {
			continue
		}
		for i, v := range vs {
			raw, err := json.Marshal(v, json.Deterministic(true))
			if err != nil {
				return errors.Wrapf(err, "encoding value of %s", key)
			}
			if _, err := val.ExecContext(ctx, runID, key, i, string(raw)); err != nil {
				return err
			}
		}
	}
	return nil
}
