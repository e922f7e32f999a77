// Copyright 2025 litrev Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifact

import (
	"context"
	"database/sql"

	"github.com/juju/errors"
	_ "modernc.org/sqlite"
)

func openSQLite(dataSourceName string) (*sql.DB, error) {
	return sql.Open("sqlite", dataSourceName)
}

type SQLite struct {
	db *sql.DB
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Init() error {
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	owner_key TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	latest INTEGER NOT NULL DEFAULT 0,
	meta TEXT NOT NULL DEFAULT ''
);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`
CREATE INDEX IF NOT EXISTS artifacts_owner_key ON artifacts (owner_key, latest);
`); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (s *SQLite) Insert(ctx context.Context, artifact *Artifact, markLatest bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err = tx.ExecContext(ctx, `
INSERT INTO artifacts (id, owner_key, name, created_at, latest, meta)
VALUES (?, ?, ?, ?, ?, ?)
`, artifact.ID, artifact.OwnerKey, artifact.Name, artifact.CreatedAt.UTC(), markLatest, artifact.Meta); err != nil {
		return errors.Trace(err)
	}
	if markLatest {
		// demote every other artifact under the same owner key
		if _, err = tx.ExecContext(ctx, `
UPDATE artifacts SET latest = 0 WHERE owner_key = ? AND id <> ?
`, artifact.OwnerKey, artifact.ID); err != nil {
			return errors.Trace(err)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Trace(err)
	}
	artifact.Latest = markLatest
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, owner_key, name, created_at, latest, meta FROM artifacts WHERE id = ?
`, id)
	return scanArtifact(row)
}

func (s *SQLite) GetLatest(ctx context.Context, ownerKey string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, owner_key, name, created_at, latest, meta FROM artifacts
WHERE owner_key = ? AND latest = 1
ORDER BY created_at DESC LIMIT 1
`, ownerKey)
	return scanArtifact(row)
}

func (s *SQLite) List(ctx context.Context, ownerKey string) ([]*Artifact, error) {
	rs, err := s.db.QueryContext(ctx, `
SELECT id, owner_key, name, created_at, latest, meta FROM artifacts
WHERE owner_key = ?
ORDER BY created_at DESC
`, ownerKey)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var artifacts []*Artifact
	for rs.Next() {
		var a Artifact
		if err = rs.Scan(&a.ID, &a.OwnerKey, &a.Name, &a.CreatedAt, &a.Latest, &a.Meta); err != nil {
			return nil, errors.Trace(err)
		}
		artifacts = append(artifacts, &a)
	}
	return artifacts, errors.Trace(rs.Err())
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	return errors.Trace(err)
}

func scanArtifact(row *sql.Row) (*Artifact, error) {
	var a Artifact
	if err := row.Scan(&a.ID, &a.OwnerKey, &a.Name, &a.CreatedAt, &a.Latest, &a.Meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArtifactMissing
		}
		return nil, errors.Trace(err)
	}
	return &a, nil
}
