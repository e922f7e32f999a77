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

// Package artifact implements versioned binary storage keyed by an owner
// key. For every owner key at most one artifact is marked latest.
package artifact

import (
	"context"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"

	"github.com/litrev/litrev/storage"
)

var ErrArtifactMissing = errors.NotFoundf("artifact")

// Artifact is the metadata record of a stored payload. The payload itself
// lives in the blob store under Path().
type Artifact struct {
	ID        string
	OwnerKey  string
	Name      string
	CreatedAt time.Time
	Latest    bool
	Meta      string
}

// Path returns the blob location of the artifact payload.
func (a *Artifact) Path() string {
	return a.OwnerKey + "/" + a.ID + "/" + a.Name
}

// Database is the interface of artifact metadata storage.
type Database interface {
	Close() error
	Init() error
	// Insert persists an artifact. When markLatest is set, the insert and
	// the demotion of every other artifact under the same owner key run in
	// one transaction.
	Insert(ctx context.Context, artifact *Artifact, markLatest bool) error
	Get(ctx context.Context, id string) (*Artifact, error)
	// GetLatest returns the latest artifact for an owner key, or
	// ErrArtifactMissing if there is none.
	GetLatest(ctx context.Context, ownerKey string) (*Artifact, error)
	// List returns artifacts under an owner key, newest first.
	List(ctx context.Context, ownerKey string) ([]*Artifact, error)
	Delete(ctx context.Context, id string) error
}

// Open a connection to an artifact metadata database.
func Open(path string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.SQLitePrefix) {
		dataSourceName := path[len(storage.SQLitePrefix):]
		// append parameters
		if dataSourceName, err = storage.AppendURLParams(dataSourceName, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLite)
		if database.db, err = openSQLite(dataSourceName); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
