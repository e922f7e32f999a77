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
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/litrev/litrev/storage/blob"
)

// LatestPath returns the canonical blob location of the latest payload for
// an owner key. The extension follows the stored file name.
func LatestPath(ownerKey, name string) string {
	return ownerKey + "/latest" + path.Ext(name)
}

// keyedMutex serializes critical sections per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*sync.Mutex)
	}
	lock, exist := km.locks[key]
	if !exist {
		lock = new(sync.Mutex)
		km.locks[key] = lock
	}
	km.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// Store combines artifact metadata with a payload store. Marking an
// artifact latest is a critical section per owner key: the payload is
// copied to the canonical latest location and the previous latest is
// demoted inside one transaction, so concurrent stores under the same key
// cannot both end up latest.
type Store struct {
	database Database
	blobs    blob.Store
	latest   keyedMutex
}

func NewStore(database Database, blobs blob.Store) *Store {
	return &Store{database: database, blobs: blobs}
}

// Store persists a payload as a new artifact under an owner key. With
// markLatest set, the new artifact becomes the single latest artifact for
// the key. The latest flip is always the final step, so a failure while
// writing the payload never exposes a corrupt latest artifact.
func (s *Store) Store(ctx context.Context, ownerKey, name string, payload io.Reader, meta string, markLatest bool) (*Artifact, error) {
	a := &Artifact{
		ID:        uuid.NewString(),
		OwnerKey:  ownerKey,
		Name:      name,
		CreatedAt: time.Now(),
		Meta:      meta,
	}
	if err := s.writeBlob(a.Path(), payload); err != nil {
		return nil, errors.Trace(err)
	}
	if !markLatest {
		if err := s.database.Insert(ctx, a, false); err != nil {
			return nil, errors.Trace(err)
		}
		return a, nil
	}
	unlock := s.latest.Lock(ownerKey)
	defer unlock()
	// copy the payload to the canonical latest location
	r, err := s.blobs.Open(a.Path())
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	if err = s.writeBlob(LatestPath(ownerKey, name), r); err != nil {
		return nil, errors.Trace(err)
	}
	// insert the new artifact and demote the previous latest
	if err = s.database.Insert(ctx, a, true); err != nil {
		return nil, errors.Trace(err)
	}
	return a, nil
}

// GetLatest returns the latest artifact for an owner key.
func (s *Store) GetLatest(ctx context.Context, ownerKey string) (*Artifact, error) {
	return s.database.GetLatest(ctx, ownerKey)
}

// List returns artifacts under an owner key, newest first.
func (s *Store) List(ctx context.Context, ownerKey string) ([]*Artifact, error) {
	return s.database.List(ctx, ownerKey)
}

// OpenPayload opens the payload of an artifact for reading. A row whose
// blob has gone missing reports ErrArtifactMissing rather than a bare
// filesystem error.
func (s *Store) OpenPayload(a *Artifact) (io.ReadCloser, error) {
	exists, err := s.blobs.Exists(a.Path())
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !exists {
		return nil, errors.Annotatef(ErrArtifactMissing, "payload of %s", a.ID)
	}
	return s.blobs.Open(a.Path())
}

// Delete removes an artifact and its payload. Deleting the current latest
// leaves the owner key with no latest artifact until the next store.
func (s *Store) Delete(ctx context.Context, a *Artifact) error {
	unlock := s.latest.Lock(a.OwnerKey)
	defer unlock()
	if err := s.blobs.Delete(a.Path()); err != nil {
		return errors.Trace(err)
	}
	if a.Latest {
		if err := s.blobs.Delete(LatestPath(a.OwnerKey, a.Name)); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.database.Delete(ctx, a.ID))
}

func (s *Store) writeBlob(name string, payload io.Reader) error {
	w, done, err := s.blobs.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = io.Copy(w, payload); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	<-done
	return nil
}
