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
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database Database
	Store    *Store
}

func (suite *baseTestSuite) TestLatestUniqueness() {
	ctx := context.Background()
	// every store marks latest, only the last one survives
	for i := 0; i < 5; i++ {
		payload := bytes.NewReader([]byte(fmt.Sprintf("payload %d", i)))
		_, err := suite.Store.Store(ctx, "exports/reviews", "reviews.csv", payload, "", true)
		suite.NoError(err)
	}
	artifacts, err := suite.Store.List(ctx, "exports/reviews")
	suite.NoError(err)
	suite.Len(artifacts, 5)
	suite.Len(lo.Filter(artifacts, func(a *Artifact, _ int) bool { return a.Latest }), 1)
	// the canonical latest location holds the last payload
	latest, err := suite.Store.GetLatest(ctx, "exports/reviews")
	suite.NoError(err)
	r, err := suite.Store.OpenPayload(latest)
	suite.NoError(err)
	content, err := io.ReadAll(r)
	suite.NoError(err)
	suite.NoError(r.Close())
	suite.Equal("payload 4", string(content))
}

func (suite *baseTestSuite) TestConcurrentStore() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.NewReader([]byte(fmt.Sprintf("model %d", i)))
			_, err := suite.Store.Store(ctx, "models/svd", fmt.Sprintf("model-%d.bin", i), payload, "", true)
			suite.NoError(err)
		}(i)
	}
	wg.Wait()
	artifacts, err := suite.Store.List(ctx, "models/svd")
	suite.NoError(err)
	suite.Len(artifacts, 8)
	suite.Len(lo.Filter(artifacts, func(a *Artifact, _ int) bool { return a.Latest }), 1)
}

func (suite *baseTestSuite) TestDisjointOwnerKeys() {
	ctx := context.Background()
	_, err := suite.Store.Store(ctx, "exports/papers", "papers.csv", bytes.NewReader([]byte("a")), "", true)
	suite.NoError(err)
	_, err = suite.Store.Store(ctx, "exports/reviews", "reviews.csv", bytes.NewReader([]byte("b")), "", true)
	suite.NoError(err)
	// both keys keep their own latest
	for _, key := range []string{"exports/papers", "exports/reviews"} {
		latest, err := suite.Store.GetLatest(ctx, key)
		suite.NoError(err)
		suite.True(latest.Latest)
	}
}

func (suite *baseTestSuite) TestStoreWithoutMarkLatest() {
	ctx := context.Background()
	_, err := suite.Store.Store(ctx, "models/svd", "model-0.bin", bytes.NewReader([]byte("a")), "", false)
	suite.NoError(err)
	_, err = suite.Store.GetLatest(ctx, "models/svd")
	suite.ErrorIs(err, ErrArtifactMissing)
}

func (suite *baseTestSuite) TestDeleteLatest() {
	ctx := context.Background()
	a, err := suite.Store.Store(ctx, "models/svd", "model-93.bin", bytes.NewReader([]byte("weights")), "", true)
	suite.NoError(err)
	suite.NoError(suite.Store.Delete(ctx, a))
	// no latest until the next store
	_, err = suite.Store.GetLatest(ctx, "models/svd")
	suite.ErrorIs(err, ErrArtifactMissing)
	// the payload is gone with the artifact
	_, err = suite.Store.OpenPayload(a)
	suite.ErrorIs(err, ErrArtifactMissing)
}

func (suite *baseTestSuite) TestGetLatestMissing() {
	_, err := suite.Store.GetLatest(context.Background(), "models/unknown")
	suite.ErrorIs(err, ErrArtifactMissing)
}

func (suite *baseTestSuite) TestMetadataRoundTrip() {
	ctx := context.Background()
	meta := `{"type":"svd","params":{"NEpochs":20}}`
	stored, err := suite.Store.Store(ctx, "models/svd", "model-87.bin", bytes.NewReader([]byte("weights")), meta, true)
	suite.NoError(err)
	fetched, err := suite.Database.Get(ctx, stored.ID)
	suite.NoError(err)
	suite.Equal(meta, fetched.Meta)
	suite.Equal(stored.Name, fetched.Name)
}
