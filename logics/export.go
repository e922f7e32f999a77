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

// Package logics implements the suggestion pipeline: dataset export, model
// training, suggestion generation and paper index maintenance.
package logics

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base/log"
	"github.com/litrev/litrev/dataset"
	"github.com/litrev/litrev/storage/artifact"
	"github.com/litrev/litrev/storage/data"
)

// Owner keys of exported datasets.
const (
	ReviewsDatasetKey = "exports/reviews"
	PapersDatasetKey  = "exports/papers"
)

// ErrDatasetMissing is returned when training is requested before any
// dataset export.
var ErrDatasetMissing = errors.NotFoundf("dataset")

// Exporter flattens the relational layer into versioned csv datasets.
type Exporter struct {
	database  data.Database
	artifacts *artifact.Store
}

// NewExporter creates an exporter.
func NewExporter(database data.Database, artifacts *artifact.Store) *Exporter {
	return &Exporter{database: database, artifacts: artifacts}
}

// ExportReviews stores active reviews as the latest reviews dataset.
func (e *Exporter) ExportReviews(ctx context.Context) (*artifact.Artifact, error) {
	reviews, err := e.database.ListActiveReviews(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	table := dataset.NewTable("userId", "paperId", "rating", "createdAt")
	for _, review := range reviews {
		if err = table.Append([]string{
			strconv.FormatInt(review.UserId, 10),
			strconv.FormatInt(review.PaperId, 10),
			strconv.FormatFloat(review.Rating, 'f', -1, 64),
			review.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return e.store(ctx, ReviewsDatasetKey, "reviews.csv", table)
}

// ExportPapers stores all papers as the latest papers dataset. The
// paperIndex column carries the dense position index used as the model item
// id; papers without one are exported with an empty field and dropped by
// training.
func (e *Exporter) ExportPapers(ctx context.Context) (*artifact.Artifact, error) {
	papers, err := e.database.ListPapers(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	table := dataset.NewTable("paperId", "paperIndex", "title", "publishedAt", "ratingAverage", "ratingCount")
	for _, paper := range papers {
		row := []string{
			strconv.FormatInt(paper.PaperId, 10),
			formatInt64Ptr(paper.PositionIndex),
			paper.Title,
			formatTimePtr(paper.PublishedAt),
			formatFloat64Ptr(paper.RatingAverage),
			formatInt64Ptr(paper.RatingCount),
		}
		if err = table.Append(row); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return e.store(ctx, PapersDatasetKey, "papers.csv", table)
}

func (e *Exporter) store(ctx context.Context, ownerKey, name string, table *dataset.Table) (*artifact.Artifact, error) {
	buf := bytes.NewBuffer(nil)
	if err := table.WriteCSV(buf); err != nil {
		return nil, errors.Trace(err)
	}
	meta, err := json.Marshal(map[string]int{"rows": table.Len()})
	if err != nil {
		return nil, errors.Trace(err)
	}
	a, err := e.artifacts.Store(ctx, ownerKey, name, buf, string(meta), true)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("exported dataset",
		zap.String("owner_key", ownerKey),
		zap.String("artifact", a.ID),
		zap.Int("rows", table.Len()))
	return a, nil
}

// LoadTrainingTable joins the latest reviews and papers datasets on paperId.
// Reviews of papers absent from the papers dataset are dropped by the join.
func LoadTrainingTable(ctx context.Context, artifacts *artifact.Store) (*dataset.Table, error) {
	reviews, err := loadDataset(ctx, artifacts, ReviewsDatasetKey)
	if err != nil {
		return nil, errors.Trace(err)
	}
	papers, err := loadDataset(ctx, artifacts, PapersDatasetKey)
	if err != nil {
		return nil, errors.Trace(err)
	}
	joined, err := reviews.InnerJoin(papers, "paperId")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return joined, nil
}

func loadDataset(ctx context.Context, artifacts *artifact.Store, ownerKey string) (*dataset.Table, error) {
	a, err := artifacts.GetLatest(ctx, ownerKey)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactMissing) {
			return nil, errors.Annotatef(ErrDatasetMissing, "%s", ownerKey)
		}
		return nil, errors.Trace(err)
	}
	r, err := artifacts.OpenPayload(a)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	table, err := dataset.ReadCSV(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return table, nil
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat64Ptr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTimePtr(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
