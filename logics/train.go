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

package logics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base/log"
	"github.com/litrev/litrev/model"
	"github.com/litrev/litrev/storage/artifact"
)

// ErrModelNotFound is returned when no trained model exists for a type.
var ErrModelNotFound = errors.NotFoundf("model")

// ModelOwnerKey returns the artifact owner key of a model type.
func ModelOwnerKey(t model.Type) string {
	return "models/" + string(t)
}

// ModelMeta is the metadata stored with a trained model artifact.
type ModelMeta struct {
	Type       model.Type             `json:"type"`
	Params     model.Params           `json:"params"`
	Validation model.ValidationResult `json:"validation"`
	TrainedAt  time.Time              `json:"trained_at"`
}

// TrainResult reports a completed training run.
type TrainResult struct {
	Artifact   *artifact.Artifact
	Validation model.ValidationResult
}

// Trainer fits models on the latest exported datasets and versions them in
// the artifact store.
type Trainer struct {
	artifacts *artifact.Store
}

// NewTrainer creates a trainer.
func NewTrainer(artifacts *artifact.Store) *Trainer {
	return &Trainer{artifacts: artifacts}
}

// Train cross-validates a model on the latest datasets, fits it on the full
// data and stores it as the latest model of its type. The stored file is
// named after the mean validation RMSE so model quality is visible from a
// directory listing.
func (t *Trainer) Train(ctx context.Context, modelType model.Type, params model.Params, verbose bool) (*TrainResult, error) {
	table, err := LoadTrainingTable(ctx, t.artifacts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	trainSet := model.PrepareTrainingData(table)
	if trainSet.Count() == 0 {
		return nil, errors.Annotatef(ErrDatasetMissing, "no usable training rows")
	}
	m, err := model.New(modelType, params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	config := model.NewFitConfig().SetVerbose(verbose)
	validation := model.CrossValidate(m, trainSet, model.DefaultCVFolds, 0, config)
	log.Logger().Info("cross validation complete",
		zap.String("model", string(modelType)),
		zap.Float32("mean_rmse", validation.MeanRMSE()),
		zap.Float32("mean_mae", validation.MeanMAE()))
	m.Fit(trainSet, config)

	buf := bytes.NewBuffer(nil)
	if err = m.Marshal(buf); err != nil {
		return nil, errors.Trace(err)
	}
	meta, err := json.Marshal(ModelMeta{
		Type:       modelType,
		Params:     m.GetParams(),
		Validation: validation,
		TrainedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	name := fmt.Sprintf("model-%d.bin", int(validation.MeanRMSE()*100))
	a, err := t.artifacts.Store(ctx, ModelOwnerKey(modelType), name, buf, string(meta), true)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("stored model",
		zap.String("model", string(modelType)),
		zap.String("artifact", a.ID),
		zap.String("name", name))
	return &TrainResult{Artifact: a, Validation: validation}, nil
}

// Handle is a loaded model bound to its artifact.
type Handle struct {
	Artifact *artifact.Artifact
	Model    model.Model
}

// LoadLatest loads the latest trained model of a type from the artifact
// store.
func LoadLatest(ctx context.Context, artifacts *artifact.Store, modelType model.Type) (*Handle, error) {
	a, err := artifacts.GetLatest(ctx, ModelOwnerKey(modelType))
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactMissing) {
			return nil, errors.Annotatef(ErrModelNotFound, "%s", modelType)
		}
		return nil, errors.Trace(err)
	}
	r, err := artifacts.OpenPayload(a)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactMissing) {
			return nil, errors.Annotatef(ErrModelNotFound, "payload of %s", modelType)
		}
		return nil, errors.Trace(err)
	}
	defer r.Close()
	m, err := model.New(modelType, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return &Handle{Artifact: a, Model: m}, nil
}
