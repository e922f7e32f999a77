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

// Package model implements rating prediction models for paper suggestion.
package model

import (
	"io"

	"github.com/juju/errors"
)

var (
	// ErrModelNotTrained is returned when prediction is requested before Fit.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrInvalidParams is returned for malformed or unknown hyper-parameters.
	ErrInvalidParams = errors.New("invalid hyper-parameters")
	// ErrUnknownModelType is returned when a model type has no registered constructor.
	ErrUnknownModelType = errors.NotFoundf("model type")
)

// Type identifies a model algorithm.
type Type string

const (
	// TypeSVD is biased matrix factorization fitted by SGD.
	TypeSVD Type = "svd"
)

// FitConfig controls the fitting procedure.
type FitConfig struct {
	Verbose bool
}

// NewFitConfig creates a default fit config.
func NewFitConfig() *FitConfig {
	return &FitConfig{}
}

// SetVerbose enables the progress bar during fitting.
func (config *FitConfig) SetVerbose(verbose bool) *FitConfig {
	config.Verbose = verbose
	return config
}

// Model is a rating predictor over (user, item) pairs.
type Model interface {
	// Type returns the algorithm identifier of this model.
	Type() Type
	// SetParams sets hyper-parameters.
	SetParams(params Params)
	// GetParams returns hyper-parameters.
	GetParams() Params
	// Fit trains the model on trainSet.
	Fit(trainSet *Dataset, config *FitConfig)
	// Predict estimates the rating of userId on itemId. ErrModelNotTrained is
	// returned before the first Fit.
	Predict(userId, itemId int64) (float32, error)
	// GetAccuracy returns the RMSE on the training set of the last Fit, or nil.
	GetAccuracy() *float32
	// Clear resets the model to the untrained state.
	Clear()
	// Marshal writes the trained model.
	Marshal(w io.Writer) error
	// Unmarshal reads a trained model.
	Unmarshal(r io.Reader) error
}

// New creates a model by type with the given hyper-parameters.
func New(t Type, params Params) (Model, error) {
	switch t {
	case TypeSVD:
		return NewSVD(params), nil
	default:
		return nil, errors.Annotatef(ErrUnknownModelType, "%v", t)
	}
}
