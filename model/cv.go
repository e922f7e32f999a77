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

package model

import (
	"reflect"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base/log"
)

// DefaultCVFolds is the fold count used by training pipelines.
const DefaultCVFolds = 4

// ValidationResult holds per-fold accuracy from cross validation.
type ValidationResult struct {
	RMSE []float32 `json:"rmse"`
	MAE  []float32 `json:"mae"`
}

// MeanRMSE returns the mean of per-fold RMSE.
func (r ValidationResult) MeanRMSE() float32 {
	return lo.Sum(r.RMSE) / float32(len(r.RMSE))
}

// MeanMAE returns the mean of per-fold MAE.
func (r ValidationResult) MeanMAE() float32 {
	return lo.Sum(r.MAE) / float32(len(r.MAE))
}

// CrossValidate evaluates a model by k-fold cross validation. Each fold fits
// a fresh clone of m so the caller's model stays untrained.
func CrossValidate(m Model, data *Dataset, k int, seed int64, config *FitConfig) ValidationResult {
	result := ValidationResult{
		RMSE: make([]float32, k),
		MAE:  make([]float32, k),
	}
	trainFolds, testFolds := data.KFold(k, seed)
	for i := 0; i < k; i++ {
		cloned := Clone(m)
		cloned.Fit(trainFolds[i], config)
		result.RMSE[i] = RMSE(cloned, testFolds[i])
		result.MAE[i] = MAE(cloned, testFolds[i])
		log.Logger().Debug("cross validation fold complete",
			zap.Int("fold", i),
			zap.Float32("rmse", result.RMSE[i]),
			zap.Float32("mae", result.MAE[i]))
	}
	return result
}

// Clone returns an untrained copy of m with the same hyper-parameters.
func Clone(m Model) Model {
	cloned := reflect.New(reflect.TypeOf(m).Elem()).Interface().(Model)
	cloned.SetParams(m.GetParams().Copy())
	return cloned
}
