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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syntheticDataset rates every (user, item) pair of a small grid from user
// and item biases, so a bias model fits it exactly.
func syntheticDataset(nUsers, nItems int) *Dataset {
	users := make([]int64, 0, nUsers*nItems)
	items := make([]int64, 0, nUsers*nItems)
	ratings := make([]float32, 0, nUsers*nItems)
	for u := 0; u < nUsers; u++ {
		for i := 0; i < nItems; i++ {
			users = append(users, int64(u))
			items = append(items, int64(i))
			ratings = append(ratings, 3+float32(u%3-1)+float32(i%2)-0.5)
		}
	}
	return NewDataset(users, items, ratings)
}

func TestSVDFit(t *testing.T) {
	data := syntheticDataset(30, 20)
	svd := NewSVD(Params{
		NFactors:    10,
		NEpochs:     30,
		Lr:          0.01,
		RandomState: 42,
	})
	svd.Fit(data, NewFitConfig())
	accuracy := svd.GetAccuracy()
	assert.NotNil(t, accuracy)
	assert.Less(t, *accuracy, float32(0.5))
	// predictions stay within the observed rating scale
	for i := 0; i < data.Count(); i++ {
		userId, itemId, _ := data.Get(i)
		estimate, err := svd.Predict(userId, itemId)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, estimate, float32(1.5))
		assert.LessOrEqual(t, estimate, float32(4.5))
	}
	// unknown user and item fall back to the global mean region
	estimate, err := svd.Predict(9999, 9999)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, estimate, float32(1.5))
	assert.LessOrEqual(t, estimate, float32(4.5))
}

func TestSVDPredictUntrained(t *testing.T) {
	svd := NewSVD(nil)
	_, err := svd.Predict(1, 1)
	assert.ErrorIs(t, err, ErrModelNotTrained)
	assert.Nil(t, svd.GetAccuracy())
}

func TestSVDMarshalUntrained(t *testing.T) {
	svd := NewSVD(nil)
	var buf bytes.Buffer
	err := svd.Marshal(&buf)
	assert.ErrorIs(t, err, ErrModelNotTrained)
	assert.Zero(t, buf.Len())
}

func TestSVDDeterministic(t *testing.T) {
	data := syntheticDataset(10, 10)
	a := NewSVD(Params{NEpochs: 5, RandomState: 7})
	b := NewSVD(Params{NEpochs: 5, RandomState: 7})
	a.Fit(data, nil)
	b.Fit(data, nil)
	estimateA, err := a.Predict(3, 4)
	assert.NoError(t, err)
	estimateB, err := b.Predict(3, 4)
	assert.NoError(t, err)
	assert.Equal(t, estimateA, estimateB)
}

func TestSVDMarshal(t *testing.T) {
	data := syntheticDataset(10, 10)
	svd := NewSVD(Params{NFactors: 8, NEpochs: 10, RandomState: 1})
	svd.Fit(data, nil)

	buf := bytes.NewBuffer(nil)
	assert.NoError(t, svd.Marshal(buf))

	decoded := new(SVD)
	assert.NoError(t, decoded.Unmarshal(buf))
	assert.Equal(t, 8, decoded.GetParams().GetInt(NFactors, 0))
	for i := 0; i < data.Count(); i++ {
		userId, itemId, _ := data.Get(i)
		want, err := svd.Predict(userId, itemId)
		assert.NoError(t, err)
		got, err := decoded.Predict(userId, itemId)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	accuracy := decoded.GetAccuracy()
	assert.NotNil(t, accuracy)
	assert.Equal(t, *svd.GetAccuracy(), *accuracy)
}

func TestSVDClear(t *testing.T) {
	data := syntheticDataset(5, 5)
	svd := NewSVD(Params{NEpochs: 2})
	svd.Fit(data, nil)
	svd.Clear()
	_, err := svd.Predict(1, 1)
	assert.ErrorIs(t, err, ErrModelNotTrained)
}

func TestCrossValidate(t *testing.T) {
	data := syntheticDataset(20, 15)
	svd := NewSVD(Params{NFactors: 8, NEpochs: 20, Lr: 0.01, RandomState: 3})
	result := CrossValidate(svd, data, DefaultCVFolds, 0, nil)
	assert.Len(t, result.RMSE, 4)
	assert.Len(t, result.MAE, 4)
	assert.Less(t, result.MeanRMSE(), float32(0.6))
	assert.Less(t, result.MeanMAE(), result.MeanRMSE())
	// the caller's model stays untrained
	_, err := svd.Predict(1, 1)
	assert.ErrorIs(t, err, ErrModelNotTrained)
}

func TestNew(t *testing.T) {
	m, err := New(TypeSVD, Params{NFactors: 4})
	assert.NoError(t, err)
	assert.Equal(t, TypeSVD, m.Type())
	assert.Equal(t, 4, m.GetParams().GetInt(NFactors, 0))

	_, err = New("unknown", nil)
	assert.ErrorIs(t, err, ErrUnknownModelType)
}
