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
	"encoding/gob"
	"io"
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base"
	"github.com/litrev/litrev/base/log"
)

// SVD is biased matrix factorization, as popularized by Simon Funk during
// the Netflix Prize. The prediction \hat{r}_{ui} is set as:
//
//	\hat{r}_{ui} = \mu + b_u + b_i + q_i^T p_u
//
// If user u is unknown, the bias b_u and the factors p_u are assumed to be
// zero. The same applies for item i with b_i and q_i.
type SVD struct {
	BaseModel
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	UserBias   []float32   // b_u
	ItemBias   []float32   // b_i
	GlobalMean float32     // mu
	UserIndex  map[int64]int32
	ItemIndex  map[int64]int32
	MinRating  float32
	MaxRating  float32
	trained    bool
	accuracy   float32
	// Hyper-parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
	randState  int64
}

// NewSVD creates an SVD model.
func NewSVD(params Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

// Type returns TypeSVD.
func (svd *SVD) Type() Type {
	return TypeSVD
}

// SetParams sets hyper-parameters:
//
//	Lr          - learning rate of SGD. Default is 0.005.
//	Reg         - regularization strength. Default is 0.02.
//	NFactors    - number of latent factors. Default is 100.
//	NEpochs     - number of SGD iterations. Default is 20.
//	InitMean    - mean of initial random latent factors. Default is 0.
//	InitStdDev  - standard deviation of initial random latent factors. Default is 0.1.
//	RandomState - random seed. Default is 0.
func (svd *SVD) SetParams(params Params) {
	svd.BaseModel.SetParams(params)
	svd.nFactors = svd.GetParams().GetInt(NFactors, 100)
	svd.nEpochs = svd.GetParams().GetInt(NEpochs, 20)
	svd.lr = svd.GetParams().GetFloat32(Lr, 0.005)
	svd.reg = svd.GetParams().GetFloat32(Reg, 0.02)
	svd.initMean = svd.GetParams().GetFloat32(InitMean, 0)
	svd.initStdDev = svd.GetParams().GetFloat32(InitStdDev, 0.1)
	svd.randState = svd.GetParams().GetInt64(RandomState, 0)
}

// Predict estimates the rating of userId on itemId, clamped to the rating
// scale seen during fitting.
func (svd *SVD) Predict(userId, itemId int64) (float32, error) {
	if !svd.trained {
		return 0, errors.Trace(ErrModelNotTrained)
	}
	userIndex, userKnown := svd.UserIndex[userId]
	itemIndex, itemKnown := svd.ItemIndex[itemId]
	ret := svd.GlobalMean
	if userKnown {
		ret += svd.UserBias[userIndex]
	}
	if itemKnown {
		ret += svd.ItemBias[itemIndex]
	}
	if userKnown && itemKnown {
		userFactor := svd.UserFactor[userIndex]
		itemFactor := svd.ItemFactor[itemIndex]
		for i := range userFactor {
			ret += userFactor[i] * itemFactor[i]
		}
	}
	ret = math32.Max(svd.MinRating, math32.Min(svd.MaxRating, ret))
	return ret, nil
}

// Fit trains the model on trainSet by stochastic gradient descent.
func (svd *SVD) Fit(trainSet *Dataset, config *FitConfig) {
	if config == nil {
		config = NewFitConfig()
	}
	start := time.Now()
	svd.Clear()
	rng := base.NewRandomGenerator(svd.randState)
	// Index users and items
	svd.UserIndex = make(map[int64]int32)
	svd.ItemIndex = make(map[int64]int32)
	for i := 0; i < trainSet.Count(); i++ {
		userId, itemId, rating := trainSet.Get(i)
		if _, exist := svd.UserIndex[userId]; !exist {
			svd.UserIndex[userId] = int32(len(svd.UserIndex))
		}
		if _, exist := svd.ItemIndex[itemId]; !exist {
			svd.ItemIndex[itemId] = int32(len(svd.ItemIndex))
		}
		svd.GlobalMean += rating
	}
	if trainSet.Count() > 0 {
		svd.GlobalMean /= float32(trainSet.Count())
	}
	svd.MinRating, svd.MaxRating = trainSet.RatingScale()
	svd.UserBias = make([]float32, len(svd.UserIndex))
	svd.ItemBias = make([]float32, len(svd.ItemIndex))
	svd.UserFactor = rng.NormalMatrix(len(svd.UserIndex), svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = rng.NormalMatrix(len(svd.ItemIndex), svd.nFactors, svd.initMean, svd.initStdDev)
	// Stochastic gradient descent
	var bar *progressbar.ProgressBar
	if config.Verbose {
		bar = progressbar.Default(int64(svd.nEpochs), "fit svd")
	}
	shuffle := rand.New(rand.NewSource(svd.randState))
	for epoch := 0; epoch < svd.nEpochs; epoch++ {
		cost := float32(0)
		for _, i := range shuffle.Perm(trainSet.Count()) {
			userId, itemId, rating := trainSet.Get(i)
			userIndex := svd.UserIndex[userId]
			itemIndex := svd.ItemIndex[itemId]
			userBias := svd.UserBias[userIndex]
			itemBias := svd.ItemBias[itemIndex]
			userFactor := svd.UserFactor[userIndex]
			itemFactor := svd.ItemFactor[itemIndex]
			// Compute error
			estimate := svd.GlobalMean + userBias + itemBias
			for k := 0; k < svd.nFactors; k++ {
				estimate += userFactor[k] * itemFactor[k]
			}
			diff := estimate - rating
			cost += diff * diff
			// Update biases
			svd.UserBias[userIndex] -= svd.lr * (diff + svd.reg*userBias)
			svd.ItemBias[itemIndex] -= svd.lr * (diff + svd.reg*itemBias)
			// Update latent factors
			for k := 0; k < svd.nFactors; k++ {
				userFactor[k], itemFactor[k] =
					userFactor[k]-svd.lr*(diff*itemFactor[k]+svd.reg*userFactor[k]),
					itemFactor[k]-svd.lr*(diff*userFactor[k]+svd.reg*itemFactor[k])
			}
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		log.Logger().Debug("svd epoch complete",
			zap.Int("epoch", epoch),
			zap.Float32("cost", cost))
	}
	svd.trained = true
	svd.accuracy = RMSE(svd, trainSet)
	log.Logger().Info("svd fit complete",
		zap.Int("n_users", len(svd.UserIndex)),
		zap.Int("n_items", len(svd.ItemIndex)),
		zap.Int("n_ratings", trainSet.Count()),
		zap.Float32("train_rmse", svd.accuracy),
		zap.Duration("elapsed", time.Since(start)))
}

// GetAccuracy returns the training set RMSE of the last Fit, or nil for an
// untrained model.
func (svd *SVD) GetAccuracy() *float32 {
	if !svd.trained {
		return nil
	}
	accuracy := svd.accuracy
	return &accuracy
}

// Clear resets the model to the untrained state.
func (svd *SVD) Clear() {
	svd.UserFactor = nil
	svd.ItemFactor = nil
	svd.UserBias = nil
	svd.ItemBias = nil
	svd.UserIndex = nil
	svd.ItemIndex = nil
	svd.GlobalMean = 0
	svd.MinRating = 0
	svd.MaxRating = 0
	svd.trained = false
	svd.accuracy = 0
}

// svdSnapshot is the on-disk form of a trained SVD. Hyper-parameters are
// stored resolved so decoding never depends on interface values.
type svdSnapshot struct {
	NFactors    int
	NEpochs     int
	Lr          float32
	Reg         float32
	InitMean    float32
	InitStdDev  float32
	RandomState int64
	UserFactor  [][]float32
	ItemFactor  [][]float32
	UserBias    []float32
	ItemBias    []float32
	GlobalMean  float32
	UserIndex   map[int64]int32
	ItemIndex   map[int64]int32
	MinRating   float32
	MaxRating   float32
	Trained     bool
	Accuracy    float32
}

// Marshal writes the trained model with gob. An untrained model cannot be
// persisted.
func (svd *SVD) Marshal(w io.Writer) error {
	if !svd.trained {
		return errors.Trace(ErrModelNotTrained)
	}
	snapshot := svdSnapshot{
		NFactors:    svd.nFactors,
		NEpochs:     svd.nEpochs,
		Lr:          svd.lr,
		Reg:         svd.reg,
		InitMean:    svd.initMean,
		InitStdDev:  svd.initStdDev,
		RandomState: svd.randState,
		UserFactor:  svd.UserFactor,
		ItemFactor:  svd.ItemFactor,
		UserBias:    svd.UserBias,
		ItemBias:    svd.ItemBias,
		GlobalMean:  svd.GlobalMean,
		UserIndex:   svd.UserIndex,
		ItemIndex:   svd.ItemIndex,
		MinRating:   svd.MinRating,
		MaxRating:   svd.MaxRating,
		Trained:     svd.trained,
		Accuracy:    svd.accuracy,
	}
	return errors.Trace(gob.NewEncoder(w).Encode(snapshot))
}

// Unmarshal reads a trained model written by Marshal.
func (svd *SVD) Unmarshal(r io.Reader) error {
	var snapshot svdSnapshot
	if err := gob.NewDecoder(r).Decode(&snapshot); err != nil {
		return errors.Trace(err)
	}
	svd.SetParams(Params{
		NFactors:    snapshot.NFactors,
		NEpochs:     snapshot.NEpochs,
		Lr:          snapshot.Lr,
		Reg:         snapshot.Reg,
		InitMean:    snapshot.InitMean,
		InitStdDev:  snapshot.InitStdDev,
		RandomState: snapshot.RandomState,
	})
	svd.UserFactor = snapshot.UserFactor
	svd.ItemFactor = snapshot.ItemFactor
	svd.UserBias = snapshot.UserBias
	svd.ItemBias = snapshot.ItemBias
	svd.GlobalMean = snapshot.GlobalMean
	svd.UserIndex = snapshot.UserIndex
	svd.ItemIndex = snapshot.ItemIndex
	svd.MinRating = snapshot.MinRating
	svd.MaxRating = snapshot.MaxRating
	svd.trained = snapshot.Trained
	svd.accuracy = snapshot.Accuracy
	return nil
}
