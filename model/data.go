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
	"math/rand"
	"strconv"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base/log"
	"github.com/litrev/litrev/dataset"
)

// Dataset is an array of (userId, itemId, rating) triples.
type Dataset struct {
	Users   []int64
	Items   []int64
	Ratings []float32
}

// NewDataset creates a dataset from parallel slices.
func NewDataset(users, items []int64, ratings []float32) *Dataset {
	return &Dataset{Users: users, Items: items, Ratings: ratings}
}

// Count returns the number of ratings.
func (d *Dataset) Count() int {
	return len(d.Ratings)
}

// Get returns the i-th (userId, itemId, rating) triple.
func (d *Dataset) Get(i int) (int64, int64, float32) {
	return d.Users[i], d.Items[i], d.Ratings[i]
}

// SubSet returns the dataset restricted to the given indices.
func (d *Dataset) SubSet(indices []int) *Dataset {
	sub := &Dataset{
		Users:   make([]int64, 0, len(indices)),
		Items:   make([]int64, 0, len(indices)),
		Ratings: make([]float32, 0, len(indices)),
	}
	for _, i := range indices {
		sub.Users = append(sub.Users, d.Users[i])
		sub.Items = append(sub.Items, d.Items[i])
		sub.Ratings = append(sub.Ratings, d.Ratings[i])
	}
	return sub
}

// RatingScale returns the min and max rating in the dataset.
func (d *Dataset) RatingScale() (float32, float32) {
	min, max := math32.Inf(1), math32.Inf(-1)
	for _, r := range d.Ratings {
		min = math32.Min(min, r)
		max = math32.Max(max, r)
	}
	return min, max
}

// KFold splits the dataset into k (train, test) fold pairs. Every rating
// appears in exactly one test fold.
func (d *Dataset) KFold(k int, seed int64) (trainFolds, testFolds []*Dataset) {
	trainFolds = make([]*Dataset, k)
	testFolds = make([]*Dataset, k)
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(d.Count())
	foldSize := d.Count() / k
	begin, end := 0, 0
	for i := 0; i < k; i++ {
		end += foldSize
		if i < d.Count()%k {
			end++
		}
		testFolds[i] = d.SubSet(perm[begin:end])
		trainIndex := make([]int, 0, d.Count()-(end-begin))
		trainIndex = append(trainIndex, perm[:begin]...)
		trainIndex = append(trainIndex, perm[end:]...)
		trainFolds[i] = d.SubSet(trainIndex)
		begin = end
	}
	return trainFolds, testFolds
}

// PrepareTrainingData builds the canonical (user, item, rating) dataset
// from a joined reviews-papers table. Items are the dense paper position
// index. Rows with a missing or unparsable field are skipped.
func PrepareTrainingData(table *dataset.Table) *Dataset {
	return loadDataFromTable(table, "userId", "paperIndex", "rating")
}

func loadDataFromTable(table *dataset.Table, userColumn, itemColumn, ratingColumn string) *Dataset {
	d := &Dataset{
		Users:   make([]int64, 0, table.Len()),
		Items:   make([]int64, 0, table.Len()),
		Ratings: make([]float32, 0, table.Len()),
	}
	skipped := 0
	for i := 0; i < table.Len(); i++ {
		userField, _ := table.Get(i, userColumn)
		itemField, _ := table.Get(i, itemColumn)
		ratingField, _ := table.Get(i, ratingColumn)
		userId, err := strconv.ParseInt(userField, 10, 64)
		if err != nil {
			skipped++
			continue
		}
		itemId, err := strconv.ParseInt(itemField, 10, 64)
		if err != nil {
			skipped++
			continue
		}
		rating, err := strconv.ParseFloat(ratingField, 32)
		if err != nil {
			skipped++
			continue
		}
		d.Users = append(d.Users, userId)
		d.Items = append(d.Items, itemId)
		d.Ratings = append(d.Ratings, float32(rating))
	}
	if skipped > 0 {
		log.Logger().Warn("skipped rows with missing fields", zap.Int("skipped", skipped))
	}
	return d
}
