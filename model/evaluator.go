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
	"github.com/chewxy/math32"
)

// RMSE computes the root mean square error over the test set.
func RMSE(m Model, testSet *Dataset) float32 {
	var sum float32
	for i := 0; i < testSet.Count(); i++ {
		userId, itemId, rating := testSet.Get(i)
		estimate, err := m.Predict(userId, itemId)
		if err != nil {
			continue
		}
		diff := estimate - rating
		sum += diff * diff
	}
	if testSet.Count() == 0 {
		return 0
	}
	return math32.Sqrt(sum / float32(testSet.Count()))
}

// MAE computes the mean absolute error over the test set.
func MAE(m Model, testSet *Dataset) float32 {
	var sum float32
	for i := 0; i < testSet.Count(); i++ {
		userId, itemId, rating := testSet.Get(i)
		estimate, err := m.Predict(userId, itemId)
		if err != nil {
			continue
		}
		sum += math32.Abs(estimate - rating)
	}
	if testSet.Count() == 0 {
		return 0
	}
	return sum / float32(testSet.Count())
}
