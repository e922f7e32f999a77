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
	"context"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base/log"
	"github.com/litrev/litrev/storage/data"
)

// RecomputePositionIndex assigns every paper its zero-based dense rank by
// ascending paper id and returns how many papers changed. Recomputing an
// up-to-date index writes nothing.
func RecomputePositionIndex(ctx context.Context, database data.Database) (int, error) {
	positions, err := database.ListPaperPositions(ctx)
	if err != nil {
		return 0, errors.Trace(err)
	}
	changed := 0
	for i, position := range positions {
		want := int64(i)
		if position.PositionIndex != nil && *position.PositionIndex == want {
			continue
		}
		if err = database.UpdatePositionIndex(ctx, position.PaperId, want); err != nil {
			return changed, errors.Trace(err)
		}
		changed++
	}
	log.Logger().Info("recomputed position index",
		zap.Int("papers", len(positions)),
		zap.Int("changed", changed))
	return changed, nil
}
