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
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base/log"
	"github.com/litrev/litrev/model"
	"github.com/litrev/litrev/storage/artifact"
	"github.com/litrev/litrev/storage/data"
)

// Defaults of the suggestion generator.
const (
	DefaultActiveUserDays = 7
	DefaultPageSize       = 100
	DefaultMaxPapers      = 1000
)

// GenerateConfig configures a suggestion generation run.
type GenerateConfig struct {
	// Type selects the model. The latest trained model of this type is used.
	Type model.Type
	// UserIds restricts the target users. Empty targets all recently
	// active users.
	UserIds []int64
	// MaxPapers bounds how many papers are scanned, counted per paper
	// regardless of how many suggestions it yields.
	MaxPapers int
	// PageSize is the number of papers fetched and inserted per page.
	PageSize int
	// StartOffset skips the most popular papers.
	StartOffset int
	// ReuseDays is the window within which a (user, paper) pair is not
	// suggested again. Nil or non-positive disables the reuse check, so
	// every target user is suggested every scanned paper.
	ReuseDays *int
	// ActiveUserDays is the recency window for target users when UserIds
	// is empty. Zero means DefaultActiveUserDays.
	ActiveUserDays int
}

// GenerateReport summarizes a generation run.
type GenerateReport struct {
	ModelId            string
	UsersTargeted      int
	PapersScanned      int
	SuggestionsCreated int
}

// Generator produces rating-ranked paper suggestions for active users.
type Generator struct {
	database  data.Database
	artifacts *artifact.Store
}

// NewGenerator creates a generator.
func NewGenerator(database data.Database, artifacts *artifact.Store) *Generator {
	return &Generator{database: database, artifacts: artifacts}
}

// Generate walks papers by descending stored popularity and suggests each
// paper to every target user. When a reuse window is set, users already
// covered by a suggestion inside the window are skipped; without one every
// pair is suggested. Suggestions are inserted in one write per page. The run
// fails before touching any data when no trained model exists.
func (g *Generator) Generate(ctx context.Context, config GenerateConfig) (*GenerateReport, error) {
	handle, err := LoadLatest(ctx, g.artifacts, config.Type)
	if err != nil {
		return nil, errors.Trace(err)
	}
	now := time.Now()
	maxPapers := config.MaxPapers
	if maxPapers <= 0 {
		maxPapers = DefaultMaxPapers
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	dedup := config.ReuseDays != nil && *config.ReuseDays > 0
	// target users
	userIds := config.UserIds
	if len(userIds) == 0 {
		activeUserDays := config.ActiveUserDays
		if activeUserDays <= 0 {
			activeUserDays = DefaultActiveUserDays
		}
		userIds, err = g.database.ListRecentUsers(ctx, now.AddDate(0, 0, -activeUserDays))
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	report := &GenerateReport{
		ModelId:       handle.Artifact.ID,
		UsersTargeted: len(userIds),
	}
	if len(userIds) == 0 {
		log.Logger().Warn("no target users for suggestion generation")
		return report, nil
	}
	var reuseSince time.Time
	if dedup {
		reuseSince = now.AddDate(0, 0, -*config.ReuseDays)
	}
	offset := config.StartOffset
	for report.PapersScanned < maxPapers {
		papers, err := g.database.ListPapersByPopularity(ctx, data.PopularityStored, true, offset, pageSize)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(papers) == 0 {
			break
		}
		paperIds := lo.Map(papers, func(paper data.Paper, _ int) int64 {
			return paper.PaperId
		})
		var covered map[int64]mapset.Set[int64]
		if dedup {
			covered, err = g.database.RecentSuggestedUsers(ctx, paperIds, userIds, reuseSince)
			if err != nil {
				return nil, errors.Trace(err)
			}
		}
		suggestions := make([]data.Suggestion, 0, len(papers)*len(userIds))
		for _, paper := range papers {
			if report.PapersScanned >= maxPapers {
				break
			}
			report.PapersScanned++
			for _, userId := range userIds {
				if users, exist := covered[paper.PaperId]; exist && users.Contains(userId) {
					continue
				}
				value, err := handle.Model.Predict(userId, itemId(paper))
				if err != nil {
					return nil, errors.Trace(err)
				}
				suggestions = append(suggestions, data.Suggestion{
					UserId:    userId,
					PaperId:   paper.PaperId,
					Value:     value,
					CreatedAt: now,
					ModelId:   handle.Artifact.ID,
					Active:    true,
				})
			}
		}
		if err = g.database.BatchInsertSuggestions(ctx, suggestions); err != nil {
			return nil, errors.Trace(err)
		}
		report.SuggestionsCreated += len(suggestions)
		offset += pageSize
	}
	log.Logger().Info("suggestion generation complete",
		zap.String("model", report.ModelId),
		zap.Int("users_targeted", report.UsersTargeted),
		zap.Int("papers_scanned", report.PapersScanned),
		zap.Int("suggestions_created", report.SuggestionsCreated))
	return report, nil
}

// itemId maps a paper to the model item id. Models are trained on the dense
// position index; papers that never got one cannot match any trained item
// and fall back to an id outside the index.
func itemId(paper data.Paper) int64 {
	if paper.PositionIndex != nil {
		return *paper.PositionIndex
	}
	return -1
}
