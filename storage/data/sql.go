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

package data

import (
	"context"
	"database/sql"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// SQLDatabase uses a SQL database as the relational layer.
type SQLDatabase struct {
	gormDB *gorm.DB
	client *sql.DB
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	return errors.Trace(d.gormDB.AutoMigrate(User{}, Paper{}, Review{}, Suggestion{}))
}

// Close the database connection.
func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// BatchInsertPapers inserts a batch of papers.
func (d *SQLDatabase) BatchInsertPapers(ctx context.Context, papers []Paper) error {
	if len(papers) == 0 {
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Create(&papers).Error)
}

// GetPaper returns a paper by id.
func (d *SQLDatabase) GetPaper(ctx context.Context, paperId int64) (Paper, error) {
	var paper Paper
	if err := d.gormDB.WithContext(ctx).First(&paper, paperId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Paper{}, ErrPaperNotExist
		}
		return Paper{}, errors.Trace(err)
	}
	return paper, nil
}

// DeletePaper removes a paper.
func (d *SQLDatabase) DeletePaper(ctx context.Context, paperId int64) error {
	tx := d.gormDB.WithContext(ctx).Delete(&Paper{}, paperId)
	if tx.Error != nil {
		return errors.Trace(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrPaperNotExist
	}
	return nil
}

// ListPapers returns all papers ordered by ascending paper id.
func (d *SQLDatabase) ListPapers(ctx context.Context) ([]Paper, error) {
	var papers []Paper
	if err := d.gormDB.WithContext(ctx).
		Order("paper_id").
		Find(&papers).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return papers, nil
}

// ListPapersByPopularity pages through papers ordered by popularity. A
// null score sorts after every non-null score regardless of direction.
func (d *SQLDatabase) ListPapersByPopularity(ctx context.Context, mode PopularityMode, desc bool, offset, limit int) ([]Paper, error) {
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	var papers []Paper
	switch mode {
	case PopularityStored:
		if err := d.gormDB.WithContext(ctx).Model(&Paper{}).
			Order("score IS NULL").
			Order("score " + direction).
			Order("paper_id").
			Offset(offset).Limit(limit).
			Find(&papers).Error; err != nil {
			return nil, errors.Trace(err)
		}
	case PopularityLive:
		aggregated := d.gormDB.WithContext(ctx).Model(&Review{}).
			Select("paper_id, AVG(rating) * COUNT(*) AS live_score").
			Where("active = ?", true).
			Group("paper_id")
		if err := d.gormDB.WithContext(ctx).Model(&Paper{}).
			Select("paper.*").
			Joins("LEFT JOIN (?) AS aggregated ON aggregated.paper_id = paper.paper_id", aggregated).
			Order("aggregated.live_score IS NULL").
			Order("aggregated.live_score " + direction).
			Order("paper.paper_id").
			Offset(offset).Limit(limit).
			Find(&papers).Error; err != nil {
			return nil, errors.Trace(err)
		}
	default:
		return nil, errors.Errorf("unknown popularity mode: %v", mode)
	}
	return papers, nil
}

// RefreshPaperRatings recomputes rating aggregates from active reviews.
func (d *SQLDatabase) RefreshPaperRatings(ctx context.Context, now time.Time) (int, error) {
	var aggregates []struct {
		PaperId int64
		Average float64
		Count   int64
	}
	if err := d.gormDB.WithContext(ctx).Model(&Review{}).
		Select("paper_id, AVG(rating) AS average, COUNT(*) AS count").
		Where("active = ?", true).
		Group("paper_id").
		Find(&aggregates).Error; err != nil {
		return 0, errors.Trace(err)
	}
	updated := 0
	for _, aggregate := range aggregates {
		score := aggregate.Average * float64(aggregate.Count)
		tx := d.gormDB.WithContext(ctx).Model(&Paper{}).
			Where("paper_id = ?", aggregate.PaperId).
			Updates(map[string]any{
				"rating_average":     aggregate.Average,
				"rating_count":       aggregate.Count,
				"score":              score,
				"last_rating_update": now,
			})
		if tx.Error != nil {
			return updated, errors.Trace(tx.Error)
		}
		updated += int(tx.RowsAffected)
	}
	return updated, nil
}

// ListPaperPositions returns (paper id, position index) pairs ordered by
// ascending paper id.
func (d *SQLDatabase) ListPaperPositions(ctx context.Context) ([]PaperPosition, error) {
	var positions []PaperPosition
	if err := d.gormDB.WithContext(ctx).Model(&Paper{}).
		Select("paper_id, position_index").
		Order("paper_id").
		Find(&positions).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return positions, nil
}

// UpdatePositionIndex writes the position index of a paper.
func (d *SQLDatabase) UpdatePositionIndex(ctx context.Context, paperId, index int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Model(&Paper{}).
		Where("paper_id = ?", paperId).
		Update("position_index", index).Error)
}

// BatchInsertUsers inserts a batch of users.
func (d *SQLDatabase) BatchInsertUsers(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Create(&users).Error)
}

// ListRecentUsers returns ids of users active since the given time.
func (d *SQLDatabase) ListRecentUsers(ctx context.Context, since time.Time) ([]int64, error) {
	var userIds []int64
	if err := d.gormDB.WithContext(ctx).Model(&User{}).
		Where("last_active_at >= ?", since).
		Order("user_id").
		Pluck("user_id", &userIds).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return userIds, nil
}

// BatchInsertReviews inserts a batch of reviews.
func (d *SQLDatabase) BatchInsertReviews(ctx context.Context, reviews []Review) error {
	if len(reviews) == 0 {
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Create(&reviews).Error)
}

// ListActiveReviews returns all active reviews.
func (d *SQLDatabase) ListActiveReviews(ctx context.Context) ([]Review, error) {
	var reviews []Review
	if err := d.gormDB.WithContext(ctx).
		Where("active = ?", true).
		Order("id").
		Find(&reviews).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return reviews, nil
}

// BatchInsertSuggestions inserts a batch of suggestions in one write.
func (d *SQLDatabase) BatchInsertSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Create(&suggestions).Error)
}

// CountSuggestions returns the total number of suggestions.
func (d *SQLDatabase) CountSuggestions(ctx context.Context) (int64, error) {
	var count int64
	if err := d.gormDB.WithContext(ctx).Model(&Suggestion{}).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return count, nil
}

// RecentSuggestedUsers returns, per paper, the users that already received
// an active suggestion since the given time.
func (d *SQLDatabase) RecentSuggestedUsers(ctx context.Context, paperIds, userIds []int64, since time.Time) (map[int64]mapset.Set[int64], error) {
	covered := make(map[int64]mapset.Set[int64])
	if len(paperIds) == 0 || len(userIds) == 0 {
		return covered, nil
	}
	var rows []struct {
		PaperId int64
		UserId  int64
	}
	if err := d.gormDB.WithContext(ctx).Model(&Suggestion{}).
		Select("paper_id, user_id").
		Where("paper_id IN ? AND user_id IN ? AND active = ? AND created_at >= ?",
			paperIds, userIds, true, since).
		Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	for _, row := range rows {
		if _, exist := covered[row.PaperId]; !exist {
			covered[row.PaperId] = mapset.NewSet[int64]()
		}
		covered[row.PaperId].Add(row.UserId)
	}
	return covered, nil
}

// AttachReview links a suggestion to the review that confirmed it. This is
// the only permitted mutation of a suggestion.
func (d *SQLDatabase) AttachReview(ctx context.Context, suggestionId, reviewId int64) error {
	tx := d.gormDB.WithContext(ctx).Model(&Suggestion{}).
		Where("id = ?", suggestionId).
		Update("review_id", reviewId)
	if tx.Error != nil {
		return errors.Trace(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrSuggestionNotExist
	}
	return nil
}

// ListSuggestions returns the most recent active suggestion per paper for
// a user, newest first.
func (d *SQLDatabase) ListSuggestions(ctx context.Context, userId int64, n int) ([]Suggestion, error) {
	var suggestions []Suggestion
	if err := d.gormDB.WithContext(ctx).
		Where("user_id = ? AND active = ?", userId, true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&suggestions).Error; err != nil {
		return nil, errors.Trace(err)
	}
	// keep the most recent suggestion per paper
	seen := mapset.NewSet[int64]()
	result := make([]Suggestion, 0, n)
	for _, suggestion := range suggestions {
		if seen.Contains(suggestion.PaperId) {
			continue
		}
		seen.Add(suggestion.PaperId)
		result = append(result, suggestion)
		if len(result) >= n {
			break
		}
	}
	return result, nil
}
