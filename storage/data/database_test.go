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
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database Database
}

func (suite *baseTestSuite) scores(papers []Paper) []*float64 {
	return lo.Map(papers, func(p Paper, _ int) *float64 { return p.Score })
}

func (suite *baseTestSuite) TestStoredPopularityNullsLast() {
	ctx := context.Background()
	err := suite.Database.BatchInsertPapers(ctx, []Paper{
		{PaperId: 1},
		{PaperId: 2, Score: lo.ToPtr(5.0)},
		{PaperId: 3, Score: lo.ToPtr(2.0)},
	})
	suite.NoError(err)
	// descending: [5.0, 2.0, nil]
	papers, err := suite.Database.ListPapersByPopularity(ctx, PopularityStored, true, 0, 10)
	suite.NoError(err)
	suite.Equal([]int64{2, 3, 1}, lo.Map(papers, func(p Paper, _ int) int64 { return p.PaperId }))
	// ascending still sorts the null score last
	papers, err = suite.Database.ListPapersByPopularity(ctx, PopularityStored, false, 0, 10)
	suite.NoError(err)
	suite.Equal([]int64{3, 2, 1}, lo.Map(papers, func(p Paper, _ int) int64 { return p.PaperId }))
}

func (suite *baseTestSuite) TestLivePopularity() {
	ctx := context.Background()
	err := suite.Database.BatchInsertPapers(ctx, []Paper{
		{PaperId: 1}, {PaperId: 2}, {PaperId: 3},
	})
	suite.NoError(err)
	now := time.Now()
	err = suite.Database.BatchInsertReviews(ctx, []Review{
		{UserId: 1, PaperId: 1, Rating: 5, Active: true, CreatedAt: now},   // 5*1 = 5
		{UserId: 1, PaperId: 2, Rating: 4, Active: true, CreatedAt: now},   // (4+2)/2*2 = 6
		{UserId: 2, PaperId: 2, Rating: 2, Active: true, CreatedAt: now},   //
		{UserId: 2, PaperId: 3, Rating: 5, Active: false, CreatedAt: now},  // inactive, paper 3 stays unscored
	})
	suite.NoError(err)
	papers, err := suite.Database.ListPapersByPopularity(ctx, PopularityLive, true, 0, 10)
	suite.NoError(err)
	suite.Equal([]int64{2, 1, 3}, lo.Map(papers, func(p Paper, _ int) int64 { return p.PaperId }))
	// ascending keeps the unreviewed paper last
	papers, err = suite.Database.ListPapersByPopularity(ctx, PopularityLive, false, 0, 10)
	suite.NoError(err)
	suite.Equal([]int64{1, 2, 3}, lo.Map(papers, func(p Paper, _ int) int64 { return p.PaperId }))
}

func (suite *baseTestSuite) TestPopularityPagination() {
	ctx := context.Background()
	var papers []Paper
	for i := int64(1); i <= 5; i++ {
		papers = append(papers, Paper{PaperId: i, Score: lo.ToPtr(float64(i))})
	}
	suite.NoError(suite.Database.BatchInsertPapers(ctx, papers))
	page, err := suite.Database.ListPapersByPopularity(ctx, PopularityStored, true, 0, 2)
	suite.NoError(err)
	suite.Equal([]int64{5, 4}, lo.Map(page, func(p Paper, _ int) int64 { return p.PaperId }))
	page, err = suite.Database.ListPapersByPopularity(ctx, PopularityStored, true, 2, 2)
	suite.NoError(err)
	suite.Equal([]int64{3, 2}, lo.Map(page, func(p Paper, _ int) int64 { return p.PaperId }))
	page, err = suite.Database.ListPapersByPopularity(ctx, PopularityStored, true, 10, 2)
	suite.NoError(err)
	suite.Empty(page)
}

func (suite *baseTestSuite) TestRefreshPaperRatings() {
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertPapers(ctx, []Paper{{PaperId: 1}, {PaperId: 2}}))
	now := time.Now()
	suite.NoError(suite.Database.BatchInsertReviews(ctx, []Review{
		{UserId: 1, PaperId: 1, Rating: 4, Active: true, CreatedAt: now},
		{UserId: 2, PaperId: 1, Rating: 2, Active: true, CreatedAt: now},
		{UserId: 3, PaperId: 1, Rating: 1, Active: false, CreatedAt: now}, // ignored
	}))
	updated, err := suite.Database.RefreshPaperRatings(ctx, now)
	suite.NoError(err)
	suite.Equal(1, updated)
	paper, err := suite.Database.GetPaper(ctx, 1)
	suite.NoError(err)
	suite.Equal(3.0, *paper.RatingAverage)
	suite.Equal(int64(2), *paper.RatingCount)
	suite.Equal(6.0, *paper.Score)
	// paper 2 has no active reviews and keeps a null score
	paper, err = suite.Database.GetPaper(ctx, 2)
	suite.NoError(err)
	suite.Nil(paper.Score)
}

func (suite *baseTestSuite) TestPaperLifecycle() {
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertPapers(ctx, []Paper{{PaperId: 7, Title: "a"}}))
	paper, err := suite.Database.GetPaper(ctx, 7)
	suite.NoError(err)
	suite.Equal("a", paper.Title)
	suite.NoError(suite.Database.DeletePaper(ctx, 7))
	_, err = suite.Database.GetPaper(ctx, 7)
	suite.ErrorIs(err, ErrPaperNotExist)
	suite.ErrorIs(suite.Database.DeletePaper(ctx, 7), ErrPaperNotExist)
}

func (suite *baseTestSuite) TestListPapers() {
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertPapers(ctx, []Paper{
		{PaperId: 5, Title: "b"}, {PaperId: 1, Title: "a"}, {PaperId: 8, Title: "c"},
	}))
	papers, err := suite.Database.ListPapers(ctx)
	suite.NoError(err)
	suite.Equal([]int64{1, 5, 8}, lo.Map(papers, func(p Paper, _ int) int64 { return p.PaperId }))
}

func (suite *baseTestSuite) TestPositionIndex() {
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertPapers(ctx, []Paper{
		{PaperId: 9}, {PaperId: 3}, {PaperId: 7},
	}))
	positions, err := suite.Database.ListPaperPositions(ctx)
	suite.NoError(err)
	suite.Equal([]int64{3, 7, 9}, lo.Map(positions, func(p PaperPosition, _ int) int64 { return p.PaperId }))
	suite.NoError(suite.Database.UpdatePositionIndex(ctx, 3, 0))
	positions, err = suite.Database.ListPaperPositions(ctx)
	suite.NoError(err)
	suite.Equal(int64(0), *positions[0].PositionIndex)
	suite.Nil(positions[1].PositionIndex)
}

func (suite *baseTestSuite) TestListRecentUsers() {
	ctx := context.Background()
	now := time.Now()
	suite.NoError(suite.Database.BatchInsertUsers(ctx, []User{
		{UserId: 1, LastActiveAt: now},
		{UserId: 2, LastActiveAt: now.AddDate(0, 0, -8)},
		{UserId: 3, LastActiveAt: now.AddDate(0, 0, -1)},
	}))
	userIds, err := suite.Database.ListRecentUsers(ctx, now.AddDate(0, 0, -7))
	suite.NoError(err)
	suite.Equal([]int64{1, 3}, userIds)
}

func (suite *baseTestSuite) TestRecentSuggestedUsers() {
	ctx := context.Background()
	now := time.Now()
	suite.NoError(suite.Database.BatchInsertSuggestions(ctx, []Suggestion{
		{UserId: 1, PaperId: 10, Value: 4, CreatedAt: now.AddDate(0, 0, -1), Active: true},
		{UserId: 2, PaperId: 10, Value: 4, CreatedAt: now.AddDate(0, 0, -8), Active: true},  // outside window
		{UserId: 1, PaperId: 11, Value: 4, CreatedAt: now.AddDate(0, 0, -1), Active: false}, // inactive
	}))
	covered, err := suite.Database.RecentSuggestedUsers(ctx, []int64{10, 11}, []int64{1, 2}, now.AddDate(0, 0, -7))
	suite.NoError(err)
	suite.Len(covered, 1)
	suite.True(covered[10].Contains(1))
	suite.False(covered[10].Contains(2))
	// empty inputs short-circuit
	covered, err = suite.Database.RecentSuggestedUsers(ctx, nil, []int64{1}, now)
	suite.NoError(err)
	suite.Empty(covered)
}

func (suite *baseTestSuite) TestSuggestions() {
	ctx := context.Background()
	now := time.Now()
	suite.NoError(suite.Database.BatchInsertSuggestions(ctx, []Suggestion{
		{UserId: 1, PaperId: 10, Value: 3, CreatedAt: now.Add(-2 * time.Hour), ModelId: "m1", Active: true},
		{UserId: 1, PaperId: 10, Value: 4, CreatedAt: now.Add(-time.Hour), ModelId: "m2", Active: true},
		{UserId: 1, PaperId: 11, Value: 5, CreatedAt: now, ModelId: "m2", Active: true},
		{UserId: 2, PaperId: 10, Value: 2, CreatedAt: now, ModelId: "m2", Active: true},
	}))
	count, err := suite.Database.CountSuggestions(ctx)
	suite.NoError(err)
	suite.Equal(int64(4), count)
	// the reader sees the most recent active suggestion per paper
	suggestions, err := suite.Database.ListSuggestions(ctx, 1, 10)
	suite.NoError(err)
	suite.Len(suggestions, 2)
	suite.Equal(int64(11), suggestions[0].PaperId)
	suite.Equal(int64(10), suggestions[1].PaperId)
	suite.Equal(float32(4), suggestions[1].Value)
	// link a review to the newest suggestion
	suite.NoError(suite.Database.AttachReview(ctx, suggestions[0].Id, 77))
	updated, err := suite.Database.ListSuggestions(ctx, 1, 10)
	suite.NoError(err)
	suite.Equal(int64(77), *updated[0].ReviewId)
	// linking a missing suggestion fails
	suite.ErrorIs(suite.Database.AttachReview(ctx, 12345, 77), ErrSuggestionNotExist)
}
