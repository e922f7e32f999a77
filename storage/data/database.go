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

// Package data implements the relational layer for papers, reviews, users
// and suggestions over MySQL, PostgreSQL and SQLite.
package data

import (
	"context"
	"database/sql"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/litrev/litrev/storage"
)

var (
	ErrPaperNotExist      = errors.NotFoundf("paper")
	ErrSuggestionNotExist = errors.NotFoundf("suggestion")
)

// Paper stores metadata and rating aggregates about a paper.
type Paper struct {
	PaperId          int64  `gorm:"column:paper_id;primaryKey"`
	Title            string `gorm:"column:title"`
	PublishedAt      *time.Time
	RatingAverage    *float64
	RatingCount      *int64
	Score            *float64 `gorm:"column:score"`
	PositionIndex    *int64
	LastRatingUpdate *time.Time
}

// User stores the activity timestamp consumed from the identity
// collaborator.
type User struct {
	UserId       int64 `gorm:"column:user_id;primaryKey"`
	LastActiveAt time.Time
}

// Review stores a user rating for a paper. Only active reviews feed
// aggregates and training datasets.
type Review struct {
	Id        int64 `gorm:"column:id;primaryKey;autoIncrement"`
	UserId    int64 `gorm:"column:user_id;index"`
	PaperId   int64 `gorm:"column:paper_id;index"`
	Rating    float64
	Comment   string
	Active    bool
	CreatedAt time.Time
}

// Suggestion stores a predicted-interest record produced by the batch
// generator. Suggestions are never deleted; the only mutation is linking
// the review that later confirmed them.
type Suggestion struct {
	Id        int64 `gorm:"column:id;primaryKey;autoIncrement"`
	UserId    int64 `gorm:"column:user_id;index"`
	PaperId   int64 `gorm:"column:paper_id;index"`
	Value     float32
	CreatedAt time.Time
	ModelId   string
	ReviewId  *int64
	Active    bool
}

// PaperPosition pairs a paper with its stored position index.
type PaperPosition struct {
	PaperId       int64
	PositionIndex *int64
}

// PopularityMode selects how the popularity score is obtained.
type PopularityMode int

const (
	// PopularityStored orders by the precomputed score column.
	PopularityStored PopularityMode = iota
	// PopularityLive aggregates active reviews at query time.
	PopularityLive
)

// Database is the interface of the relational layer.
type Database interface {
	Close() error
	Init() error
	// papers
	BatchInsertPapers(ctx context.Context, papers []Paper) error
	GetPaper(ctx context.Context, paperId int64) (Paper, error)
	DeletePaper(ctx context.Context, paperId int64) error
	ListPapers(ctx context.Context) ([]Paper, error)
	// ListPapersByPopularity pages through papers ordered by popularity.
	// Papers without a score sort after every scored paper in both
	// directions.
	ListPapersByPopularity(ctx context.Context, mode PopularityMode, desc bool, offset, limit int) ([]Paper, error)
	// RefreshPaperRatings recomputes rating_average, rating_count and
	// score = average x count from active reviews. Returns the number of
	// updated papers.
	RefreshPaperRatings(ctx context.Context, now time.Time) (int, error)
	// ListPaperPositions returns (paper id, position index) pairs ordered
	// by ascending paper id.
	ListPaperPositions(ctx context.Context) ([]PaperPosition, error)
	UpdatePositionIndex(ctx context.Context, paperId, index int64) error
	// users
	BatchInsertUsers(ctx context.Context, users []User) error
	ListRecentUsers(ctx context.Context, since time.Time) ([]int64, error)
	// reviews
	BatchInsertReviews(ctx context.Context, reviews []Review) error
	ListActiveReviews(ctx context.Context) ([]Review, error)
	// suggestions
	BatchInsertSuggestions(ctx context.Context, suggestions []Suggestion) error
	CountSuggestions(ctx context.Context) (int64, error)
	// RecentSuggestedUsers returns, for each paper, the users that already
	// received an active suggestion for it since the given time. Built in
	// one batched query.
	RecentSuggestedUsers(ctx context.Context, paperIds, userIds []int64, since time.Time) (map[int64]mapset.Set[int64], error)
	AttachReview(ctx context.Context, suggestionId, reviewId int64) error
	// ListSuggestions returns the most recent active suggestion per paper
	// for a user, newest first.
	ListSuggestions(ctx context.Context, userId int64, n int) ([]Suggestion, error)
}

// Open a connection to a database.
func Open(path string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		if database.client, err = sql.Open("mysql", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.gormDB, err = gorm.Open(postgres.Open(path), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		if database.client, err = database.gormDB.DB(); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		if database.client, err = sql.Open("sqlite", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
