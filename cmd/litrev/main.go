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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/litrev/litrev/base/log"
	"github.com/litrev/litrev/cmd/version"
	"github.com/litrev/litrev/config"
	"github.com/litrev/litrev/logics"
	"github.com/litrev/litrev/model"
	"github.com/litrev/litrev/storage/artifact"
	"github.com/litrev/litrev/storage/blob"
	"github.com/litrev/litrev/storage/data"
)

var rootCommand = &cobra.Command{
	Use:   "litrev",
	Short: "Paper suggestion engine for literature review.",
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of litrev.",
	Run: func(*cobra.Command, []string) {
		fmt.Println(version.BuildInfo())
	},
}

// stores bundles the opened storage layers of a command run.
type stores struct {
	database  data.Database
	artifacts *artifact.Store
	config    *config.Config
	closers   []func() error
}

func (s *stores) Close() {
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			log.Logger().Error("failed to close store", zap.Error(err))
		}
	}
}

func openStores(cmd *cobra.Command) *stores {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	s := &stores{config: conf}
	s.database, err = data.Open(conf.Database.DataStore)
	if err != nil {
		log.Logger().Fatal("failed to open data store", zap.Error(err))
	}
	s.closers = append(s.closers, s.database.Close)
	if err = s.database.Init(); err != nil {
		log.Logger().Fatal("failed to init data store", zap.Error(err))
	}
	artifactDatabase, err := artifact.Open(conf.Database.ArtifactStore)
	if err != nil {
		log.Logger().Fatal("failed to open artifact store", zap.Error(err))
	}
	s.closers = append(s.closers, artifactDatabase.Close)
	if err = artifactDatabase.Init(); err != nil {
		log.Logger().Fatal("failed to init artifact store", zap.Error(err))
	}
	s.artifacts = artifact.NewStore(artifactDatabase, blob.NewPOSIX(conf.Database.BlobStore))
	return s
}

var exportCommand = &cobra.Command{
	Use:   "export-datasets",
	Short: "Export reviews and papers as the latest training datasets.",
	Run: func(cmd *cobra.Command, _ []string) {
		s := openStores(cmd)
		defer s.Close()
		ctx := context.Background()
		exporter := logics.NewExporter(s.database, s.artifacts)
		reviews, err := exporter.ExportReviews(ctx)
		if err != nil {
			log.Logger().Fatal("failed to export reviews", zap.Error(err))
		}
		papers, err := exporter.ExportPapers(ctx)
		if err != nil {
			log.Logger().Fatal("failed to export papers", zap.Error(err))
		}
		fmt.Printf("exported reviews dataset %s and papers dataset %s\n", reviews.ID, papers.ID)
	},
}

var trainCommand = &cobra.Command{
	Use:   "train-model [type]",
	Short: "Cross-validate and train a model on the latest datasets.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStores(cmd)
		defer s.Close()
		modelType := model.Type(s.config.Recommend.ModelType)
		if len(args) > 0 {
			modelType = model.Type(args[0])
		}
		paramsJSON, _ := cmd.Flags().GetString("params")
		params, err := model.DecodeParams([]byte(paramsJSON))
		if err != nil {
			log.Logger().Fatal("failed to parse hyper-parameters", zap.Error(err))
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		trainer := logics.NewTrainer(s.artifacts)
		result, err := trainer.Train(context.Background(), modelType, params, verbose)
		if err != nil {
			log.Logger().Fatal("failed to train model", zap.Error(err))
		}
		fmt.Printf("trained %s (rmse %.4f, mae %.4f), stored as %s\n",
			modelType, result.Validation.MeanRMSE(), result.Validation.MeanMAE(), result.Artifact.Name)
	},
}

var generateCommand = &cobra.Command{
	Use:   "generate-suggestions [type]",
	Short: "Generate paper suggestions for recently active users.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStores(cmd)
		defer s.Close()
		modelType := model.Type(s.config.Recommend.ModelType)
		if len(args) > 0 {
			modelType = model.Type(args[0])
		}
		generateConfig := logics.GenerateConfig{
			Type:           modelType,
			MaxPapers:      s.config.Recommend.MaxPapers,
			PageSize:       s.config.Recommend.PageSize,
			ReuseDays:      &s.config.Recommend.ReuseDays,
			ActiveUserDays: s.config.Recommend.ActiveUserDays,
		}
		if cmd.Flags().Changed("max") {
			generateConfig.MaxPapers, _ = cmd.Flags().GetInt("max")
		}
		if cmd.Flags().Changed("offset") {
			generateConfig.PageSize, _ = cmd.Flags().GetInt("offset")
		}
		if cmd.Flags().Changed("start") {
			generateConfig.StartOffset, _ = cmd.Flags().GetInt("start")
		}
		if cmd.Flags().Changed("reuse-days") {
			reuseDays, _ := cmd.Flags().GetInt("reuse-days")
			generateConfig.ReuseDays = &reuseDays
		}
		if cmd.Flags().Changed("users") {
			generateConfig.UserIds, _ = cmd.Flags().GetInt64Slice("users")
		}
		generator := logics.NewGenerator(s.database, s.artifacts)
		report, err := generator.Generate(context.Background(), generateConfig)
		if err != nil {
			log.Logger().Fatal("failed to generate suggestions", zap.Error(err))
		}
		fmt.Printf("scanned %d papers, created %d suggestions for %d users with model %s\n",
			report.PapersScanned, report.SuggestionsCreated, report.UsersTargeted, report.ModelId)
	},
}

var positionCommand = &cobra.Command{
	Use:   "recompute-position-index",
	Short: "Recompute the dense position index of all papers.",
	Run: func(cmd *cobra.Command, _ []string) {
		s := openStores(cmd)
		defer s.Close()
		changed, err := logics.RecomputePositionIndex(context.Background(), s.database)
		if err != nil {
			log.Logger().Fatal("failed to recompute position index", zap.Error(err))
		}
		fmt.Printf("position index updated for %d papers\n", changed)
	},
}

var refreshCommand = &cobra.Command{
	Use:   "refresh-ratings",
	Short: "Recompute rating aggregates and popularity scores from active reviews.",
	Run: func(cmd *cobra.Command, _ []string) {
		s := openStores(cmd)
		defer s.Close()
		updated, err := s.database.RefreshPaperRatings(context.Background(), time.Now())
		if err != nil {
			log.Logger().Fatal("failed to refresh ratings", zap.Error(err))
		}
		fmt.Printf("rating aggregates updated for %d papers\n", updated)
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "config.toml", "configuration file path")
	rootCommand.PersistentFlags().BoolP("version", "v", false, "litrev version")
	trainCommand.Flags().String("params", "", "hyper-parameters as a json object")
	trainCommand.Flags().Bool("verbose", false, "show a progress bar while fitting")
	generateCommand.Flags().Int("start", 0, "skip the most popular papers")
	generateCommand.Flags().Int("offset", 0, "papers fetched and inserted per page")
	generateCommand.Flags().Int("max", 0, "bound on scanned papers")
	generateCommand.Flags().Int("reuse-days", 0, "days before a pair may be suggested again, 0 disables the reuse check")
	generateCommand.Flags().Int64Slice("users", nil, "restrict target users")
	rootCommand.AddCommand(versionCommand, exportCommand, trainCommand,
		generateCommand, positionCommand, refreshCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
