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

// Package config loads and validates the engine configuration.
package config

import (
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/viper"

	"github.com/litrev/litrev/storage"
)

// Config is the configuration for the engine.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// DatabaseConfig is the configuration for the stores.
type DatabaseConfig struct {
	// database for papers, users, reviews and suggestions
	DataStore string `mapstructure:"data_store"`
	// database for artifact metadata
	ArtifactStore string `mapstructure:"artifact_store"`
	// directory for artifact payloads
	BlobStore string `mapstructure:"blob_store"`
}

// RecommendConfig is the configuration for suggestion generation.
type RecommendConfig struct {
	ModelType      string `mapstructure:"model_type"`
	ActiveUserDays int    `mapstructure:"active_user_days"`
	// ReuseDays of zero disables the reuse check entirely.
	ReuseDays int `mapstructure:"reuse_days"`
	MaxPapers      int    `mapstructure:"max_papers"`
	PageSize       int    `mapstructure:"page_size"`
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore:     "sqlite://litrev/data.db",
			ArtifactStore: "sqlite://litrev/artifact.db",
			BlobStore:     "litrev/blob",
		},
		Recommend: RecommendConfig{
			ModelType:      "svd",
			ActiveUserDays: 7,
			ReuseDays:      7,
			MaxPapers:      1000,
			PageSize:       100,
		},
	}
}

// Validate checks stores and windows.
func (config *Config) Validate() error {
	if !storage.ValidPath(config.Database.DataStore) {
		return errors.Errorf("unsupported data store scheme: %s", config.Database.DataStore)
	}
	if !strings.HasPrefix(config.Database.ArtifactStore, storage.SQLitePrefix) {
		return errors.Errorf("unsupported artifact store scheme: %s", config.Database.ArtifactStore)
	}
	if config.Database.BlobStore == "" {
		return errors.New("blob store directory is required")
	}
	if config.Recommend.ActiveUserDays <= 0 {
		return errors.New("active_user_days must be positive")
	}
	if config.Recommend.ReuseDays < 0 {
		return errors.New("reuse_days must not be negative")
	}
	if config.Recommend.MaxPapers <= 0 {
		return errors.New("max_papers must be positive")
	}
	if config.Recommend.PageSize <= 0 {
		return errors.New("page_size must be positive")
	}
	return nil
}

// LoadConfig loads the configuration from a toml file. Missing keys keep
// their defaults.
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()
	viper.SetConfigType("toml")
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return config, nil
}
