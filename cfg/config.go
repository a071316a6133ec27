// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg holds the options recognized by the facade. Flag/CLI
// parsing is the job of an external adapter; this package only defines
// the shape of the resolved configuration and a loader that reads it
// from a YAML file and the environment.
package cfg

import (
	"fmt"
	"time"
)

// CacheType selects the directory list cache backend.
type CacheType string

const (
	InMemory         CacheType = "IN_MEMORY"
	FilesystemBacked CacheType = "FILESYSTEM_BACKED"
)

type MetadataCacheConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	Type        CacheType     `yaml:"type" mapstructure:"type"`
	BasePath    string        `yaml:"base-path" mapstructure:"base-path"`
	MaxEntryAge time.Duration `yaml:"max-entry-age" mapstructure:"max-entry-age"`
	MaxInfoAge  time.Duration `yaml:"max-info-age" mapstructure:"max-info-age"`
}

type RetryConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
	MaxRetries int           `yaml:"max-retries" mapstructure:"max-retries"`
}

type TimestampUpdatesConfig struct {
	Enabled  bool     `yaml:"enabled" mapstructure:"enabled"`
	Includes []string `yaml:"includes,omitempty" mapstructure:"includes"`
	Excludes []string `yaml:"excludes,omitempty" mapstructure:"excludes"`
	Workers  int      `yaml:"workers" mapstructure:"workers"`
}

type LoggingConfig struct {
	Severity string `yaml:"severity" mapstructure:"severity"`
	Format   string `yaml:"format" mapstructure:"format"`
	FilePath string `yaml:"file-path" mapstructure:"file-path"`
}

// Config is the fully resolved set of options the facade consumes.
type Config struct {
	MetadataCache MetadataCacheConfig `yaml:"metadata-cache" mapstructure:"metadata-cache"`

	InferImplicitDirectories bool `yaml:"infer-implicit-directories" mapstructure:"infer-implicit-directories"`
	CreateMarkerFiles        bool `yaml:"create-marker-files" mapstructure:"create-marker-files"`

	TimestampUpdates TimestampUpdatesConfig `yaml:"timestamp-updates" mapstructure:"timestamp-updates"`

	ReportedPermissions uint32 `yaml:"reported-permissions" mapstructure:"reported-permissions"`
	WriteChunkSize      int64  `yaml:"write-chunk-size" mapstructure:"write-chunk-size"`

	Retries RetryConfig `yaml:"retries" mapstructure:"retries"`

	Logging LoggingConfig `yaml:"logging"`
}

const minWriteChunkSize = 8 << 20 // 8 MiB.

// Default returns the documented defaults.
func Default() Config {
	return Config{
		MetadataCache: MetadataCacheConfig{
			Enabled:     true,
			Type:        InMemory,
			MaxEntryAge: 4 * time.Hour,
			MaxInfoAge:  5 * time.Second,
		},
		InferImplicitDirectories: true,
		CreateMarkerFiles:        false,
		TimestampUpdates: TimestampUpdatesConfig{
			Enabled: true,
			Workers: 2,
		},
		ReportedPermissions: 0700,
		WriteChunkSize:      minWriteChunkSize,
		Retries: RetryConfig{
			Initial:    time.Second,
			Max:        30 * time.Second,
			Multiplier: 2,
			MaxRetries: 10,
		},
		Logging: LoggingConfig{
			Severity: "INFO",
			Format:   "text",
		},
	}
}

// Validate rationalizes the user-supplied config: round small chunk
// sizes up, and require a base path when the filesystem-backed cache is
// selected.
func (c *Config) Validate() error {
	if c.MetadataCache.Type == FilesystemBacked && c.MetadataCache.BasePath == "" {
		return fmt.Errorf("cfg: metadata-cache.base-path is required when type is %s", FilesystemBacked)
	}

	if c.WriteChunkSize <= 0 {
		c.WriteChunkSize = minWriteChunkSize
	} else if c.WriteChunkSize < minWriteChunkSize {
		c.WriteChunkSize = minWriteChunkSize
	} else if c.WriteChunkSize%minWriteChunkSize != 0 {
		// Not fatal: round up to the nearest multiple instead of rejecting.
		rounded := ((c.WriteChunkSize / minWriteChunkSize) + 1) * minWriteChunkSize
		c.WriteChunkSize = rounded
	}

	if c.TimestampUpdates.Workers <= 0 {
		c.TimestampUpdates.Workers = 2
	}

	return nil
}
