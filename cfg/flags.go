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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBindings maps each flag name to the config key it overlays. The
// binding in Load walks this table; RegisterFlags defines each flag itself,
// so a new option is added in exactly two places: here and in RegisterFlags.
var flagBindings = map[string]string{
	"metadata-cache-enabled":       "metadata-cache.enabled",
	"metadata-cache-type":          "metadata-cache.type",
	"metadata-cache-base-path":     "metadata-cache.base-path",
	"metadata-cache-max-entry-age": "metadata-cache.max-entry-age",
	"metadata-cache-max-info-age":  "metadata-cache.max-info-age",
	"infer-implicit-directories":   "infer-implicit-directories",
	"create-marker-files":          "create-marker-files",
	"timestamp-updates-enabled":    "timestamp-updates.enabled",
	"timestamp-updates-includes":   "timestamp-updates.includes",
	"timestamp-updates-excludes":   "timestamp-updates.excludes",
	"timestamp-updates-workers":    "timestamp-updates.workers",
	"reported-permissions":         "reported-permissions",
	"write-chunk-size":             "write-chunk-size",
	"retry-initial":                "retries.initial",
	"retry-max":                    "retries.max",
	"retry-multiplier":             "retries.multiplier",
	"retry-max-retries":            "retries.max-retries",
	"log-severity":                 "logging.severity",
	"log-format":                   "logging.format",
	"log-file-path":                "logging.file-path",
}

// RegisterFlags defines every recognized option on flagSet, with defaults
// taken from Default() so the flag help and the resolved config can't
// drift apart. The adapter that owns the command line calls this once,
// parses, then hands the flagSet to Load.
func RegisterFlags(flagSet *pflag.FlagSet) {
	d := Default()

	flagSet.BoolP("metadata-cache-enabled", "", d.MetadataCache.Enabled, "Cache bucket and object entries to mask eventually-consistent listings.")
	flagSet.StringP("metadata-cache-type", "", string(d.MetadataCache.Type), "Cache backend: IN_MEMORY or FILESYSTEM_BACKED.")
	flagSet.StringP("metadata-cache-base-path", "", "", "Base directory for the FILESYSTEM_BACKED cache; required with that type.")
	flagSet.DurationP("metadata-cache-max-entry-age", "", d.MetadataCache.MaxEntryAge, "Age past which a cache entry is dropped entirely.")
	flagSet.DurationP("metadata-cache-max-info-age", "", d.MetadataCache.MaxInfoAge, "Age past which a cached item info must be refetched before being trusted.")
	flagSet.BoolP("infer-implicit-directories", "", d.InferImplicitDirectories, "Report directories that exist only as prefixes of object names.")
	flagSet.BoolP("create-marker-files", "", d.CreateMarkerFiles, "Materialize a zero-byte placeholder before returning a writer, to fail fast on conflicts.")
	flagSet.BoolP("timestamp-updates-enabled", "", d.TimestampUpdates.Enabled, "Best-effort parent directory mtime updates on child changes.")
	flagSet.StringSliceP("timestamp-updates-includes", "", nil, "Substrings a parent path must match to receive mtime updates; empty means all.")
	flagSet.StringSliceP("timestamp-updates-excludes", "", nil, "Substrings that exempt a parent path from mtime updates.")
	flagSet.IntP("timestamp-updates-workers", "", d.TimestampUpdates.Workers, "Worker goroutines backing the timestamp updater.")
	flagSet.Uint32P("reported-permissions", "", d.ReportedPermissions, "Advisory permission bits reported on every FileInfo.")
	flagSet.Int64P("write-chunk-size", "", d.WriteChunkSize, "Upload chunk size in bytes; values below 8 MiB round up.")
	flagSet.DurationP("retry-initial", "", d.Retries.Initial, "Initial backoff delay for transient RPC failures.")
	flagSet.DurationP("retry-max", "", d.Retries.Max, "Backoff delay ceiling.")
	flagSet.Float64P("retry-multiplier", "", d.Retries.Multiplier, "Backoff delay growth factor.")
	flagSet.IntP("retry-max-retries", "", d.Retries.MaxRetries, "Attempts before a transient failure is surfaced.")
	flagSet.StringP("log-severity", "", d.Logging.Severity, "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	flagSet.StringP("log-format", "", d.Logging.Format, "Log output format: text or json.")
	flagSet.StringP("log-file-path", "", "", "Log file path; empty logs to stderr.")
}

// bindFlags binds each flag registered by RegisterFlags to its config key
// on v. Flags missing from flagSet (an adapter exposing a subset) are
// skipped rather than treated as errors.
func bindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	for flagName, key := range flagBindings {
		f := flagSet.Lookup(flagName)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
