// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the settings of the jobsched command.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config handles configuring a run of the jobsched command.
type Config struct {
	Input  Input  `yaml:"input"`
	Output Output `yaml:"output"`
	Run    Run    `yaml:"run"`
	Log    Log    `yaml:"log"`
}

// Input selects the files that become jobs.
type Input struct {
	Path      string `yaml:"path"`      // Local directory or bucket URL. Prompted for when empty.
	Ext       string `yaml:"ext"`       // Extension of the files read.
	Recursive bool   `yaml:"recursive"` // Descend into subdirectories.
	Prefix    string `yaml:"prefix"`    // Key prefix within a bucket.
	Encoding  string `yaml:"encoding"`  // Text encoding of the inputs. Empty is UTF-8.
	MinLength int    `yaml:"min_length"`
}

// Output selects where the grouped result goes.
type Output struct {
	Path   string `yaml:"path"`   // Local file, or bucket URL with Key.
	Key    string `yaml:"key"`    // Object key when Path is a bucket URL.
	Format string `yaml:"format"` // csv, json, or proto.
	Sorted bool   `yaml:"sorted"` // Write keys in ascending order.
	SQLite string `yaml:"sqlite"` // Optional database also receiving the result.
}

// Run controls execution.
type Run struct {
	Parallelism int           `yaml:"parallelism"`
	JobTimeout  time.Duration `yaml:"job_timeout"` // Zero means no timeout.
	Retries     int           `yaml:"retries"`     // Extra attempts for a failing job.
}

// Log controls diagnostics written to stderr.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, or error.
	Format string `yaml:"format"` // text or json.
}

// Default returns the configuration reproducing the classic behavior:
// read .txt files from a prompted directory, count anagrams of words of
// four letters or more, and write count_anagrams.csv.
func Default() Config {
	return Config{
		Input: Input{
			Ext:       ".txt",
			MinLength: 4,
		},
		Output: Output{
			Path:   "count_anagrams.csv",
			Key:    "count_anagrams.csv",
			Format: "csv",
			Sorted: true,
		},
		Run: Run{
			Parallelism: 1,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. Fields missing from
// the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "config")
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that can't work.
func (c Config) Validate() error {
	switch c.Output.Format {
	case "csv", "json", "proto":
	default:
		return errors.Errorf("config: unknown output format %q", c.Output.Format)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Run.Parallelism < 0 || c.Run.Retries < 0 || c.Run.JobTimeout < 0 {
		return errors.New("config: parallelism, retries, and job_timeout must not be negative")
	}
	if c.Input.MinLength < 1 {
		return errors.Errorf("config: min_length must be positive, got %d", c.Input.MinLength)
	}
	return nil
}

// SlogLevel parses the configured level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return lvl, errors.Wrap(err, "config")
	}
	return lvl, nil
}
