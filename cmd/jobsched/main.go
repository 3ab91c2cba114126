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

// jobsched groups the words of a set of text files by their letters and
// writes how many words share each group of letters.
//
// Inputs are the files with a given extension in a local directory or a
// blob bucket. When no input is given on the command line or in the
// configuration file, the directory is read from standard input.
//
//	jobsched -input ./books -output counts.csv
//	jobsched -config run.yaml -input s3://corpus?region=eu-west-1 -output mem://
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/jba/slog/handlers/loghandler"
	"github.com/pkg/errors"
	"lostluck.dev/jobsched"
	"lostluck.dev/jobsched/coders"
	"lostluck.dev/jobsched/internal/config"
	"lostluck.dev/jobsched/internal/runlog"
	"lostluck.dev/jobsched/transforms/anagram"
	"lostluck.dev/jobsched/transforms/io/blobio"
	"lostluck.dev/jobsched/transforms/io/fileio"
	"lostluck.dev/jobsched/transforms/io/sqlio"

	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

const prompt = "Enter the path of a directory: "

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}
	if cfg.Input.Path == "" {
		if cfg.Input.Path, err = ask(stdin, stdout); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	source, err := newSource(ctx, cfg, &closers)
	if err != nil {
		return err
	}
	sink, err := newSink(ctx, cfg, &closers)
	if err != nil {
		return err
	}

	s := jobsched.New(source, sink,
		jobsched.Name("anagrams"),
		jobsched.Parallelism(cfg.Run.Parallelism),
		jobsched.Logger(logger))
	if _, err := s.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "jobsched: all steps have been performed without error")
	return nil
}

// parseConfig layers command line flags over the configuration file, which
// is itself layered over the defaults.
func parseConfig(args []string, stderr io.Writer) (config.Config, error) {
	fs := flag.NewFlagSet("jobsched", flag.ContinueOnError)
	fs.SetOutput(stderr)

	def := config.Default()
	var (
		configPath = fs.String("config", "", "YAML file with settings; flags override its values")
		input      = fs.String("input", "", "directory or bucket URL holding the input files")
		ext        = fs.String("ext", def.Input.Ext, "extension of the input files")
		recursive  = fs.Bool("recursive", def.Input.Recursive, "read input files in subdirectories too")
		prefix     = fs.String("prefix", def.Input.Prefix, "key prefix of the input objects in a bucket")
		encoding   = fs.String("encoding", def.Input.Encoding, "text encoding of the input files, such as latin1")
		minLength  = fs.Int("min_length", def.Input.MinLength, "shortest word counted")
		output     = fs.String("output", def.Output.Path, "output file or bucket URL")
		key        = fs.String("key", def.Output.Key, "output object key when -output is a bucket URL")
		format     = fs.String("format", def.Output.Format, fmt.Sprintf("output format, one of %v", coders.Formats))
		sorted     = fs.Bool("sorted", def.Output.Sorted, "write keys in ascending order")
		sqlite     = fs.String("sqlite", def.Output.SQLite, "SQLite database also receiving the result")
		par        = fs.Int("parallelism", def.Run.Parallelism, "maximum number of files processed at once")
		timeout    = fs.Duration("job_timeout", def.Run.JobTimeout, "time limit for processing one file; zero is unlimited")
		retries    = fs.Int("retries", def.Run.Retries, "extra attempts for a file that fails to process")
		logLevel   = fs.String("log_level", def.Log.Level, "minimum level logged to stderr")
		logFormat  = fs.String("log_format", def.Log.Format, "log format, text or json")
	)
	if err := fs.Parse(args); err != nil {
		return def, err
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Path = *input
		case "ext":
			cfg.Input.Ext = *ext
		case "recursive":
			cfg.Input.Recursive = *recursive
		case "prefix":
			cfg.Input.Prefix = *prefix
		case "encoding":
			cfg.Input.Encoding = *encoding
		case "min_length":
			cfg.Input.MinLength = *minLength
		case "output":
			cfg.Output.Path = *output
		case "key":
			cfg.Output.Key = *key
		case "format":
			cfg.Output.Format = *format
		case "sorted":
			cfg.Output.Sorted = *sorted
		case "sqlite":
			cfg.Output.SQLite = *sqlite
		case "parallelism":
			cfg.Run.Parallelism = *par
		case "job_timeout":
			cfg.Run.JobTimeout = *timeout
		case "retries":
			cfg.Run.Retries = *retries
		case "log_level":
			cfg.Log.Level = *logLevel
		case "log_format":
			cfg.Log.Format = *logFormat
		}
	})
	return cfg, cfg.Validate()
}

// ask prompts for the input directory on stdout and reads it from stdin.
func ask(stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, prompt)
	sc := bufio.NewScanner(stdin)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", errors.Wrap(err, "jobsched: reading input directory")
		}
		return "", errors.New("jobsched: no input directory given")
	}
	path := strings.TrimSpace(sc.Text())
	if path == "" {
		return "", errors.New("jobsched: no input directory given")
	}
	return path, nil
}

func newLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = loghandler.New(w, opts)
	}
	return slog.New(runlog.New(h, lvl)), nil
}

func newFactory(cfg config.Config) (jobsched.JobFactory[string, string], error) {
	opts := []anagram.Option{anagram.MinLength(cfg.Input.MinLength)}
	enc, err := anagram.LookupEncoding(cfg.Input.Encoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		opts = append(opts, anagram.Encoding(enc))
	}
	base := anagram.Factory(opts...)
	return func(name string, open jobsched.OpenFunc) jobsched.Job[string, string] {
		job := base(name, open)
		if cfg.Run.JobTimeout > 0 {
			job = jobsched.WithTimeout(job, cfg.Run.JobTimeout)
		}
		if cfg.Run.Retries > 0 {
			job = jobsched.WithRetry(job, func() backoff.BackOff {
				return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.Run.Retries))
			})
		}
		return job
	}, nil
}

func newSource(ctx context.Context, cfg config.Config, closers *[]io.Closer) (jobsched.Source[string, string], error) {
	factory, err := newFactory(cfg)
	if err != nil {
		return nil, err
	}
	in := cfg.Input
	if !blobio.IsURL(in.Path) {
		return fileio.Dir(in.Path, factory, fileio.Ext(in.Ext), fileio.Recursive(in.Recursive)), nil
	}
	b, err := blobio.Open(ctx, in.Path)
	if err != nil {
		return nil, &jobsched.SourceDiscoveryError{Source: in.Path, Err: err}
	}
	*closers = append(*closers, b)
	return blobio.Source(b, in.Path, factory,
		blobio.Prefix(in.Prefix), blobio.Ext(in.Ext), blobio.Recursive(in.Recursive)), nil
}

func newSink(ctx context.Context, cfg config.Config, closers *[]io.Closer) (jobsched.Sink[string, string], error) {
	out := cfg.Output
	order := coders.Unordered[string, string]()
	if out.Sorted {
		order = coders.Sorted[string, string]()
	}
	coder, err := coders.ForFormat(out.Format, order)
	if err != nil {
		return nil, err
	}

	// The database goes first: it commits in one transaction, so if it
	// fails no output file has been written yet.
	var sinks []jobsched.Sink[string, string]
	if out.SQLite != "" {
		store, err := sqlio.Open(out.SQLite)
		if err != nil {
			return nil, &jobsched.SinkOutputError{Sink: out.SQLite, Err: err}
		}
		*closers = append(*closers, store)
		sinks = append(sinks, sqlio.Sink[string, string](store, true))
	}

	if blobio.IsURL(out.Path) {
		b, err := blobio.Open(ctx, out.Path)
		if err != nil {
			return nil, &jobsched.SinkOutputError{Sink: out.Path, Err: err}
		}
		*closers = append(*closers, b)
		sinks = append(sinks, blobio.Sink(b, out.Key, coder))
	} else {
		sinks = append(sinks, fileio.File(out.Path, coder))
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return jobsched.Multiplex(sinks...), nil
}
