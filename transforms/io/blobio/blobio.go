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

// Package blobio reads jobs from and writes results to blob storage
// buckets, such as local directories, memory, S3, or GCS, through the
// Go CDK.
package blobio

import (
	"context"
	"io"
	"iter"
	"strings"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"lostluck.dev/jobsched"
	"lostluck.dev/jobsched/coders"

	// Schemes available to every binary using this package.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Open opens the bucket at urlstr, such as "file:///data" or "mem://".
// Cloud schemes are available once the matching driver package, such as
// gocloud.dev/blob/s3blob, is linked in.
func Open(ctx context.Context, urlstr string) (*blob.Bucket, error) {
	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, errors.Wrapf(err, "blobio: opening bucket %s", urlstr)
	}
	return b, nil
}

// IsURL reports whether s names a bucket rather than a local path.
func IsURL(s string) bool {
	scheme, _, ok := strings.Cut(s, "://")
	return ok && scheme != ""
}

// ListOption configures a bucket source.
type ListOption func(*bucketSource)

// Prefix restricts the source to keys starting with prefix.
func Prefix(prefix string) ListOption {
	return func(s *bucketSource) { s.prefix = prefix }
}

// Ext restricts the source to keys ending in ext, ignoring case.
func Ext(ext string) ListOption {
	return func(s *bucketSource) { s.ext = strings.ToLower(ext) }
}

// Recursive includes keys below the first path delimiter after the prefix.
func Recursive(r bool) ListOption {
	return func(s *bucketSource) { s.recursive = r }
}

type bucketSource struct {
	name      string
	prefix    string
	ext       string
	recursive bool
}

// Source returns a Source emitting one job per matching object in b.
// name identifies the bucket in errors and job names. Objects are listed
// when the run starts and opened lazily when their job executes.
func Source[K jobsched.Keys, V any](b *blob.Bucket, name string, factory jobsched.JobFactory[K, V], opts ...ListOption) jobsched.Source[K, V] {
	s := &bucketSource{name: name}
	for _, opt := range opts {
		opt(s)
	}
	return jobsched.SourceFunc[K, V](func(ctx context.Context) (iter.Seq[jobsched.Job[K, V]], error) {
		keys, err := s.list(ctx, b)
		if err != nil {
			return nil, &jobsched.SourceDiscoveryError{Source: name, Err: err}
		}
		return func(yield func(jobsched.Job[K, V]) bool) {
			for _, key := range keys {
				open := func(ctx context.Context) (io.ReadCloser, error) {
					return b.NewReader(ctx, key, nil)
				}
				if !yield(factory(name+"/"+key, open)) {
					return
				}
			}
		}, nil
	})
}

func (s *bucketSource) list(ctx context.Context, b *blob.Bucket) ([]string, error) {
	opts := &blob.ListOptions{Prefix: s.prefix}
	if !s.recursive {
		opts.Delimiter = "/"
	}
	var keys []string
	it := b.List(opts)
	for {
		obj, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				return nil, errors.Wrapf(err, "blobio: %s does not exist", s.name)
			}
			return nil, errors.Wrapf(err, "blobio: listing %s", s.name)
		}
		if obj.IsDir || !strings.HasSuffix(strings.ToLower(obj.Key), s.ext) {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Sink returns a Sink encoding the grouped result with coder into the
// object key of b. The object is only committed if encoding succeeds.
func Sink[K jobsched.Keys, V any](b *blob.Bucket, key string, coder coders.Coder[K, V]) jobsched.Sink[K, V] {
	return jobsched.SinkFunc[K, V](func(ctx context.Context, g *jobsched.Grouped[K, V]) error {
		if err := write(ctx, b, key, func(w io.Writer) error { return coder.Encode(ctx, w, g) }); err != nil {
			return &jobsched.SinkOutputError{Sink: key, Err: err}
		}
		return nil
	})
}

func write(ctx context.Context, b *blob.Bucket, key string, enc func(io.Writer) error) error {
	// Cancelling the writer's context before Close discards the object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := b.NewWriter(wctx, key, nil)
	if err != nil {
		return errors.Wrap(err, "blobio")
	}
	if err := enc(w); err != nil {
		cancel()
		w.Close()
		return errors.Wrap(err, "blobio: encoding")
	}
	return errors.Wrap(w.Close(), "blobio")
}
