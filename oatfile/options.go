// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oatfile

import (
	"io"
	"log/slog"
)

// Option configures writers, builders and relocation.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	bufferSize int
}

// WithLogger sets an optional logger for progress updates.  If not
// provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithBufferSize sets the size of the write buffer in front of the
// output file.
func WithBufferSize(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.bufferSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
