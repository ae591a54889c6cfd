// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clog provides context aware logging.
// It can store arbitrary labels to each context.
// The main use case is to add the manifest being processed to each log
// entry automatically.
package clog

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
)

type contextKeyType int

var contextKey contextKeyType

// New creates a new Logger that writes to w at level or above.
func New(w io.Writer, level log.Level) *Logger {
	return &Logger{
		logger: log.NewWithOptions(w, log.Options{
			Level:  level,
			Prefix: "cmakedeps",
		}),
	}
}

// NewContext sets the given logger to the context.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// NewSpan sets a new logger.Span with the given labels to the context.
func NewSpan(ctx context.Context, labels map[string]string) context.Context {
	return NewContext(ctx, FromContext(ctx).Span(labels))
}

// FromContext returns a logger in the context, or the default logger
// if it's not set.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey).(*Logger)
	if !ok {
		return &Logger{logger: log.Default()}
	}
	return logger
}

// Logger holds arbitrary labels of the context.
type Logger struct {
	logger *log.Logger
	labels map[string]string
}

// Span returns a sub logger with the labels added.
func (l *Logger) Span(labels map[string]string) *Logger {
	merged := make(map[string]string, len(l.labels)+len(labels))
	maps.Copy(merged, l.labels)
	maps.Copy(merged, labels)
	keyvals := make([]any, 0, 2*len(labels))
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		keyvals = append(keyvals, k, labels[k])
	}
	return &Logger{
		logger: l.logger.With(keyvals...),
		labels: merged,
	}
}

// Labels returns labels of the logger.
func (l *Logger) Labels() map[string]string {
	return maps.Clone(l.labels)
}

// Level returns the log level.
func (l *Logger) Level() log.Level {
	return l.logger.GetLevel()
}

// Debugf logs at debug log level in the manner of fmt.Printf.
func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Debugf logs at debug log level in the manner of fmt.Printf.
func Debugf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Debugf(format, args...)
}

// Infof logs at info log level in the manner of fmt.Printf.
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Infof logs at info log level in the manner of fmt.Printf.
func Infof(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Infof(format, args...)
}

// Warningf logs at warning log level in the manner of fmt.Printf.
func (l *Logger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Warningf logs at warning log level in the manner of fmt.Printf.
func Warningf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Warningf(format, args...)
}

// Errorf logs at error log level in the manner of fmt.Printf.
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// Errorf logs at error log level in the manner of fmt.Printf.
func Errorf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Errorf(format, args...)
}
