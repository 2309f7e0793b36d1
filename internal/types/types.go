// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

// Package types holds the small set of typed, errors.As-detectable
// error wrappers shared across extractor, sinker, and config loading,
// so callers can distinguish "this table is misconfigured" from "this
// connection dropped" without string matching.
package types

import (
	"errors"
	"fmt"
)

// ExtractorError wraps a failure that originated while reading from a
// source (binlog stream, logical replication slot, snapshot query),
// as opposed to one while applying to a target.
type ExtractorError struct {
	Schema, Table string
	Cause         error
}

func (e *ExtractorError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("extractor: %v", e.Cause)
	}
	return fmt.Sprintf("extractor: %s.%s: %v", e.Schema, e.Table, e.Cause)
}

func (e *ExtractorError) Unwrap() error { return e.Cause }

// IsExtractorError reports whether err (or something it wraps) is an
// *ExtractorError.
func IsExtractorError(err error) (*ExtractorError, bool) {
	var e *ExtractorError
	ok := errors.As(err, &e)
	return e, ok
}

// SinkerError wraps a failure applying a batch or statement to a
// target, after the batch-then-row-by-row fallback has already been
// exhausted.
type SinkerError struct {
	Schema, Table string
	Cause         error
}

func (e *SinkerError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("sinker: %v", e.Cause)
	}
	return fmt.Sprintf("sinker: %s.%s: %v", e.Schema, e.Table, e.Cause)
}

func (e *SinkerError) Unwrap() error { return e.Cause }

// IsSinkerError reports whether err (or something it wraps) is a
// *SinkerError.
func IsSinkerError(err error) (*SinkerError, bool) {
	var e *SinkerError
	ok := errors.As(err, &e)
	return e, ok
}

// ConfigError reports a task configuration value that failed
// validation, naming the offending INI section/key so the operator
// does not have to guess which of several struct-mapped sections was
// wrong.
type ConfigError struct {
	Section, Key string
	Cause        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: [%s] %s: %v", e.Section, e.Key, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// IsConfigError reports whether err (or something it wraps) is a
// *ConfigError.
func IsConfigError(err error) (*ConfigError, bool) {
	var e *ConfigError
	ok := errors.As(err, &e)
	return e, ok
}
