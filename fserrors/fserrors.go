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

// Package fserrors defines the error taxonomy shared by the path and gcs
// packages: InvalidArgument, NotFound, AlreadyExists, DirectoryNotEmpty,
// FailedPrecondition, Transient, Fatal. It is kept
// dependency-free so that both path (which has no business talking to GCS
// wire types) and gcs (which classifies googleapi/gax/grpc errors into
// this taxonomy) can depend on it without a cycle.
package fserrors

import (
	"errors"
	"fmt"
)

// Code names one of the taxonomy's error classes.
type Code string

const (
	InvalidArgument    Code = "InvalidArgument"
	NotFound           Code = "NotFound"
	AlreadyExists      Code = "AlreadyExists"
	DirectoryNotEmpty  Code = "DirectoryNotEmpty"
	FailedPrecondition Code = "FailedPrecondition"
	Transient          Code = "Transient"
	Fatal              Code = "Fatal"
)

// Error is a taxonomy-tagged error. Err, when set, is the underlying cause
// and is exposed through Unwrap so callers can still errors.As into e.g. a
// *googleapi.Error.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NewInvalidArgument(format string, args ...any) *Error {
	return newf(InvalidArgument, nil, format, args...)
}

func NewNotFound(format string, args ...any) *Error {
	return newf(NotFound, nil, format, args...)
}

func NewAlreadyExists(format string, args ...any) *Error {
	return newf(AlreadyExists, nil, format, args...)
}

func NewDirectoryNotEmpty(format string, args ...any) *Error {
	return newf(DirectoryNotEmpty, nil, format, args...)
}

func NewFailedPrecondition(err error, format string, args ...any) *Error {
	return newf(FailedPrecondition, err, format, args...)
}

func NewTransient(err error) *Error {
	return &Error{Code: Transient, Err: err}
}

func NewFatal(err error) *Error {
	return &Error{Code: Fatal, Err: err}
}

// Is reports whether err is tagged with code, looking through wrapping.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsInvalidArgument(err error) bool    { return Is(err, InvalidArgument) }
func IsNotFound(err error) bool           { return Is(err, NotFound) }
func IsAlreadyExists(err error) bool      { return Is(err, AlreadyExists) }
func IsDirectoryNotEmpty(err error) bool  { return Is(err, DirectoryNotEmpty) }
func IsFailedPrecondition(err error) bool { return Is(err, FailedPrecondition) }
func IsTransient(err error) bool          { return Is(err, Transient) }
func IsFatal(err error) bool              { return Is(err, Fatal) }
