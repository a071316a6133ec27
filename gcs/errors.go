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

package gcs

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
)

// NotFoundError wraps any error the store reports as a missing object or
// bucket (HTTP 404 / gRPC NotFound).
type NotFoundError struct{ Err error }

func (e *NotFoundError) Error() string { return fmt.Sprintf("gcs: not found: %v", e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// PreconditionError wraps any error the store reports for a failed
// generation/metageneration precondition (HTTP 412 / gRPC FailedPrecondition).
type PreconditionError struct{ Err error }

func (e *PreconditionError) Error() string { return fmt.Sprintf("gcs: precondition failed: %v", e.Err) }
func (e *PreconditionError) Unwrap() error { return e.Err }

// GetGCSError classifies a raw error returned by the storage client into
// *NotFoundError / *PreconditionError when it recognizes the underlying
// cause, and returns it unchanged otherwise. It recognizes
// *googleapi.Error (including wrapped), gRPC status errors (including
// wrapped), *apierror.APIError, and storage.ErrObjectNotExist. Errors
// already tagged with one of this package's types pass through unchanged.
func GetGCSError(err error) error {
	if err == nil {
		return nil
	}

	var alreadyNotFound *NotFoundError
	if errors.As(err, &alreadyNotFound) {
		return err
	}
	var alreadyPrecondition *PreconditionError
	if errors.As(err, &alreadyPrecondition) {
		return err
	}

	if errors.Is(err, storage.ErrObjectNotExist) {
		return &NotFoundError{Err: err}
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.GRPCStatus().Code() {
		case codes.NotFound:
			return &NotFoundError{Err: err}
		case codes.FailedPrecondition:
			return &PreconditionError{Err: err}
		default:
			return err
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusNotFound:
			return &NotFoundError{Err: err}
		case http.StatusPreconditionFailed:
			return &PreconditionError{Err: err}
		default:
			return err
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			return &NotFoundError{Err: err}
		case codes.FailedPrecondition:
			return &PreconditionError{Err: err}
		default:
			return err
		}
	}

	return err
}

// ToFSError maps a GetGCSError-classified error onto the module-wide
// fserrors taxonomy, so that callers above this package only ever match
// against fserrors.Code.
func ToFSError(err error) error {
	if err == nil {
		return nil
	}

	classified := GetGCSError(err)

	var notFound *NotFoundError
	if errors.As(classified, &notFound) {
		return fserrors.NewNotFound("%v", notFound)
	}

	var precondition *PreconditionError
	if errors.As(classified, &precondition) {
		return fserrors.NewFailedPrecondition(precondition, "precondition failed")
	}

	if ShouldRetry(classified) {
		return fserrors.NewTransient(classified)
	}

	return fserrors.NewFatal(classified)
}

// ShouldRetry reports whether err belongs to the Transient class: 5xx,
// 429, connection reset, or premature end-of-stream.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests || gErr.Code >= 500
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return isRetryableCode(apiErr.GRPCStatus().Code())
	}

	if st, ok := status.FromError(err); ok {
		return isRetryableCode(st.Code())
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return false
}

func isRetryableCode(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded, codes.Aborted:
		return true
	default:
		return false
	}
}
