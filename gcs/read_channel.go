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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/GoogleCloudPlatform/gcsio-go/internal/logger"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// ReaderOpener is the slice of Client a SeekReadChannel needs: the ability
// to open a ranged reader at an absolute offset.
type ReaderOpener interface {
	OpenReader(ctx context.Context, id path.ResourceID, opts ReadOptions) (io.ReadCloser, error)
}

// seekWindow bounds how far ahead of the current stream position a Seek
// may land and still be satisfied by draining the open stream instead of
// issuing a new ranged request.
const seekWindow = 8 << 20

// defaultMaxResumes bounds consecutive resume attempts that deliver no
// bytes before the error is surfaced to the caller.
const defaultMaxResumes = 3

type channelState uint8

const (
	channelOpen channelState = iota
	channelBroken
	channelReopening
	channelClosed
)

var errChannelClosed = errors.New("gcs: SeekReadChannel is closed")

// SeekReadChannel is a seekable read channel over one object. A premature
// end of stream is a recoverable event, not a channel-terminating error:
// the inner stream is closed (even if that close itself fails), a new
// ranged request is issued from the last successfully delivered offset,
// and the read continues (Open -> Broken -> Reopening -> Open). A forward
// Seek landing inside seekWindow of the stream position drains the open
// stream; anything else reopens.
//
// A SeekReadChannel is not safe for concurrent use; like the write
// channel, it is scoped to one caller, and Close is idempotent.
type SeekReadChannel struct {
	ctx    context.Context
	client ReaderOpener
	id     path.ResourceID
	size   int64

	// MaxResumes caps consecutive zero-progress resume attempts. The
	// constructor sets defaultMaxResumes; callers may raise it before the
	// first Read.
	MaxResumes int

	state    channelState
	inner    io.ReadCloser
	pos      int64 // offset of the next byte Read delivers
	innerPos int64 // offset of the next byte inner would deliver
	resumes  int
}

var _ io.ReadSeekCloser = (*SeekReadChannel)(nil)

// NewSeekReadChannel returns a channel positioned at offset 0. size is the
// object's size from the caller's most recent info; the first ranged
// request is issued lazily on the first Read.
func NewSeekReadChannel(ctx context.Context, client ReaderOpener, id path.ResourceID, size int64) *SeekReadChannel {
	return &SeekReadChannel{
		ctx:        ctx,
		client:     client,
		id:         id,
		size:       size,
		MaxResumes: defaultMaxResumes,
	}
}

func (ch *SeekReadChannel) Read(p []byte) (int, error) {
	if ch.state == channelClosed {
		return 0, errChannelClosed
	}
	if ch.pos >= ch.size {
		return 0, io.EOF
	}

	for {
		if err := ch.ensureOpen(); err != nil {
			return 0, err
		}

		n, err := ch.inner.Read(p)
		ch.pos += int64(n)
		ch.innerPos += int64(n)
		if n > 0 {
			ch.resumes = 0
		}
		if err == nil {
			return n, nil
		}
		if err == io.EOF {
			if ch.pos >= ch.size {
				return n, io.EOF
			}
			// The stream ended short of the object's size.
			err = io.ErrUnexpectedEOF
		}

		ch.dropInner()
		if n > 0 {
			// Deliver what we have; the next Read reopens from ch.pos.
			return n, nil
		}
		if !resumable(err) || ch.resumes >= ch.MaxResumes {
			return 0, err
		}
		ch.resumes++
		logger.Debugf("gcs: resuming read of %s at offset %d after: %v", ch.id, ch.pos, err)
	}
}

// Seek repositions the channel. Only the absolute position matters to the
// store; io.SeekEnd is resolved against the object size the channel was
// built with.
func (ch *SeekReadChannel) Seek(offset int64, whence int) (int64, error) {
	if ch.state == channelClosed {
		return 0, errChannelClosed
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = ch.pos + offset
	case io.SeekEnd:
		abs = ch.size + offset
	default:
		return 0, fmt.Errorf("gcs: invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("gcs: negative seek position %d", abs)
	}

	if ch.state == channelOpen && ch.inner != nil && abs >= ch.innerPos && abs-ch.innerPos <= seekWindow {
		if _, err := io.CopyN(io.Discard, ch.inner, abs-ch.innerPos); err != nil {
			ch.dropInner()
		} else {
			ch.innerPos = abs
		}
	} else {
		ch.dropInner()
	}

	ch.pos = abs
	return abs, nil
}

// Close releases the inner stream. A second Close is a no-op.
func (ch *SeekReadChannel) Close() error {
	if ch.state == channelClosed {
		return nil
	}
	ch.state = channelClosed
	if ch.inner == nil {
		return nil
	}
	err := ch.inner.Close()
	ch.inner = nil
	return err
}

// ensureOpen guarantees ch.inner is an open stream positioned at ch.pos.
func (ch *SeekReadChannel) ensureOpen() error {
	if ch.state == channelOpen && ch.inner != nil && ch.innerPos == ch.pos {
		return nil
	}
	ch.dropInner()

	ch.state = channelReopening
	r, err := ch.client.OpenReader(ch.ctx, ch.id, ReadOptions{Offset: ch.pos})
	if err != nil {
		ch.state = channelBroken
		return err
	}
	ch.inner = r
	ch.innerPos = ch.pos
	ch.state = channelOpen
	return nil
}

// dropInner closes the inner stream, tolerating a failing Close, and marks
// the channel broken until the next reopen.
func (ch *SeekReadChannel) dropInner() {
	if ch.inner != nil {
		if err := ch.inner.Close(); err != nil {
			logger.Debugf("gcs: closing broken stream for %s: %v", ch.id, err)
		}
		ch.inner = nil
	}
	if ch.state != channelClosed {
		ch.state = channelBroken
	}
}

func resumable(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || ShouldRetry(err)
}
