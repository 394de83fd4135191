// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "errors"

var (
	// ErrPermissionDenied is returned when capture cannot start because the
	// caller may not record.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrCaptureFailure wraps device errors on capture start, stop or rotation.
	ErrCaptureFailure = errors.New("audio capture failure")
	// ErrUploadFailure wraps read and object storage errors for a chunk.
	ErrUploadFailure = errors.New("chunk upload failure")
	// ErrMetadataWriteFailure wraps a failed metadata insert after a
	// successful upload.
	ErrMetadataWriteFailure = errors.New("chunk metadata write failure")
	// ErrDuplicateChunk means the chunk number is already stored for the
	// conversation. Such a chunk is never uploaded.
	ErrDuplicateChunk = errors.New("chunk number already stored")
	// ErrRecordingPaused is reported when a session paused itself because
	// no new capture could be opened.
	ErrRecordingPaused = errors.New("recording paused")
)
