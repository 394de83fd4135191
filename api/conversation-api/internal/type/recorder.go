// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"context"
	"time"
)

const DefaultChunkDuration = 2000 * time.Millisecond

type SessionStatus string

const (
	StatusIdle      SessionStatus = "idle"
	StatusRecording SessionStatus = "recording"
	StatusPaused    SessionStatus = "paused"
	StatusStopped   SessionStatus = "stopped"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

type RecordingOptions struct {
	ConversationID string `validate:"required"`
	// UserID owns the storage path of every chunk.
	UserID                 string
	ChunkDuration          time.Duration `validate:"gte=0"`
	Quality                Quality       `validate:"omitempty,oneof=low medium high"`
	SampleRate             int           `validate:"gte=0"`
	Channels               int           `validate:"gte=0,lte=2"`
	EnableNoiseSuppression bool
}

// WithDefaults fills unset fields. High quality records at 44100 Hz,
// anything else at 22050 Hz, mono.
func (o RecordingOptions) WithDefaults() RecordingOptions {
	if o.ChunkDuration <= 0 {
		o.ChunkDuration = DefaultChunkDuration
	}
	if o.SampleRate <= 0 {
		if o.Quality == QualityHigh {
			o.SampleRate = 44100
		} else {
			o.SampleRate = 22050
		}
	}
	if o.Channels <= 0 {
		o.Channels = 1
	}
	return o
}

func (o RecordingOptions) CaptureOptions() CaptureOptions {
	return CaptureOptions{
		SampleRate:             o.SampleRate,
		Channels:               o.Channels,
		Quality:                o.Quality,
		EnableNoiseSuppression: o.EnableNoiseSuppression,
	}
}

type CaptureOptions struct {
	SampleRate             int
	Channels               int
	Quality                Quality
	EnableNoiseSuppression bool
}

// CaptureResult describes a finalized capture. URI is empty when nothing
// was captured.
type CaptureResult struct {
	URI      string
	Format   string
	Duration time.Duration
	Size     int64
}

// Capture is one device recording. Pause and Resume keep the same media,
// Stop finalizes it and releases the device.
type Capture interface {
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) (CaptureResult, error)
}

type CaptureDevice interface {
	NewCapture(opts CaptureOptions) (Capture, error)
}

type PermissionProvider interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// Chunk is one finalized segment of a session, immutable once created.
type Chunk struct {
	ID             string
	SessionID      string
	ConversationID string
	UserID         string
	URI            string
	Format         string
	Duration       time.Duration
	// Size is filled when the chunk is read for upload.
	Size           int64
	Timestamp      time.Time
	SequenceNumber int
}

type RecordingSession struct {
	ID             string
	ConversationID string
	StartTime      time.Time
	Chunks         []Chunk
	Status         SessionStatus
	ChunkDuration  time.Duration
	TotalDuration  time.Duration
	// FirstSequence is the number given to the first chunk of the session.
	FirstSequence int
}

// SequenceSource reports the highest chunk number already recorded for a
// conversation, zero when there is none.
type SequenceSource interface {
	LastSequenceNumber(ctx context.Context, conversationID string) (int, error)
}

// ChunkQueue receives finalized chunks from a recording controller.
type ChunkQueue interface {
	Enqueue(chunk Chunk)
	// Trigger requests a drain without adding anything.
	Trigger()
}
