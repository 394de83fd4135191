// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	internal_type "github.com/shiraai/api/conversation-api/internal/type"
	"github.com/shiraai/pkg/commons"
)

var (
	errCaptureActive = errors.New("another capture is active on this device")
	errNotStarted    = errors.New("capture is not running")
)

// StreamDevice is a capture device fed with PCM16LE frames pushed by a
// remote client. Frames written while no capture is running are dropped.
type StreamDevice struct {
	logger commons.Logger
	dir    string

	mu      sync.Mutex
	active  *streamCapture
	dropped int64
}

func NewStreamDevice(logger commons.Logger, dir string) *StreamDevice {
	return &StreamDevice{logger: logger, dir: dir}
}

func (d *StreamDevice) NewCapture(opts internal_type.CaptureOptions) (internal_type.Capture, error) {
	if opts.SampleRate <= 0 || opts.Channels <= 0 {
		return nil, fmt.Errorf("invalid capture format %d Hz x %d", opts.SampleRate, opts.Channels)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}
	return &streamCapture{device: d, opts: opts, state: captureIdle}, nil
}

// Write appends audio to the running capture. It never fails so a slow or
// paused recorder does not break the transport.
func (d *StreamDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil || d.active.state != captureRunning {
		d.dropped += int64(len(p))
		return len(p), nil
	}
	d.active.buf.Write(p)
	return len(p), nil
}

// Dropped reports bytes received while nothing was capturing.
func (d *StreamDevice) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

type captureState int

const (
	captureIdle captureState = iota
	captureRunning
	capturePaused
	captureStopped
)

type streamCapture struct {
	device *StreamDevice
	opts   internal_type.CaptureOptions
	// guarded by device.mu
	state captureState
	buf   bytes.Buffer
}

func (c *streamCapture) Start(ctx context.Context) error {
	d := c.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.state != captureIdle {
		return fmt.Errorf("capture already started")
	}
	if d.active != nil && d.active != c {
		return errCaptureActive
	}
	d.active = c
	c.state = captureRunning
	return nil
}

func (c *streamCapture) Pause(ctx context.Context) error {
	d := c.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.state != captureRunning {
		return errNotStarted
	}
	c.state = capturePaused
	return nil
}

func (c *streamCapture) Resume(ctx context.Context) error {
	d := c.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.state != capturePaused {
		return fmt.Errorf("capture is not paused")
	}
	c.state = captureRunning
	return nil
}

// Stop releases the device and writes the captured audio as a WAV file. An
// empty capture produces no file and an empty URI.
func (c *streamCapture) Stop(ctx context.Context) (internal_type.CaptureResult, error) {
	d := c.device
	d.mu.Lock()
	if c.state != captureRunning && c.state != capturePaused {
		d.mu.Unlock()
		return internal_type.CaptureResult{}, errNotStarted
	}
	c.state = captureStopped
	if d.active == c {
		d.active = nil
	}
	pcm := c.buf.Bytes()
	c.buf = bytes.Buffer{}
	d.mu.Unlock()

	fs := frameSize(c.opts.Channels)
	pcm = pcm[:len(pcm)/fs*fs]
	if len(pcm) == 0 {
		return internal_type.CaptureResult{Format: WAVFormat}, nil
	}

	wav := createWAVFile(pcm, c.opts.SampleRate, c.opts.Channels)
	path := filepath.Join(d.dir, fmt.Sprintf("capture_%s.%s", uuid.NewString(), WAVFormat))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return internal_type.CaptureResult{}, fmt.Errorf("write capture file: %w", err)
	}

	duration := pcmDuration(len(pcm), c.opts.SampleRate, c.opts.Channels)
	d.logger.Debugf("capture persisted: %s, %d bytes, %.2fs", path, len(wav), duration.Seconds())
	return internal_type.CaptureResult{
		URI:      path,
		Format:   WAVFormat,
		Duration: duration,
		Size:     int64(len(wav)),
	}, nil
}
