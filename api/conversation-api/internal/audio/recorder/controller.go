// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	internal_scheduler "github.com/shiraai/api/conversation-api/internal/scheduler"
	internal_type "github.com/shiraai/api/conversation-api/internal/type"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/metrics"
)

// Controller owns at most one recording session and rotates its capture into
// fixed length chunks.
//
// Every transition, including timer ticks, runs under mu. Each armed timer
// carries the session id and a generation number; a tick whose generation is
// no longer current lost a race with a manual transition and does nothing.
type Controller struct {
	logger      commons.Logger
	permissions internal_type.PermissionProvider
	device      internal_type.CaptureDevice
	queue       internal_type.ChunkQueue
	scheduler   internal_scheduler.Scheduler
	validate    *validator.Validate
	metrics     *metrics.Metrics
	baseCtx     context.Context

	onRotationError func(sessionID string, err error)
	onChunk         func(chunk internal_type.Chunk)
	newSessionID    func() string
	sequences       internal_type.SequenceSource

	mu                sync.Mutex
	permissionGranted bool
	session           *internal_type.RecordingSession
	opts              internal_type.RecordingOptions
	capture           internal_type.Capture
	cancelTimer       func()
	generation        uint64
	// last chunk number handed out per conversation
	lastSequence map[string]int
}

func NewController(
	logger commons.Logger,
	permissions internal_type.PermissionProvider,
	device internal_type.CaptureDevice,
	queue internal_type.ChunkQueue,
	opts ...Option,
) *Controller {
	c := &Controller{
		logger:       logger,
		permissions:  permissions,
		device:       device,
		queue:        queue,
		scheduler:    internal_scheduler.NewScheduler(),
		validate:     validator.New(),
		baseCtx:      context.Background(),
		newSessionID: func() string { return "session_" + uuid.NewString() },
		lastSequence: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ensurePermission(ctx context.Context) error {
	if c.permissionGranted {
		return nil
	}
	granted, err := c.permissions.RequestPermission(ctx)
	if err != nil {
		c.logger.Errorf("permission request failed: %v", err)
		return fmt.Errorf("%w: %v", internal_type.ErrPermissionDenied, err)
	}
	if !granted {
		return internal_type.ErrPermissionDenied
	}
	c.permissionGranted = true
	return nil
}

// Start opens a new session and begins capturing immediately. Any session
// still recording or paused is stopped first. Returns the session id.
//
// Chunk numbers continue from the last chunk of the same conversation, so a
// later session never reuses a storage key.
func (c *Controller) Start(ctx context.Context, opts internal_type.RecordingOptions) (string, error) {
	if err := c.validate.Struct(opts); err != nil {
		return "", fmt.Errorf("invalid recording options: %w", err)
	}
	opts = opts.WithDefaults()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensurePermission(ctx); err != nil {
		return "", err
	}

	if c.session != nil {
		c.logger.Infof("stopping session %s before starting a new one", c.session.ID)
		if _, err := c.stopLocked(ctx); err != nil {
			c.logger.Warnf("previous session stopped with error: %v", err)
		}
	}

	last, err := c.lastSequenceLocked(ctx, opts.ConversationID)
	if err != nil {
		c.logger.Errorf("failed to read chunk numbering for conversation %s: %v", opts.ConversationID, err)
		return "", err
	}

	c.session = &internal_type.RecordingSession{
		ID:             c.newSessionID(),
		ConversationID: opts.ConversationID,
		StartTime:      c.scheduler.Now(),
		Status:         internal_type.StatusRecording,
		ChunkDuration:  opts.ChunkDuration,
		FirstSequence:  last + 1,
	}
	c.opts = opts

	if err := c.openCaptureLocked(ctx); err != nil {
		c.logger.Errorf("failed to start recording for conversation %s: %v", opts.ConversationID, err)
		c.session = nil
		c.countFailure()
		return "", err
	}
	c.armTimerLocked()
	c.countTransition("start")

	c.logger.Infof("recording session %s started for conversation %s, chunk=%s, rate=%d",
		c.session.ID, opts.ConversationID, opts.ChunkDuration, opts.SampleRate)
	return c.session.ID, nil
}

func (c *Controller) lastSequenceLocked(ctx context.Context, conversationID string) (int, error) {
	last := c.lastSequence[conversationID]
	if c.sequences == nil {
		return last, nil
	}
	stored, err := c.sequences.LastSequenceNumber(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("last chunk number of conversation %s: %w", conversationID, err)
	}
	return max(last, stored), nil
}

func (c *Controller) openCaptureLocked(ctx context.Context) error {
	capture, err := c.device.NewCapture(c.opts.CaptureOptions())
	if err != nil {
		return fmt.Errorf("%w: %v", internal_type.ErrCaptureFailure, err)
	}
	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("%w: %v", internal_type.ErrCaptureFailure, err)
	}
	c.capture = capture
	return nil
}

func (c *Controller) armTimerLocked() {
	c.generation++
	gen := c.generation
	sessionID := c.session.ID
	c.cancelTimer = c.scheduler.Every(c.session.ChunkDuration, func() {
		c.tick(sessionID, gen)
	})
}

func (c *Controller) disarmTimerLocked() {
	c.generation++
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
}

func (c *Controller) tick(sessionID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.ID != sessionID || c.generation != gen ||
		c.session.Status != internal_type.StatusRecording {
		return
	}
	c.rotateLocked(c.baseCtx)
}

// rotateLocked closes the running capture as a chunk and opens the next one.
// A capture that fails to stop is discarded; recording continues on a fresh
// capture. If no fresh capture can be opened the session pauses.
func (c *Controller) rotateLocked(ctx context.Context) {
	sessionID := c.session.ID
	if c.capture != nil {
		res, err := c.capture.Stop(ctx)
		c.capture = nil
		if err != nil {
			c.logger.Errorf("error rotating chunk of session %s: %v", sessionID, err)
			c.reportRotationError(sessionID, fmt.Errorf("%w: %v", internal_type.ErrCaptureFailure, err))
		} else {
			c.finalizeLocked(res)
		}
	}

	if err := c.openCaptureLocked(ctx); err != nil {
		c.logger.Errorf("unable to open next capture for session %s, pausing: %v", sessionID, err)
		c.disarmTimerLocked()
		c.session.Status = internal_type.StatusPaused
		c.reportRotationError(sessionID, fmt.Errorf("%w: %w", internal_type.ErrRecordingPaused, err))
	}
}

// finalizeLocked turns a capture result into the next chunk of the session.
// Sequence numbers are assigned here only, so they stay contiguous.
func (c *Controller) finalizeLocked(res internal_type.CaptureResult) {
	if res.URI == "" {
		return
	}
	seq := c.session.FirstSequence + len(c.session.Chunks)
	c.lastSequence[c.session.ConversationID] = seq
	chunk := internal_type.Chunk{
		ID:             fmt.Sprintf("chunk_%d", seq),
		SessionID:      c.session.ID,
		ConversationID: c.session.ConversationID,
		UserID:         c.opts.UserID,
		URI:            res.URI,
		Format:         res.Format,
		Duration:       res.Duration,
		Timestamp:      c.scheduler.Now(),
		SequenceNumber: seq,
	}
	c.session.Chunks = append(c.session.Chunks, chunk)
	if c.metrics != nil {
		c.metrics.RecordingChunksTotal.Inc()
	}
	if c.onChunk != nil {
		c.onChunk(chunk)
	}
	c.queue.Enqueue(chunk)
}

// Pause stops the timer and holds the capture without finalizing a chunk.
// It does nothing unless a session is recording.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.Status != internal_type.StatusRecording {
		return nil
	}
	if c.capture != nil {
		if err := c.capture.Pause(ctx); err != nil {
			return fmt.Errorf("%w: pause: %v", internal_type.ErrCaptureFailure, err)
		}
	}
	c.disarmTimerLocked()
	c.session.Status = internal_type.StatusPaused
	c.countTransition("pause")
	c.logger.Debugf("recording session %s paused", c.session.ID)
	return nil
}

// Resume continues a paused session with its own chunk duration. A session
// paused after a failed rotation gets a fresh capture.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.Status != internal_type.StatusPaused {
		return nil
	}
	if c.capture != nil {
		if err := c.capture.Resume(ctx); err != nil {
			return fmt.Errorf("%w: resume: %v", internal_type.ErrCaptureFailure, err)
		}
	} else if err := c.openCaptureLocked(ctx); err != nil {
		c.countFailure()
		return err
	}
	c.session.Status = internal_type.StatusRecording
	c.armTimerLocked()
	c.countTransition("resume")
	c.logger.Debugf("recording session %s resumed", c.session.ID)
	return nil
}

// Stop finalizes the session and returns its snapshot, or nil when there is
// no session. The transition always completes; a failure to finalize the
// last capture is returned alongside the snapshot.
func (c *Controller) Stop(ctx context.Context) (*internal_type.RecordingSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	return c.stopLocked(ctx)
}

func (c *Controller) stopLocked(ctx context.Context) (*internal_type.RecordingSession, error) {
	c.disarmTimerLocked()

	var stopErr error
	if c.capture != nil {
		res, err := c.capture.Stop(ctx)
		c.capture = nil
		if err != nil {
			c.logger.Errorf("failed to finalize last chunk of session %s: %v", c.session.ID, err)
			stopErr = fmt.Errorf("%w: stop: %v", internal_type.ErrCaptureFailure, err)
		} else {
			c.finalizeLocked(res)
		}
	}

	c.session.Status = internal_type.StatusStopped
	c.session.TotalDuration = c.scheduler.Now().Sub(c.session.StartTime)
	c.queue.Trigger()

	completed := snapshot(c.session)
	c.session = nil
	c.countTransition("stop")
	c.logger.Infof("recording session %s stopped: chunks=%d duration=%s",
		completed.ID, len(completed.Chunks), completed.TotalDuration)
	return completed, stopErr
}

// Cleanup drops the session without producing a final chunk.
func (c *Controller) Cleanup(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmTimerLocked()
	if c.capture != nil {
		if _, err := c.capture.Stop(ctx); err != nil {
			c.logger.Warnf("error cleaning up capture: %v", err)
		}
		c.capture = nil
	}
	c.session = nil
}

// CurrentSession returns a copy of the live session, nil when idle.
func (c *Controller) CurrentSession() *internal_type.RecordingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := snapshot(c.session)
	s.TotalDuration = c.scheduler.Now().Sub(s.StartTime)
	return s
}

func (c *Controller) Status() internal_type.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return internal_type.StatusIdle
	}
	return c.session.Status
}

func (c *Controller) reportRotationError(sessionID string, err error) {
	c.countFailure()
	if c.onRotationError != nil {
		c.onRotationError(sessionID, err)
	}
}

func (c *Controller) countTransition(name string) {
	if c.metrics != nil {
		c.metrics.RecordingSessionsTotal.WithLabelValues(name).Inc()
	}
}

func (c *Controller) countFailure() {
	if c.metrics != nil {
		c.metrics.CaptureFailuresTotal.Inc()
	}
}

func snapshot(s *internal_type.RecordingSession) *internal_type.RecordingSession {
	cp := *s
	cp.Chunks = append([]internal_type.Chunk(nil), s.Chunks...)
	return &cp
}
