// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"context"

	internal_scheduler "github.com/shiraai/api/conversation-api/internal/scheduler"
	internal_type "github.com/shiraai/api/conversation-api/internal/type"
	"github.com/shiraai/pkg/metrics"
)

type Option func(*Controller)

// WithScheduler replaces the wall clock, mainly for virtual time in tests.
func WithScheduler(s internal_scheduler.Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

// WithRotationErrorHook receives failures that happen on a timer tick. They
// are logged either way. Like the chunk hook it runs under the controller lock.
func WithRotationErrorHook(fn func(sessionID string, err error)) Option {
	return func(c *Controller) { c.onRotationError = fn }
}

// WithChunkHook is called for every finalized chunk, before it is queued.
// It runs while the controller is locked and must not call back into it.
func WithChunkHook(fn func(chunk internal_type.Chunk)) Option {
	return func(c *Controller) { c.onChunk = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithBaseContext is the context used for capture calls made from timer
// ticks.
func WithBaseContext(ctx context.Context) Option {
	return func(c *Controller) { c.baseCtx = ctx }
}

// WithSequenceSource seeds chunk numbering of a new session from chunks
// recorded before this controller existed.
func WithSequenceSource(s internal_type.SequenceSource) Option {
	return func(c *Controller) { c.sequences = s }
}

func WithSessionIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newSessionID = fn }
}
