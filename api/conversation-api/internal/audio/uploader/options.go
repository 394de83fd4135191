// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_uploader

import (
	"context"

	internal_scheduler "github.com/shiraai/api/conversation-api/internal/scheduler"
	"github.com/shiraai/pkg/metrics"
)

type Option func(*Queue)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(q *Queue) { q.policy = p }
}

func WithScheduler(s internal_scheduler.Scheduler) Option {
	return func(q *Queue) { q.scheduler = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithAutoDrain starts a background drain on every Enqueue.
func WithAutoDrain(enabled bool) Option {
	return func(q *Queue) { q.autoDrain = enabled }
}

// WithRemoveLocal deletes the captured file once its metadata is written.
func WithRemoveLocal(enabled bool) Option {
	return func(q *Queue) { q.removeLocal = enabled }
}

// WithBaseContext is used by drains started from Trigger.
func WithBaseContext(ctx context.Context) Option {
	return func(q *Queue) { q.baseCtx = ctx }
}
