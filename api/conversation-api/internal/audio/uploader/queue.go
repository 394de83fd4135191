// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	internal_entity "github.com/shiraai/api/conversation-api/internal/entity"
	internal_scheduler "github.com/shiraai/api/conversation-api/internal/scheduler"
	internal_services "github.com/shiraai/api/conversation-api/internal/service"
	internal_type "github.com/shiraai/api/conversation-api/internal/type"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/metrics"
	"github.com/shiraai/pkg/storages"
)

const defaultExtension = "wav"

// Queue persists chunks one at a time, head first. Only one drain runs at a
// time; a failed chunk goes back to the head and the drain stops there.
type Queue struct {
	logger      commons.Logger
	storage     storages.Storage
	chunks      internal_services.AudioChunkService
	scheduler   internal_scheduler.Scheduler
	metrics     *metrics.Metrics
	policy      RetryPolicy
	autoDrain   bool
	removeLocal bool
	baseCtx     context.Context

	mu          sync.Mutex
	items       []internal_type.Chunk
	attempts    map[string]int
	dead        []internal_type.Chunk
	busy        bool
	closed      bool
	cancelRetry func()
	wg          sync.WaitGroup
}

func NewQueue(
	logger commons.Logger,
	storage storages.Storage,
	chunks internal_services.AudioChunkService,
	opts ...Option,
) *Queue {
	q := &Queue{
		logger:    logger,
		storage:   storage,
		chunks:    chunks,
		scheduler: internal_scheduler.NewScheduler(),
		autoDrain: true,
		baseCtx:   context.Background(),
		attempts:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// StorageKey is the object key of a chunk:
// {userId}/{conversationId}/chunk_{seq:03d}.{ext}
func StorageKey(chunk internal_type.Chunk) string {
	return fmt.Sprintf("%s/%s/chunk_%03d.%s", chunk.UserID, chunk.ConversationID, chunk.SequenceNumber, extension(chunk))
}

func extension(chunk internal_type.Chunk) string {
	if chunk.Format == "" {
		return defaultExtension
	}
	return chunk.Format
}

func (q *Queue) Enqueue(chunk internal_type.Chunk) {
	q.mu.Lock()
	q.items = append(q.items, chunk)
	q.updateDepthLocked()
	auto := q.autoDrain
	q.mu.Unlock()
	if auto {
		q.Trigger()
	}
}

// Trigger starts a drain in the background. It returns at once.
func (q *Queue) Trigger() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.wg.Add(1)
	q.mu.Unlock()
	go func() {
		defer q.wg.Done()
		if err := q.Drain(q.baseCtx); err != nil {
			q.logger.Warnf("upload drain stopped: %v", err)
		}
	}()
}

// Drain uploads queued chunks until the queue is empty or a chunk fails.
// It returns nil immediately when another drain is running.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.busy {
		q.mu.Unlock()
		return nil
	}
	q.busy = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.items) == 0 || ctx.Err() != nil {
			q.busy = false
			q.mu.Unlock()
			return ctx.Err()
		}
		chunk := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		start := q.scheduler.Now()
		err := q.process(ctx, chunk)
		elapsed := q.scheduler.Now().Sub(start)

		q.mu.Lock()
		key := attemptKey(chunk)
		if err == nil {
			delete(q.attempts, key)
			if q.policy.BackOff != nil {
				q.policy.BackOff.Reset()
			}
			q.updateDepthLocked()
			q.recordUpload("success", elapsed)
			q.mu.Unlock()
			continue
		}

		if ctx.Err() != nil {
			// interrupted, not failed
			q.items = append([]internal_type.Chunk{chunk}, q.items...)
			q.busy = false
			q.mu.Unlock()
			return ctx.Err()
		}
		q.recordUpload("failure", elapsed)
		if errors.Is(err, internal_type.ErrDuplicateChunk) {
			q.logger.Errorf("dropping chunk %s of conversation %s: %v", chunk.ID, chunk.ConversationID, err)
			q.deadLetterLocked(chunk, key)
			q.mu.Unlock()
			continue
		}
		q.attempts[key]++
		if q.policy.MaxAttempts > 0 && q.attempts[key] >= q.policy.MaxAttempts {
			q.logger.Errorf("dropping chunk %s of conversation %s after %d attempts: %v",
				chunk.ID, chunk.ConversationID, q.attempts[key], err)
			q.deadLetterLocked(chunk, key)
			q.mu.Unlock()
			continue
		}

		q.logger.Errorf("failed to upload chunk %s of conversation %s (attempt %d): %v",
			chunk.ID, chunk.ConversationID, q.attempts[key], err)
		q.items = append([]internal_type.Chunk{chunk}, q.items...)
		q.busy = false
		q.scheduleRetryLocked()
		q.mu.Unlock()
		return err
	}
}

func (q *Queue) deadLetterLocked(chunk internal_type.Chunk, key string) {
	delete(q.attempts, key)
	q.dead = append(q.dead, chunk)
	if q.metrics != nil {
		q.metrics.UploadDeadLetters.Inc()
	}
	q.updateDepthLocked()
}

func (q *Queue) scheduleRetryLocked() {
	if q.policy.BackOff == nil || q.closed {
		return
	}
	d := q.policy.BackOff.NextBackOff()
	if d == backoff.Stop {
		return
	}
	if q.cancelRetry != nil {
		q.cancelRetry()
	}
	q.cancelRetry = q.scheduler.After(d, q.Trigger)
}

func (q *Queue) process(ctx context.Context, chunk internal_type.Chunk) error {
	if chunk.UserID == "" {
		return fmt.Errorf("%w: user not authenticated", internal_type.ErrUploadFailure)
	}
	key := StorageKey(chunk)
	exists, err := q.chunks.HasChunk(ctx, chunk.ConversationID, chunk.SequenceNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", internal_type.ErrMetadataWriteFailure, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", internal_type.ErrDuplicateChunk, key)
	}
	data, err := os.ReadFile(chunk.URI)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", internal_type.ErrUploadFailure, chunk.URI, err)
	}
	chunk.Size = int64(len(data))

	out := q.storage.Store(ctx, key, data, "audio/"+extension(chunk))
	if out.Error != nil {
		return fmt.Errorf("%w: %v", internal_type.ErrUploadFailure, out.Error)
	}
	q.logger.Debugf("uploaded chunk %s to %s", chunk.ID, out.CompletePath)

	row := &internal_entity.ConversationAudioChunk{
		ConversationId: chunk.ConversationID,
		ChunkId:        chunk.ID,
		SequenceNumber: chunk.SequenceNumber,
		StoragePath:    key,
		DurationMs:     chunk.Duration.Milliseconds(),
		SizeBytes:      chunk.Size,
		Timestamp:      chunk.Timestamp,
	}
	if err := q.chunks.CreateChunk(ctx, row); err != nil {
		return fmt.Errorf("%w: %v", internal_type.ErrMetadataWriteFailure, err)
	}

	if q.removeLocal {
		if err := os.Remove(chunk.URI); err != nil && !errors.Is(err, os.ErrNotExist) {
			q.logger.Warnf("unable to remove local chunk %s: %v", chunk.URI, err)
		}
	}
	return nil
}

// Len is the number of chunks waiting, not counting one being uploaded.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) DeadLetters() []internal_type.Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]internal_type.Chunk(nil), q.dead...)
}

// Wait blocks until every drain started by Trigger has returned.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close stops scheduled retries and new background drains, then waits for
// running ones. Chunks still queued stay in memory.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	if q.cancelRetry != nil {
		q.cancelRetry()
		q.cancelRetry = nil
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) recordUpload(status string, d time.Duration) {
	if q.metrics != nil {
		q.metrics.RecordUpload(status, d)
	}
}

func (q *Queue) updateDepthLocked() {
	if q.metrics != nil {
		q.metrics.UploadQueueDepth.Set(float64(len(q.items)))
	}
}

func attemptKey(chunk internal_type.Chunk) string {
	return chunk.SessionID + "/" + chunk.ID
}
