// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_uploader

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/shiraai/pkg/configs"
)

// RetryPolicy controls what happens to a chunk whose upload keeps failing.
//
// With MaxAttempts zero a chunk is retried forever. A nil BackOff retries
// only when something else triggers a drain.
type RetryPolicy struct {
	MaxAttempts int
	BackOff     backoff.BackOff
}

func NewRetryPolicy(cfg configs.RecordingConfig) RetryPolicy {
	policy := RetryPolicy{MaxAttempts: cfg.MaxUploadAttempts}
	if cfg.RetryBackoffMs > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.RetryBackoff()
		b.MaxElapsedTime = 0
		b.Reset()
		policy.BackOff = b
	}
	return policy
}
