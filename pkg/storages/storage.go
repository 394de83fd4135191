// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package storages

import "context"

type StorageOutput struct {
	// where the object ended up, file path for local or s3 uri
	CompletePath string
	StorageType  string
	Error        error
}

// Storage persists opaque objects by key. Writing an existing key replaces it,
// so callers keep keys unique.
type Storage interface {
	Name() string
	Store(ctx context.Context, key string, content []byte, contentType string) StorageOutput
	Get(ctx context.Context, key string) ([]byte, error)
}
