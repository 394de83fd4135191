// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package storage_files

import (
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/configs"
	"github.com/shiraai/pkg/storages"
)

// NewStorage picks the backend configured in the asset store config.
func NewStorage(cfg configs.AssetStoreConfig, logger commons.Logger) storages.Storage {
	switch cfg.StorageType {
	case configs.STORAGE_TYPE_S3:
		return NewS3Storage(cfg, logger)
	default:
		return NewLocalStorage(cfg, logger)
	}
}
