package storage_files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/configs"
	"github.com/shiraai/pkg/storages"
)

type localStorage struct {
	root   string
	logger commons.Logger
}

func NewLocalStorage(cfg configs.AssetStoreConfig, logger commons.Logger) storages.Storage {
	return &localStorage{root: cfg.StoragePathPrefix, logger: logger}
}

func (l *localStorage) Name() string {
	return configs.STORAGE_TYPE_LOCAL
}

func (l *localStorage) path(key string) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return full, nil
}

func (l *localStorage) Store(ctx context.Context, key string, content []byte, contentType string) storages.StorageOutput {
	out := storages.StorageOutput{StorageType: l.Name()}
	full, err := l.path(key)
	if err != nil {
		out.Error = err
		return out
	}
	if err := ctx.Err(); err != nil {
		out.Error = err
		return out
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		l.logger.Errorf("unable to create storage directory for %s: %v", key, err)
		out.Error = fmt.Errorf("create directory: %w", err)
		return out
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		l.logger.Errorf("unable to write object %s: %v", key, err)
		out.Error = fmt.Errorf("write object: %w", err)
		return out
	}
	l.logger.Debugf("stored %d bytes at %s (%s)", len(content), full, contentType)
	out.CompletePath = full
	return out
}

func (l *localStorage) Get(ctx context.Context, key string) ([]byte, error) {
	full, err := l.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}
