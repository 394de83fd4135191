package storage_files

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorage_SelectsBackend(t *testing.T) {
	logger := commons.NewNopLogger()
	assert.Equal(t, configs.STORAGE_TYPE_LOCAL, NewStorage(configs.AssetStoreConfig{StorageType: "local"}, logger).Name())
	assert.Equal(t, configs.STORAGE_TYPE_S3, NewStorage(configs.AssetStoreConfig{StorageType: "s3"}, logger).Name())
}

func TestLocalStorage_StoreOverwrites(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStorage(configs.AssetStoreConfig{StoragePathPrefix: root}, commons.NewNopLogger())
	ctx := context.Background()

	out := store.Store(ctx, "user-1/conv-1/chunk_001.wav", []byte("first"), "audio/wav")
	require.NoError(t, out.Error)
	assert.Equal(t, filepath.Join(root, "user-1", "conv-1", "chunk_001.wav"), out.CompletePath)

	out = store.Store(ctx, "user-1/conv-1/chunk_001.wav", []byte("second"), "audio/wav")
	require.NoError(t, out.Error)

	got, err := store.Get(ctx, "user-1/conv-1/chunk_001.wav")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestLocalStorage_RejectsEscapingKey(t *testing.T) {
	store := NewLocalStorage(configs.AssetStoreConfig{StoragePathPrefix: t.TempDir()}, commons.NewNopLogger())
	out := store.Store(context.Background(), "../outside.wav", []byte("x"), "audio/wav")
	assert.Error(t, out.Error)
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStorage(configs.AssetStoreConfig{StoragePathPrefix: root}, commons.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := store.Store(ctx, "a/b.wav", []byte("x"), "audio/wav")
	assert.ErrorIs(t, out.Error, context.Canceled)
	_, err := os.Stat(filepath.Join(root, "a", "b.wav"))
	assert.True(t, os.IsNotExist(err))
}

func TestS3Storage_PutObjectAgainstCompatibleEndpoint(t *testing.T) {
	var mu sync.Mutex
	objects := map[string][]byte{}
	contentTypes := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = body
			contentTypes[r.URL.Path] = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(body)
		}
	}))
	defer srv.Close()

	store := NewS3Storage(configs.AssetStoreConfig{
		StorageType:       configs.STORAGE_TYPE_S3,
		StoragePathPrefix: "audio-recordings",
		Endpoint:          srv.URL,
		Auth: configs.AssetStoreAuth{
			Region:          "us-east-1",
			AccessKeyId:     "test",
			SecretAccessKey: "test",
		},
	}, commons.NewNopLogger())

	ctx := context.Background()
	out := store.Store(ctx, "user-1/conv-1/chunk_002.wav", []byte("RIFF"), "audio/wav")
	require.NoError(t, out.Error)
	assert.Equal(t, "s3://audio-recordings/user-1/conv-1/chunk_002.wav", out.CompletePath)

	mu.Lock()
	assert.Equal(t, []byte("RIFF"), objects["/audio-recordings/user-1/conv-1/chunk_002.wav"])
	assert.Equal(t, "audio/wav", contentTypes["/audio-recordings/user-1/conv-1/chunk_002.wav"])
	mu.Unlock()

	got, err := store.Get(ctx, "user-1/conv-1/chunk_002.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), got)
}
