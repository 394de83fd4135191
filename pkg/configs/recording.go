package configs

import "time"

type RecordingConfig struct {
	ChunkDurationMs        int    `mapstructure:"chunk_duration_ms" validate:"gt=0"`
	TempDir                string `mapstructure:"temp_dir" validate:"required"`
	DefaultSampleRate      int    `mapstructure:"default_sample_rate" validate:"gt=0"`
	MaxUploadAttempts      int    `mapstructure:"max_upload_attempts" validate:"gte=0"`
	RetryBackoffMs         int    `mapstructure:"retry_backoff_ms" validate:"gte=0"`
	RemoveLocalAfterUpload bool   `mapstructure:"remove_local_after_upload"`
}

func (c RecordingConfig) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkDurationMs) * time.Millisecond
}

func (c RecordingConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}
