package configs

const (
	STORAGE_TYPE_LOCAL = "local"
	STORAGE_TYPE_S3    = "s3"
)

type AssetStoreAuth struct {
	Region          string `mapstructure:"region"`
	AccessKeyId     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AssetStoreConfig selects the object storage backend for recorded chunks.
// For local storage StoragePathPrefix is the root directory, for s3 it is the bucket.
type AssetStoreConfig struct {
	StorageType       string         `mapstructure:"storage_type" validate:"required,oneof=local s3"`
	StoragePathPrefix string         `mapstructure:"storage_path_prefix" validate:"required"`
	Endpoint          string         `mapstructure:"endpoint"`
	Auth              AssetStoreAuth `mapstructure:"auth"`
}
