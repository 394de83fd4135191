package storage_files

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/configs"
	"github.com/shiraai/pkg/storages"
)

type s3Storage struct {
	cfg    configs.AssetStoreConfig
	logger commons.Logger

	once    sync.Once
	client  *s3.Client
	initErr error
}

// NewS3Storage stores objects in the bucket named by StoragePathPrefix. A
// non-empty Endpoint targets an S3 compatible service with path-style urls.
func NewS3Storage(cfg configs.AssetStoreConfig, logger commons.Logger) storages.Storage {
	return &s3Storage{cfg: cfg, logger: logger}
}

func (s *s3Storage) Name() string {
	return configs.STORAGE_TYPE_S3
}

func (s *s3Storage) Client(ctx context.Context) (*s3.Client, error) {
	s.once.Do(func() {
		opts := []func(*config.LoadOptions) error{
			config.WithRegion(s.cfg.Auth.Region),
			config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
			config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
		}
		if s.cfg.Auth.AccessKeyId != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(s.cfg.Auth.AccessKeyId, s.cfg.Auth.SecretAccessKey, ""),
			))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.logger.Errorf("unable to load aws config for s3 storage: %v", err)
			s.initErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if s.cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(s.cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return s.client, s.initErr
}

func (s *s3Storage) Store(ctx context.Context, key string, content []byte, contentType string) storages.StorageOutput {
	out := storages.StorageOutput{StorageType: s.Name()}
	client, err := s.Client(ctx)
	if err != nil {
		out.Error = err
		return out
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.StoragePathPrefix),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.logger.Errorf("unable to put object %s: %v", key, err)
		out.Error = fmt.Errorf("put object: %w", err)
		return out
	}
	out.CompletePath = fmt.Sprintf("s3://%s/%s", s.cfg.StoragePathPrefix, key)
	return out
}

func (s *s3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.StoragePathPrefix),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Body.Close()
	return io.ReadAll(obj.Body)
}
