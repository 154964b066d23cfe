// Package storage 提供了与对象存储服务（MinIO）交互的功能，用于保存上传的合同原件。
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lawspark-go/internal/config"
	"lawspark-go/pkg/log"
)

// Store 封装了一个存储桶内的读写操作。
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewStore(ctx context.Context, cfg config.MinIOConfig) (*Store, error) {
	// 1. 初始化 MinIO 客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	// 2. 检查存储桶是否存在，如果不存在则创建
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("[Storage] 存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}

	log.Infof("[Storage] MinIO 就绪, bucket: %s", cfg.BucketName)
	return &Store{client: client, bucket: cfg.BucketName}, nil
}

// ObjectKey 返回文档原件的对象路径。
func ObjectKey(documentID, fileName string) string {
	return fmt.Sprintf("documents/%s/%s", documentID, fileName)
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// PresignedURL generates a presigned GET URL for a given object.
func (s *Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		log.Errorf("[Storage] Error generating presigned URL: %s", err)
		return "", err
	}
	return u.String(), nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
