package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Kirifer/ITS-certificate-generator/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store 基于 S3 兼容对象存储的制品存储
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store 创建 S3 制品存储
// 配置了 endpoint 时走自定义端点(MinIO/Ceph RGW 等)并使用 path style
func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := s3.Options{
		Region: cfg.Region,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	return &S3Store{
		client: s3.New(opts),
		bucket: cfg.Bucket,
	}, nil
}

// Put 写入制品
func (s *S3Store) Put(ctx context.Context, key string, artifact *Artifact) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(artifact.Data),
		ContentType: aws.String(artifact.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put artifact %s: %w", key, err)
	}
	return key, nil
}

// Get 读取制品
func (s *S3Store) Get(ctx context.Context, ref string) (*Artifact, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %s: %w", ref, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", ref, err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	return &Artifact{Data: data, ContentType: contentType}, nil
}

// Delete 删除制品
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", ref, err)
	}
	return nil
}
