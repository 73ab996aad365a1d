package publish

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string `help:"S3 endpoint (host:port)." env:"SYNCBACKEND_S3_ENDPOINT"`
	Region    string `help:"Bucket region." default:"us-east-1" env:"SYNCBACKEND_S3_REGION"`
	AccessKey string `help:"Access key." env:"SYNCBACKEND_S3_ACCESS_KEY"`
	SecretKey string `help:"Secret key." env:"SYNCBACKEND_S3_SECRET_KEY"`
	Bucket    string `help:"Target bucket, created on first use." env:"SYNCBACKEND_S3_BUCKET"`
	UseSSL    bool   `help:"Use TLS." name:"ssl" env:"SYNCBACKEND_S3_SSL"`
}

// S3Publisher uploads objects to an S3-compatible bucket.
type S3Publisher struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Publisher{client: client, bucket: bucket, region: region}, nil
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

func (p *S3Publisher) Publish(ctx context.Context, obj Object) (string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	body := obj.Body
	if body == nil {
		body = []byte{}
	}
	_, err := p.client.PutObject(ctx, p.bucket, obj.Key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:     obj.ContentType,
		ContentEncoding: obj.ContentEncoding,
		UserMetadata:    obj.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", p.bucket, obj.Key, err)
	}
	return "s3://" + p.bucket + "/" + obj.Key, nil
}
