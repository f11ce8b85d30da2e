package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Config holds the connection settings of an S3-compatible bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// NewS3Client builds an S3 client from cfg. Static credentials are used when
// an access key is configured; otherwise the default AWS credential chain
// applies. A custom endpoint targets S3-compatible services such as MinIO.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Store implements Transfer on an S3 bucket, one object per content id.
type S3Store struct {
	api    S3API
	bucket string
	prefix string
}

var _ Transfer = (*S3Store)(nil)

// NewS3Store creates a store writing to bucket under prefix.
func NewS3Store(api S3API, bucket, prefix string) (*S3Store, error) {
	if api == nil || bucket == "" {
		return nil, fmt.Errorf("storage: s3 store needs a client and a bucket")
	}
	return &S3Store{api: api, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Store) key(contentID string) string {
	return s.prefix + contentID
}

// Put uploads data under its content id.
func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	id, err := ContentID(data)
	if err != nil {
		return "", err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3 put %s: %w", ErrIOFailure, id, err)
	}
	log.Debugw("uploaded object", "cid", id, "bucket", s.bucket, "size", len(data))
	return id, nil
}

// Get downloads and verifies the object stored under contentID.
func (s *S3Store) Get(ctx context.Context, contentID string) ([]byte, error) {
	if _, err := ParseContentID(contentID); err != nil {
		return nil, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(contentID)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, contentID)
		}
		return nil, fmt.Errorf("%w: s3 get %s: %w", ErrIOFailure, contentID, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := readLimited(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 read %s: %w", ErrIOFailure, contentID, err)
	}
	if err := VerifyContent(contentID, data); err != nil {
		return nil, err
	}
	return data, nil
}
