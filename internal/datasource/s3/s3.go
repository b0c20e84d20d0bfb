// Package s3 reads raw extracts from an S3-compatible object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config locates the extracts.
type Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. http://localhost:9000 for MinIO.
	Endpoint     string
	UsePathStyle bool
	// Static credentials; the default AWS credential chain is used when
	// AccessKeyID is empty.
	AccessKeyID     string
	SecretAccessKey string
}

// GetObjectAPI is the part of *s3.Client the provider needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Bucket provides extracts stored as objects under Prefix.
type Bucket struct {
	api    GetObjectAPI
	bucket string
	prefix string
}

// New builds a client from cfg.
func New(ctx context.Context, cfg Config) (*Bucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api GetObjectAPI, bucket, prefix string) *Bucket {
	return &Bucket{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (b *Bucket) key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// Open streams the object for name. A missing key wraps fs.ErrNotExist.
func (b *Bucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := b.key(name)
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("open %s: %w", b.Location(name), fs.ErrNotExist)
		}
		return nil, fmt.Errorf("open %s: %w", b.Location(name), err)
	}
	return out.Body, nil
}

// Location returns the s3:// URI of name.
func (b *Bucket) Location(name string) string {
	return "s3://" + b.bucket + "/" + b.key(name)
}
