package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used to fetch images.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config locates an image bucket.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional, for S3-compatible stores; implies path-style addressing
}

// S3FS serves images stored as objects under Prefix in Bucket.
type S3FS struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3FS wraps an existing client.
func NewS3FS(client S3API, bucket, prefix string, logger *slog.Logger) *S3FS {
	return &S3FS{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "s3fs", "bucket", bucket),
	}
}

// NewS3FSFromConfig builds a client from the default AWS credential chain.
func NewS3FSFromConfig(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3FS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 image source: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3FS(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func (f *S3FS) key(p string) string {
	if f.prefix == "" {
		return p
	}
	return path.Join(f.prefix, p)
}

// Lookup implements FileSystem. It checks the object exists; the body is
// fetched by ReadAll.
func (f *S3FS) Lookup(ctx context.Context, p string) (INode, error) {
	clean := CleanPath(p)
	if clean == "" {
		return nil, notExist(p)
	}
	key := f.key(clean)
	f.logger.Debug("head object", "key", key)
	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notExist(p)
		}
		return nil, fmt.Errorf("head s3://%s/%s: %w", f.bucket, key, err)
	}
	return &s3Node{fs: f, key: key}, nil
}

type s3Node struct {
	fs  *S3FS
	key string
}

func (n *s3Node) ReadAll(ctx context.Context) ([]byte, error) {
	out, err := n.fs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(n.fs.bucket),
		Key:    aws.String(n.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notExist(n.key)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", n.fs.bucket, n.key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", n.fs.bucket, n.key, err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
