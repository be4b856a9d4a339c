package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// S3Backend implements a storage backend using Amazon S3 or a compatible
// object store. Without credentials the backend is read-only against public
// buckets.
type S3Backend struct {
	client      *s3.S3
	writeClient *s3.S3
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI interfaces.StorageBackendLocation
}

// NewS3Backend creates an S3 storage backend. When accessKey and secretKey
// are provided a separate authenticated client is used for writes.
func NewS3Backend(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Backend, error) {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	baseCfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		baseCfg.Endpoint = aws.String(endpoint)
	}

	baseSess, err := session.NewSession(&baseCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	readClient := s3.New(baseSess)

	writeClient := readClient
	if accessKey != "" && secretKey != "" {
		writeCfg := baseCfg.Copy()
		writeCfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")

		writeSess, err := session.NewSession(writeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS write session: %w", err)
		}
		writeClient = s3.New(writeSess)
	} else {
		log.Warn("no S3 credentials provided, document uploads may fail unless the bucket is public writable")
	}

	return &S3Backend{
		client:      readClient,
		writeClient: writeClient,
		bucketName:  bucketName,
		prefix:      strings.TrimSuffix(prefix, "/"),
		log:         log,
		locationURI: interfaces.StorageBackendLocation(uri),
	}, nil
}

func (b *S3Backend) objectKey(contentHash interfaces.Hash) string {
	key := fmt.Sprintf("%x", contentHash)
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

// Fetch retrieves document content from S3 by its content hash.
func (b *S3Backend) Fetch(ctx context.Context, contentHash interfaces.Hash) ([]byte, error) {
	key := b.objectKey(contentHash)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	b.log.Debug("fetched document content from S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.Int("bytes", len(data)))
	return data, nil
}

// Store uploads document content to S3 and returns its content hash.
func (b *S3Backend) Store(ctx context.Context, data []byte) (interfaces.Hash, error) {
	contentHash := ContentHash(data)
	key := b.objectKey(contentHash)

	_, err := b.writeClient.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return contentHash, fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("stored document content in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key))
	return contentHash, nil
}

// Available checks bucket accessibility with a head request.
func (b *S3Backend) Available(ctx context.Context) bool {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Warn("S3 backend unavailable", slog.String("bucket", b.bucketName), "err", err)
		return false
	}
	return true
}

// Name returns a short identifier for logging.
func (b *S3Backend) Name() string {
	return "s3-" + b.bucketName
}

// LocationURI returns the URI this backend was created from.
func (b *S3Backend) LocationURI() interfaces.StorageBackendLocation {
	return b.locationURI
}
