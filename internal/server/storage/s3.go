// Package storage issues presigned upload URLs for user pictures kept in an
// S3-compatible object store (MinIO in development).
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophpress/internal/server/config"
	"github.com/google/uuid"
)

// UploadValidity is how long a presigned upload URL stays usable.
const UploadValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// Upload describes a granted picture upload.
type Upload struct {
	// Key is the object key inside the bucket.
	Key string
	// UploadURL accepts a single HTTP PUT of the object body.
	UploadURL string
	// PublicURL is where the object is served once uploaded.
	PublicURL string
	ExpiresAt time.Time
}

// S3Storage presigns uploads against one bucket.
type S3Storage struct {
	region   string
	user     string
	password string
	endpoint string
	bucket   string
}

// NewS3Storage builds an S3Storage from the server config.
func NewS3Storage(cfg *config.Config) *S3Storage {
	return &S3Storage{
		region:   cfg.S3Region,
		user:     cfg.S3RootUser,
		password: cfg.S3RootPassword,
		endpoint: strings.TrimRight(cfg.S3BaseEndpoint, "/"),
		bucket:   cfg.S3Bucket,
	}
}

// PictureKey returns a fresh object key for a picture of userID.
func PictureKey(userID string) string {
	return fmt.Sprintf("pictures/%s/%s", userID, uuid.NewString())
}

func (s *S3Storage) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.user, s.password, "")),
	)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.endpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignPictureUpload grants a PUT upload for a new picture of userID.
func (s *S3Storage) PresignPictureUpload(ctx context.Context, userID string) (*Upload, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	key := PictureKey(userID)
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(UploadValidity))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &Upload{
		Key:       key,
		UploadURL: req.URL,
		PublicURL: s.PublicURL(key),
		ExpiresAt: time.Now().Add(UploadValidity),
	}, nil
}

// PublicURL returns the path-style URL of key in the bucket.
func (s *S3Storage) PublicURL(key string) string {
	return s.endpoint + "/" + s.bucket + "/" + key
}
