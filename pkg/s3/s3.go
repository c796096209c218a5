package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/oklog/ulid/v2"
)

const defaultPresignTTL = 15 * time.Minute

var ErrNoBucket = errors.New("s3 bucket not configured")

// ItfS3 archives enrollment photos. Descriptors never leave the database;
// only the source image is stored here.
type ItfS3 interface {
	UploadReferencePhoto(ctx context.Context, subjectID string, data []byte, contentType string) (string, error)
	PresignUrl(key string) (string, error)
	DeleteFile(ctx context.Context, key string) error
}

type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Endpoint   string
	PresignTTL time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Bucket:          os.Getenv("AWS_BUCKET_NAME"),
		Region:          os.Getenv("AWS_REGION"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Endpoint:        os.Getenv("AWS_S3_ENDPOINT"),
	}
}

type s3Client struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	cfg      Config
}

func New(cfg Config) (ItfS3, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}

	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &s3Client{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		cfg:      cfg,
	}, nil
}

// UploadReferencePhoto stores an enrollment photo under a fresh key and
// returns that key.
func (s *s3Client) UploadReferencePhoto(ctx context.Context, subjectID string, data []byte, contentType string) (string, error) {
	key := referenceKey(subjectID, contentType)

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload reference photo: %w", err)
	}

	return key, nil
}

func (s *s3Client) PresignUrl(key string) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(s.cfg.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url, nil
}

func (s *s3Client) DeleteFile(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func referenceKey(subjectID, contentType string) string {
	ext := ".jpg"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}
	return fmt.Sprintf("subjects/%s/reference/%s%s", subjectID, ulid.Make().String(), ext)
}
