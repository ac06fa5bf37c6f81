// Package blob presigns attachment uploads against an S3 compatible store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	uploadExpiry   = 15 * time.Minute
	downloadExpiry = 7 * 24 * time.Hour
)

var ErrDisabled = errors.New("attachment uploads are not configured")

// Options configures the S3 client.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Upload is a presigned upload slot for one attachment.
type Upload struct {
	Key         string    `json:"key"`
	UploadURL   string    `json:"upload_url"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// S3Presigner issues presigned PUT and GET URLs.
type S3Presigner struct {
	bucket  string
	presign *s3.PresignClient
}

// NewS3Presigner builds a presigner. It returns ErrDisabled when no bucket is set.
func NewS3Presigner(ctx context.Context, opts Options) (*S3Presigner, error) {
	if opts.Bucket == "" {
		return nil, ErrDisabled
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Presigner{bucket: opts.Bucket, presign: s3.NewPresignClient(client)}, nil
}

// PresignUpload reserves a key under the chat and presigns its upload and download.
func (p *S3Presigner) PresignUpload(ctx context.Context, chatID, fileName, mime string) (Upload, error) {
	key := ObjectKey(chatID, fileName)

	put := &s3.PutObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)}
	if mime != "" {
		put.ContentType = aws.String(mime)
	}
	upload, err := p.presign.PresignPutObject(ctx, put, s3.WithPresignExpires(uploadExpiry))
	if err != nil {
		return Upload{}, fmt.Errorf("presign put: %w", err)
	}

	download, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(downloadExpiry))
	if err != nil {
		return Upload{}, fmt.Errorf("presign get: %w", err)
	}

	return Upload{
		Key:         key,
		UploadURL:   upload.URL,
		DownloadURL: download.URL,
		ExpiresAt:   time.Now().Add(uploadExpiry).UTC(),
	}, nil
}

// ObjectKey places an attachment under its chat with a unique prefix.
func ObjectKey(chatID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return fmt.Sprintf("chats/%s/%s/%s", chatID, uuid.NewString(), name)
}
