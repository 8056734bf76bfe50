// Package storage uploads user images to S3 so external services can
// fetch them by URL.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// PutObjectAPI is the slice of the S3 client the uploader uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores objects under uploads/ with a public-read ACL.
type S3Uploader struct {
	client   PutObjectAPI
	bucket   string
	endpoint string
	newID    func() string
}

// NewS3Uploader builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS chain applies.
func NewS3Uploader(ctx context.Context, cfg *config.Config) (*S3Uploader, error) {
	if cfg.AWSBucket == "" {
		return nil, errors.NewConfiguration("AWS_BUCKET_NAME is not set", nil)
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewConfiguration("cannot load AWS configuration", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewUploader(client, cfg.AWSBucket, cfg.AWSEndpoint), nil
}

// NewUploader wraps an existing client. endpoint is empty for AWS itself.
func NewUploader(client PutObjectAPI, bucket, endpoint string) *S3Uploader {
	return &S3Uploader{
		client:   client,
		bucket:   bucket,
		endpoint: strings.TrimRight(endpoint, "/"),
		newID:    uuid.NewString,
	}
}

// Upload stores data and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	key := fmt.Sprintf("uploads/%s-%s", u.newID(), safeName(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", errors.NewUpstream(errors.StageUpload, "S3 upload failed", err)
	}

	publicURL := u.PublicURL(key)
	logger.ForComponent("storage").Info().Str("url", publicURL).Int("bytes", len(data)).Msg("Uploaded image")
	return publicURL, nil
}

// PublicURL returns the address an object key is served from.
func (u *S3Uploader) PublicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if u.endpoint != "" {
		return u.endpoint + "/" + u.bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, escaped)
}

func safeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
