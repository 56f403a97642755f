// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/tomtom215/tenantvault/internal/credentials"
)

// S3Config locates the bucket every tenant writes into.
type S3Config struct {
	// Endpoint is empty for AWS, or the base URL of an S3-compatible service.
	Endpoint     string
	Region       string
	Bucket       string
	UsePathStyle bool
}

// S3Factory builds S3 clients from tenant credentials.
type S3Factory struct {
	cfg S3Config
}

// NewS3Factory returns a factory for cfg.
func NewS3Factory(cfg S3Config) *S3Factory {
	return &S3Factory{cfg: cfg}
}

// ClientFor implements Factory.
func (f *S3Factory) ClientFor(_ context.Context, cred *credentials.Credential) (Client, error) {
	if cred == nil || cred.AccessKeyID == "" || cred.SecretAccessKey == "" {
		return nil, fmt.Errorf("%w: missing access key", ErrUnauthorized)
	}

	opts := s3.Options{
		Region:       f.cfg.Region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cred.AccessKeyID, cred.SecretAccessKey, cred.AccessToken),
		UsePathStyle: f.cfg.UsePathStyle,
	}
	if f.cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(f.cfg.Endpoint)
	}

	return &S3Client{
		api:    s3.New(opts),
		bucket: f.cfg.Bucket,
		folder: folderPrefix(cred.FolderHint),
	}, nil
}

// S3Client stores objects under the tenant's folder in a shared bucket.
// Object IDs are full keys.
type S3Client struct {
	api    *s3.Client
	bucket string
	folder string
}

func (c *S3Client) Upload(ctx context.Context, name string, data []byte, contentType string) (Object, error) {
	key := c.folder + name
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("put %s: %w", key, mapS3Error(err))
	}
	return Object{ID: key, Name: name, Size: int64(len(data)), LastModified: time.Now().UTC()}, nil
}

func (c *S3Client) Find(ctx context.Context, q Query) ([]Object, error) {
	prefix := c.folder + q.NamePrefix
	if q.Name != "" {
		prefix = c.folder + q.Name
	}

	var out []Object
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, mapS3Error(err))
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			name := strings.TrimPrefix(key, c.folder)
			if !q.Matches(name) {
				continue
			}
			out = append(out, Object{
				ID:           key,
				Name:         name,
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return out, nil
}

func (c *S3Client) Download(ctx context.Context, id string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, mapS3Error(err))
	}
	defer out.Body.Close()

	return readObject(id, out.Body, MaxObjectSize)
}

// readObject reads body, failing with ErrObjectTooLarge past limit bytes.
func readObject(id string, body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("read %s: %w (%d bytes)", id, ErrObjectTooLarge, limit)
	}
	return data, nil
}

// Delete removes id. S3 reports success for missing keys, so ErrNotFound is
// only seen from providers that say otherwise.
func (c *S3Client) Delete(ctx context.Context, id string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, mapS3Error(err))
	}
	return nil
}

var authErrorCodes = map[string]bool{
	"ExpiredToken":          true,
	"ExpiredTokenException": true,
	"InvalidAccessKeyId":    true,
	"InvalidToken":          true,
	"SignatureDoesNotMatch": true,
	"TokenRefreshRequired":  true,
}

// mapS3Error tags SDK errors with ErrUnauthorized or ErrNotFound.
func mapS3Error(err error) error {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case authErrorCodes[code]:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case code == "NotFound" || code == "NoSuchKey":
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}
	return err
}
