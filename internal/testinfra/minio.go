// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMinIOImage is the S3-compatible server used for storage tests
	DefaultMinIOImage = "minio/minio:latest"

	// DefaultMinIOPort is the S3 API port inside the container
	DefaultMinIOPort = "9000"

	// MinIO root credentials. Tests use them as a tenant's access key.
	MinIOAccessKey = "tenantvault"
	MinIOSecretKey = "tenantvault-secret"
)

// MinIOContainer represents a running MinIO server for testing.
type MinIOContainer struct {
	testcontainers.Container
	Endpoint string
}

// NewMinIOContainer creates and starts a MinIO container.
func NewMinIOContainer(ctx context.Context) (*MinIOContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultMinIOImage,
		ExposedPorts: []string{DefaultMinIOPort + "/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     MinIOAccessKey,
			"MINIO_ROOT_PASSWORD": MinIOSecretKey,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMinIOPort+"/tcp"),
			wait.ForHTTP("/minio/health/live").WithPort(DefaultMinIOPort+"/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, terminateOnError(ctx, container, fmt.Errorf("get container host: %w", err))
	}
	port, err := container.MappedPort(ctx, DefaultMinIOPort)
	if err != nil {
		return nil, terminateOnError(ctx, container, fmt.Errorf("get mapped port: %w", err))
	}

	return &MinIOContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}, nil
}

// CreateBucket creates a bucket with the root credentials.
func (m *MinIOContainer) CreateBucket(ctx context.Context, name string) error {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(m.Endpoint),
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider(MinIOAccessKey, MinIOSecretKey, ""),
		UsePathStyle: true,
	})
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}
