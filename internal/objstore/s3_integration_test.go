// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

//go:build integration

package objstore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/tenantvault/internal/credentials"
	"github.com/tomtom215/tenantvault/internal/testinfra"
)

func TestS3Client_Integration(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	minio, err := testinfra.NewMinIOContainer(ctx)
	if err != nil {
		t.Fatalf("failed to start minio: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, minio)

	if err := minio.CreateBucket(ctx, "archives"); err != nil {
		t.Fatalf("CreateBucket() error: %v", err)
	}

	factory := NewS3Factory(S3Config{
		Endpoint:     minio.Endpoint,
		Region:       "us-east-1",
		Bucket:       "archives",
		UsePathStyle: true,
	})
	cred := &credentials.Credential{
		TenantID:        "shop-1",
		AccessKeyID:     testinfra.MinIOAccessKey,
		SecretAccessKey: testinfra.MinIOSecretKey,
		FolderHint:      "shops/shop-1",
	}
	cl, err := factory.ClientFor(ctx, cred)
	if err != nil {
		t.Fatalf("ClientFor() error: %v", err)
	}

	payload := []byte(`{"metadata":{}}`)
	obj, err := cl.Upload(ctx, "tenantvault_shop-1_a.json", payload, "application/json")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if obj.ID != "shops/shop-1/tenantvault_shop-1_a.json" {
		t.Errorf("Upload() ID = %q", obj.ID)
	}

	found, err := cl.Find(ctx, Query{Name: "tenantvault_shop-1_a.json"})
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(found) != 1 || found[0].ID != obj.ID || found[0].Size != int64(len(payload)) {
		t.Fatalf("Find() = %+v", found)
	}

	data, err := cl.Download(ctx, obj.ID)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Download() = %s", data)
	}

	if err := cl.Delete(ctx, obj.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := cl.Download(ctx, obj.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download() after delete error = %v, want ErrNotFound", err)
	}

	bad, err := factory.ClientFor(ctx, &credentials.Credential{
		TenantID: "shop-1", AccessKeyID: "nobody", SecretAccessKey: "wrong",
	})
	if err != nil {
		t.Fatalf("ClientFor() error: %v", err)
	}
	if _, err := bad.Find(ctx, Query{}); !IsAuthError(err) {
		t.Errorf("Find() with unknown key error = %v, want auth error", err)
	}
}
