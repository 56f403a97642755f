// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tenantvault/internal/credentials"
)

// Operation names accepted by MemoryBucket.InjectFault.
const (
	OpUpload   = "upload"
	OpFind     = "find"
	OpDownload = "download"
	OpDelete   = "delete"
)

type memObject struct {
	Object
	key         string
	contentType string
	data        []byte
}

type fault struct {
	remaining int
	err       error
}

// MemoryBucket is an in-process object store for development and tests.
// Object IDs are random and unrelated to names, so callers must keep the ID
// returned by Upload.
type MemoryBucket struct {
	mu      sync.Mutex
	objects map[string]*memObject
	faults  map[string]*fault
	revoked map[string]bool
	calls   map[string]int
	now     func() time.Time
}

// NewMemoryBucket returns an empty bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		objects: make(map[string]*memObject),
		faults:  make(map[string]*fault),
		revoked: make(map[string]bool),
		calls:   make(map[string]int),
		now:     time.Now,
	}
}

// SetNow replaces the clock used for LastModified.
func (b *MemoryBucket) SetNow(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// InjectFault makes the next n calls of op fail with err. A negative n fails
// every call until ClearFaults.
func (b *MemoryBucket) InjectFault(op string, n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = &fault{remaining: n, err: err}
}

// ClearFaults removes all injected faults.
func (b *MemoryBucket) ClearFaults() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = make(map[string]*fault)
}

// Revoke makes clients built with accessKeyID fail with ErrUnauthorized.
func (b *MemoryBucket) Revoke(accessKeyID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[accessKeyID] = true
}

// Calls returns how many times op was attempted.
func (b *MemoryBucket) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Objects lists every stored object ordered by key. Name holds the full key,
// folder included.
func (b *MemoryBucket) Objects() []Object {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Object, 0, len(b.objects))
	for _, o := range b.objects {
		obj := o.Object
		obj.Name = o.key
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Overwrite replaces the contents of an existing object.
func (b *MemoryBucket) Overwrite(id string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[id]
	if !ok {
		return ErrNotFound
	}
	o.data = append([]byte(nil), data...)
	o.Size = int64(len(data))
	return nil
}

// Remove deletes an object without going through a client.
func (b *MemoryBucket) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, id)
}

// begin records a call and returns the error it should fail with, if any.
// b.mu must be held.
func (b *MemoryBucket) begin(ctx context.Context, op, accessKeyID string) error {
	b.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.revoked[accessKeyID] {
		return fmt.Errorf("%w: access key %s revoked", ErrUnauthorized, accessKeyID)
	}
	if f, ok := b.faults[op]; ok && f.remaining != 0 {
		if f.remaining > 0 {
			f.remaining--
		}
		return f.err
	}
	return nil
}

// MemoryFactory builds clients over a MemoryBucket.
type MemoryFactory struct {
	Bucket *MemoryBucket
}

// NewMemoryFactory returns a factory over bucket.
func NewMemoryFactory(bucket *MemoryBucket) *MemoryFactory {
	return &MemoryFactory{Bucket: bucket}
}

// ClientFor implements Factory.
func (f *MemoryFactory) ClientFor(_ context.Context, cred *credentials.Credential) (Client, error) {
	if cred == nil || cred.AccessKeyID == "" {
		return nil, fmt.Errorf("%w: missing access key", ErrUnauthorized)
	}
	return &memoryClient{
		bucket:      f.Bucket,
		accessKeyID: cred.AccessKeyID,
		folder:      folderPrefix(cred.FolderHint),
	}, nil
}

type memoryClient struct {
	bucket      *MemoryBucket
	accessKeyID string
	folder      string
}

func (c *memoryClient) Upload(ctx context.Context, name string, data []byte, contentType string) (Object, error) {
	b := c.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, OpUpload, c.accessKeyID); err != nil {
		return Object{}, err
	}

	o := &memObject{
		Object: Object{
			ID:           uuid.NewString(),
			Name:         name,
			Size:         int64(len(data)),
			LastModified: b.now().UTC(),
		},
		key:         c.folder + name,
		contentType: contentType,
		data:        append([]byte(nil), data...),
	}
	b.objects[o.ID] = o
	return o.Object, nil
}

func (c *memoryClient) Find(ctx context.Context, q Query) ([]Object, error) {
	b := c.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, OpFind, c.accessKeyID); err != nil {
		return nil, err
	}

	var out []Object
	for _, o := range b.objects {
		if !strings.HasPrefix(o.key, c.folder) {
			continue
		}
		if q.Matches(strings.TrimPrefix(o.key, c.folder)) {
			out = append(out, o.Object)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *memoryClient) Download(ctx context.Context, id string) ([]byte, error) {
	b := c.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, OpDownload, c.accessKeyID); err != nil {
		return nil, err
	}

	o, ok := b.objects[id]
	if !ok || !strings.HasPrefix(o.key, c.folder) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return append([]byte(nil), o.data...), nil
}

func (c *memoryClient) Delete(ctx context.Context, id string) error {
	b := c.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, OpDelete, c.accessKeyID); err != nil {
		return err
	}

	o, ok := b.objects[id]
	if !ok || !strings.HasPrefix(o.key, c.folder) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(b.objects, id)
	return nil
}
