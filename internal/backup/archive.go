// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"

	"github.com/tomtom215/tenantvault/internal/docstore"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// FormatVersion is written into every archive header.
const FormatVersion = 1

// maxArchiveSize bounds decompressed archives.
const maxArchiveSize = 1 << 30

// Compression selects the archive encoding.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// Content types and extensions per compression.
const (
	contentTypeJSON = "application/json"
	contentTypeZstd = "application/zstd"
	extJSON         = ".json"
	extZstd         = ".json.zst"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// ArchiveHeader is the metadata section of an archive.
type ArchiveHeader struct {
	ArchiveID      string    `json:"archiveId"`
	TenantID       string    `json:"tenantId"`
	CreatedAt      time.Time `json:"createdAt"`
	TotalDocuments int       `json:"totalDocuments"`
	Collections    []string  `json:"collections"`
	FormatVersion  int       `json:"formatVersion"`
}

// Archive is one tenant snapshot. Records are opaque documents.
type Archive struct {
	Metadata    ArchiveHeader                  `json:"metadata"`
	Collections map[string][]docstore.Document `json:"collections"`
}

// CountDocuments sums the records of every collection.
func (a *Archive) CountDocuments() int {
	n := 0
	for _, docs := range a.Collections {
		n += len(docs)
	}
	return n
}

// Serialize encodes a as JSON, compressed when c is CompressionZstd.
func Serialize(a *Archive, c Compression) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal archive: %w", err)
	}
	if c != CompressionZstd {
		return data, nil
	}

	enc, err := encoder()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// Parse decodes an archive produced by Serialize. Compression is detected
// from the zstd frame magic. Numbers are kept as json.Number so values
// survive the round trip exactly.
func Parse(data []byte) (*Archive, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := decoder()
		if err != nil {
			return nil, err
		}
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress archive: %w", err)
		}
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("decode archive: malformed JSON")
	}
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var a Archive
	if err := d.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if a.Metadata.ArchiveID == "" || a.Metadata.TenantID == "" {
		return nil, fmt.Errorf("decode archive: missing metadata")
	}
	if a.Metadata.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("decode archive: unsupported format version %d", a.Metadata.FormatVersion)
	}
	return &a, nil
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// EncodeAll and DecodeAll are safe for concurrent use, so one pair is shared.
func initZstd() {
	zstdEnc, zstdErr = zstd.NewWriter(nil)
	if zstdErr != nil {
		zstdErr = fmt.Errorf("create zstd encoder: %w", zstdErr)
		return
	}
	zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxArchiveSize))
	if zstdErr != nil {
		zstdErr = fmt.Errorf("create zstd decoder: %w", zstdErr)
	}
}

func encoder() (*zstd.Encoder, error) {
	zstdOnce.Do(initZstd)
	return zstdEnc, zstdErr
}

func decoder() (*zstd.Decoder, error) {
	zstdOnce.Do(initZstd)
	return zstdDec, zstdErr
}

func contentType(c Compression) string {
	if c == CompressionZstd {
		return contentTypeZstd
	}
	return contentTypeJSON
}

// ObjectName builds <prefix>_<tenantID>_<archiveID>.json[.zst].
func ObjectName(prefix, tenantID, archiveID string, c Compression) string {
	ext := extJSON
	if c == CompressionZstd {
		ext = extZstd
	}
	return prefix + "_" + tenantID + "_" + archiveID + ext
}

// ParseObjectName recovers the tenant and archive ids from a name built by
// ObjectName with the same prefix. The archive id follows the last
// underscore, so tenant ids may contain underscores.
func ParseObjectName(prefix, name string) (tenantID, archiveID string, err error) {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return "", "", fmt.Errorf("object name %q: missing prefix %q", name, prefix)
	}
	switch {
	case strings.HasSuffix(rest, extZstd):
		rest = strings.TrimSuffix(rest, extZstd)
	case strings.HasSuffix(rest, extJSON):
		rest = strings.TrimSuffix(rest, extJSON)
	default:
		return "", "", fmt.Errorf("object name %q: unknown extension", name)
	}

	i := strings.LastIndexByte(rest, '_')
	if i <= 0 {
		return "", "", fmt.Errorf("object name %q: missing tenant id", name)
	}
	tenantID, archiveID = rest[:i], rest[i+1:]
	if !validation.IsTenantID(tenantID) || !validation.IsArchiveID(archiveID) {
		return "", "", fmt.Errorf("object name %q: malformed ids", name)
	}
	return tenantID, archiveID, nil
}

// idSource hands out monotonic ULIDs.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(ulid.DefaultEntropy(), 0)}
}

func (s *idSource) next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}
