package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"videoforge/internal/config"
)

// Mirror copies completed artifacts to an object-storage bucket. Working
// storage stays on local disk; the mirror is a durability add-on and is
// disabled entirely when no endpoint or bucket is configured.
type Mirror struct {
	client *minio.Client
	bucket string
}

// NewMirror returns nil (no error) when mirroring is not configured.
func NewMirror(cfg config.StorageConfig) (*Mirror, error) {
	if cfg.MirrorEndpoint == "" || cfg.MirrorBucket == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.MirrorEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MirrorAccessKey, cfg.MirrorSecretKey, ""),
		Secure: cfg.MirrorUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("mirror connection: %w", err)
	}
	return &Mirror{client: client, bucket: cfg.MirrorBucket}, nil
}

// Upload pushes one artifact file; the object key is the file name, which
// is already unique and chronologically sortable.
func (m *Mirror) Upload(ctx context.Context, path string) error {
	_, err := m.client.FPutObject(ctx, m.bucket, filepath.Base(path), path, minio.PutObjectOptions{
		ContentType: mimeTypeForExt(filepath.Ext(path)),
	})
	if err != nil {
		return fmt.Errorf("mirror upload %s: %w", path, err)
	}
	return nil
}

func mimeTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	case "webm":
		return "video/webm"
	case "avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
