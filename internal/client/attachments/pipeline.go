// Package attachments copies caller-supplied files into the durable local
// cache and moves their bytes to and from blob storage. Everything remote is
// best-effort: a failed upload degrades to "no remote path yet" and gets
// backfilled by a later sync pass.
package attachments

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/carnetapp/carnet/internal/blob"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/filex"
	"github.com/carnetapp/carnet/internal/logging"
	"github.com/carnetapp/carnet/internal/netx"
)

// Pipeline manages attachment files for documents and their pages.
type Pipeline struct {
	cacheDir string
	storage  blob.Storage
	urlTTL   time.Duration
	log      logging.Logger
	now      func() time.Time
}

// NewPipeline ensures cacheDir exists and returns the pipeline. storage may
// be nil for a fully offline setup; uploads then always degrade.
func NewPipeline(cacheDir string, storage blob.Storage, urlTTL time.Duration, log logging.Logger) (*Pipeline, error) {
	dir, err := filex.EnsureDir(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("attachment cache: %w", err)
	}
	return &Pipeline{cacheDir: dir, storage: storage, urlTTL: urlTTL, log: log, now: time.Now}, nil
}

// Cache copies the source file into the cache directory under a
// collision-resistant name and returns the cached path. On any failure the
// original path is returned unchanged, so the record still carries a usable
// local reference.
func (p *Pipeline) Cache(ctx context.Context, sourcePath string) string {
	suffix, err := common.MakeRandHexString(4)
	if err != nil {
		p.log.Warn(ctx, "attachment cache name generation failed", "error", err)
		return sourcePath
	}

	name := fmt.Sprintf("%d_%s_%s", p.now().UnixMilli(), suffix, filepath.Base(sourcePath))
	dst := filepath.Join(p.cacheDir, name)

	if err := filex.CopyFile(sourcePath, dst); err != nil {
		p.log.Warn(ctx, "attachment caching failed, keeping source path",
			"source", sourcePath, "error", err)
		return sourcePath
	}
	return dst
}

// Upload pushes the cached file to blob storage under
// "{ownerId}/{timestamp}_{filename}" and returns the remote path. Returns ""
// on any failure: record creation must never fail because a background
// upload did.
func (p *Pipeline) Upload(ctx context.Context, localPath, ownerID string) string {
	if p.storage == nil {
		return ""
	}

	f, err := os.Open(localPath)
	if err != nil {
		p.log.Warn(ctx, "attachment upload skipped, cannot read local file",
			"path", localPath, "error", err)
		return ""
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := blob.ObjectKey(ownerID, p.now(), filepath.Base(localPath))
	stored, err := p.storage.Upload(ctx, key, f, contentType)
	if err != nil {
		p.log.Warn(ctx, "attachment upload failed", "path", localPath, "error", err)
		return ""
	}
	return stored
}

// ResolveForDisplay returns a displayable URI: the local cache file when
// readable, otherwise a freshly signed URL for the remote path, otherwise
// common.ErrUnavailable.
func (p *Pipeline) ResolveForDisplay(ctx context.Context, localPath, remotePath string) (string, error) {
	if localPath != "" {
		if _, err := os.Stat(localPath); err == nil {
			return localPath, nil
		}
	}

	if remotePath != "" && p.storage != nil {
		url, err := p.storage.SignedURL(ctx, remotePath, p.urlTTL)
		if err == nil {
			return url, nil
		}
		p.log.Warn(ctx, "signed url failed", "remote", remotePath, "error", err)
	}

	return "", common.ErrUnavailable
}

// Materialize downloads the remote blob into the local cache and returns
// the cached path. Used when a record pulled from another device carries a
// remote path but no local file yet.
func (p *Pipeline) Materialize(ctx context.Context, remotePath string) (string, error) {
	if remotePath == "" || p.storage == nil {
		return "", common.ErrUnavailable
	}

	url, err := p.storage.SignedURL(ctx, remotePath, p.urlTTL)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", remotePath, err)
	}
	data, err := netx.DownloadFromSignedURL(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", remotePath, err)
	}

	dst := filepath.Join(p.cacheDir, fmt.Sprintf("%d_%s", p.now().UnixMilli(), filepath.Base(remotePath)))
	if err := filex.WriteFileAtomic(dst, data, 0o600); err != nil {
		return "", fmt.Errorf("cache %s: %w", remotePath, err)
	}
	return dst, nil
}

// Remove deletes the remote blob. Best-effort: the error is logged and
// returned, but callers in delete cascades ignore it by contract.
func (p *Pipeline) Remove(ctx context.Context, remotePath string) error {
	if remotePath == "" || p.storage == nil {
		return nil
	}
	if err := p.storage.Remove(ctx, remotePath); err != nil {
		p.log.Warn(ctx, "remote blob delete failed", "remote", remotePath, "error", err)
		return err
	}
	return nil
}
