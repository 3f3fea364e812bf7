package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/idgen"
)

// DefaultBackupPrefix is the key prefix used when none is configured.
const DefaultBackupPrefix = "backups"

// Sealer encrypts and decrypts backup payloads.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// BlobStore reads and deletes archived objects.
type BlobStore interface {
	domain.BlobReader
	domain.BlobDeleter
}

// ArchiverConfig controls where archives live and how many are retained.
type ArchiverConfig struct {
	Prefix string
	// Keep is the number of archives retained per account. Zero keeps all.
	Keep int
}

// BackupArchiver implements domain.BackupArchiver. Backups are sealed and
// stored at {prefix}/{account}/{YYYY/MM/DD}/{ulid}.json.enc.
type BackupArchiver struct {
	writer domain.BlobWriter
	blobs  BlobStore
	sealer Sealer
	audit  domain.AuditStore
	prefix string
	keep   int
	logger *slog.Logger
	now    func() time.Time
}

// NewBackupArchiver creates a BackupArchiver. audit may be nil.
func NewBackupArchiver(
	writer domain.BlobWriter,
	blobs BlobStore,
	sealer Sealer,
	audit domain.AuditStore,
	cfg ArchiverConfig,
	logger *slog.Logger,
) *BackupArchiver {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultBackupPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupArchiver{
		writer: writer,
		blobs:  blobs,
		sealer: sealer,
		audit:  audit,
		prefix: prefix,
		keep:   max(cfg.Keep, 0),
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// Archive seals backup and uploads it, returning the object path.
func (a *BackupArchiver) Archive(ctx context.Context, id domain.AccountID, backup []byte) (string, error) {
	sealed, err := a.sealer.Seal(backup)
	if err != nil {
		return "", fmt.Errorf("s3blob: seal backup %s: %w", id, err)
	}

	now := a.now().UTC()
	path := a.backupPath(id, now)
	if err := a.writer.Put(ctx, path, bytes.NewReader(sealed), "application/octet-stream"); err != nil {
		return "", fmt.Errorf("s3blob: archive %s: %w", id, err)
	}

	a.logger.InfoContext(ctx, "archiver: backup stored",
		slog.String("account", string(id)),
		slog.String("path", path),
		slog.Int("bytes", len(sealed)),
	)
	if a.audit != nil {
		if err := a.audit.Log(ctx, "backup.archive", map[string]any{
			"account": string(id),
			"path":    path,
			"bytes":   len(sealed),
		}); err != nil {
			a.logger.WarnContext(ctx, "archiver: audit failed", slog.String("error", err.Error()))
		}
	}
	a.prune(ctx, id)
	return path, nil
}

// prune deletes the oldest archives of id beyond the retention limit.
// Failures are logged; the next archive retries them.
func (a *BackupArchiver) prune(ctx context.Context, id domain.AccountID) {
	if a.keep == 0 {
		return
	}
	infos, err := a.List(ctx, id)
	if err != nil {
		a.logger.WarnContext(ctx, "archiver: prune list failed",
			slog.String("account", string(id)),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(infos) <= a.keep {
		return
	}

	var removed []string
	for _, info := range infos[:len(infos)-a.keep] {
		if err := a.blobs.Delete(ctx, info.Path); err != nil {
			a.logger.WarnContext(ctx, "archiver: prune delete failed",
				slog.String("path", info.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed = append(removed, info.Path)
	}
	if len(removed) == 0 {
		return
	}
	a.logger.InfoContext(ctx, "archiver: old backups pruned",
		slog.String("account", string(id)),
		slog.Int("removed", len(removed)),
	)
	if a.audit != nil {
		if err := a.audit.Log(ctx, "backup.prune", map[string]any{
			"account": string(id),
			"paths":   removed,
		}); err != nil {
			a.logger.WarnContext(ctx, "archiver: audit failed", slog.String("error", err.Error()))
		}
	}
}

// List returns the archived backups of an account, oldest first.
func (a *BackupArchiver) List(ctx context.Context, id domain.AccountID) ([]domain.BlobInfo, error) {
	infos, err := a.blobs.List(ctx, a.prefix+"/"+string(id)+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: list backups %s: %w", id, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Restore downloads and opens the backup at path. Paths outside the
// archive prefix and missing objects yield domain.ErrNotFound.
func (a *BackupArchiver) Restore(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, a.prefix+"/") || strings.Contains(path, "..") {
		return nil, fmt.Errorf("s3blob: restore %s: %w", path, domain.ErrNotFound)
	}
	ok, err := a.blobs.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: restore %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("s3blob: restore %s: %w", path, domain.ErrNotFound)
	}

	body, err := a.blobs.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: restore %s: %w", path, err)
	}
	defer body.Close()

	sealed, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read %s: %w", path, err)
	}
	plain, err := a.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("s3blob: open %s: %w", path, err)
	}
	return plain, nil
}

// backupPath builds the object key. ULIDs sort by time so lexical order
// within a day matches creation order.
func (a *BackupArchiver) backupPath(id domain.AccountID, t time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s.json.enc", a.prefix, id, t.Format("2006/01/02"), idgen.NewAt(t))
}

var _ domain.BackupArchiver = (*BackupArchiver)(nil)
