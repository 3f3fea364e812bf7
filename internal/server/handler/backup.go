package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/importer"
	"github.com/alanyoungcy/portfolioledger/internal/service"
)

// BackupService defines the backup, archive and paste import methods.
type BackupService interface {
	ExportBackup(ctx context.Context, id domain.AccountID) ([]byte, error)
	ImportBackup(ctx context.Context, raw []byte) (domain.AccountID, error)
	ArchiveBackup(ctx context.Context, id domain.AccountID) (string, error)
	ListBackups(ctx context.Context, id domain.AccountID) ([]domain.BlobInfo, error)
	RestoreBackup(ctx context.Context, path string) (domain.AccountID, error)
	PreviewPaste(id domain.AccountID, text string) (importer.Preview, error)
	CommitPaste(ctx context.Context, id domain.AccountID, preview importer.Preview, selected []string) (service.CommitResult, error)
}

// BackupHandler serves backup export and import, encrypted archives and
// the bulk paste tool.
type BackupHandler struct {
	svc    BackupService
	logger *slog.Logger
}

// NewBackupHandler creates a BackupHandler.
func NewBackupHandler(svc BackupService, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{svc: svc, logger: logHandler(logger, "backup")}
}

// Export downloads the backup document of an account.
// GET /api/accounts/{id}/backup
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	raw, err := h.svc.ExportBackup(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "export backup", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger-`+string(id)+`.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// Import replaces an account with the uploaded backup document and makes
// it active. Nothing changes when the document is malformed.
// POST /api/backup
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.svc.ImportBackup(r.Context(), raw)
	if err != nil {
		fail(w, r, h.logger, "import backup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "imported", "account": string(id)})
}

// Archive seals the current backup of an account into object storage.
// POST /api/accounts/{id}/archives
func (h *BackupHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	path, err := h.svc.ArchiveBackup(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "archive backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

type archiveInfo struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

// ListArchives lists the archived backups of an account.
// GET /api/accounts/{id}/archives
func (h *BackupHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	blobs, err := h.svc.ListBackups(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "list archives", err)
		return
	}
	out := make([]archiveInfo, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, archiveInfo{
			Path:         b.Path,
			Size:         b.Size,
			LastModified: b.LastModified.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}

type restoreRequest struct {
	Path string `json:"path"`
}

// Restore decrypts an archived backup and imports it.
// POST /api/archives/restore
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	id, err := h.svc.RestoreBackup(r.Context(), req.Path)
	if err != nil {
		fail(w, r, h.logger, "restore backup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "account": string(id)})
}

type pasteRequest struct {
	Text string `json:"text"`
}

// PreviewPaste parses pasted exchange text into reviewable items. Nothing
// is committed.
// POST /api/accounts/{id}/paste/preview
func (h *BackupHandler) PreviewPaste(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req pasteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	preview, err := h.svc.PreviewPaste(id, req.Text)
	if err != nil {
		fail(w, r, h.logger, "preview paste", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type commitRequest struct {
	Preview importer.Preview `json:"preview"`
	// Selected holds trade ids and balance symbols. Omitted means all.
	Selected []string `json:"selected"`
}

// CommitPaste applies the selected items of a previously returned preview.
// POST /api/accounts/{id}/paste/commit
func (h *BackupHandler) CommitPaste(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.CommitPaste(r.Context(), id, req.Preview, req.Selected)
	if err != nil {
		body := map[string]any{"result": res, "error": err.Error()}
		writeJSON(w, http.StatusMultiStatus, body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
