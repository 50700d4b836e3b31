package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/service"
)

// backupMaxSize caps uploaded backup files
const backupMaxSize = 32 << 20

// AdminHandler handles admin accounts, feature flags and backups
type AdminHandler struct {
	authService   *service.AuthService
	flagService   *service.FeatureFlagService
	backupService *service.BackupService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService *service.AuthService, flagService *service.FeatureFlagService, backupService *service.BackupService) *AdminHandler {
	return &AdminHandler{
		authService:   authService,
		flagService:   flagService,
		backupService: backupService,
	}
}

// ListAdmins lists every admin account
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.authService.ListAdmins()
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, admins, listMeta{Total: len(admins)})
}

type createAdminResponse struct {
	Admin        any    `json:"admin"`
	TempPassword string `json:"tempPassword,omitempty"`
}

// CreateAdmin adds an admin account
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var in service.AdminInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}

	admin, tempPassword, err := h.authService.CreateAdmin(in)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	slog.Info("Admin account created", "admin_id", admin.ID, "role", admin.Role, "by", actor(r))
	respondJSON(w, http.StatusCreated, createAdminResponse{Admin: admin, TempPassword: tempPassword})
}

// UpdateAdmin edits an admin account
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var in service.AdminInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}

	admin, err := h.authService.UpdateAdmin(id, in, GetAdminFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, admin)
}

// DeleteAdmin removes an admin account
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.authService.DeleteAdmin(id, GetAdminFromContext(r.Context())); err != nil {
		respondWithError(w, r, err)
		return
	}

	slog.Info("Admin account deleted", "admin_id", id, "by", actor(r))
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

// ListFlags returns every feature flag
func (h *AdminHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.flagService.List()
	respondList(w, flags, listMeta{Total: len(flags)})
}

type setFlagRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetFlag turns a feature flag on or off
func (h *AdminHandler) SetFlag(w http.ResponseWriter, r *http.Request) {
	var req setFlagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Enabled == nil {
		respondWithError(w, r, invalidParam("enabled"))
		return
	}

	flag, err := h.flagService.Set(r.PathValue("key"), *req.Enabled, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flag)
}

// ExportBackup downloads the whole tree as a JSON document
func (h *AdminHandler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.backupService.ExportToWriter(&buf); err != nil {
		respondWithError(w, r, err)
		return
	}

	filename := fmt.Sprintf("familytree_backup_%s.json", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("Failed to write backup", "error", err)
		return
	}

	slog.Info("Tree exported", "by", actor(r), "bytes", buf.Len())
}

// ImportBackup restores an uploaded backup. The file is read from the
// "backup_file" multipart field or, failing that, the raw request body.
func (h *AdminHandler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, backupMaxSize)
	clear := queryBool(r, "clear")

	if err := r.ParseMultipartForm(backupMaxSize); err == nil {
		file, _, err := r.FormFile("backup_file")
		if err != nil {
			respondWithError(w, r, apperr.Wrap(err, apperr.CodeInvalid, "Please select a backup file", "يرجى اختيار ملف النسخة الاحتياطية"))
			return
		}
		defer file.Close()
		if r.FormValue("clear") == "true" {
			clear = true
		}
		h.importFrom(w, r, file, clear)
		return
	}

	h.importFrom(w, r, r.Body, clear)
}

func (h *AdminHandler) importFrom(w http.ResponseWriter, r *http.Request, src io.Reader, clear bool) {
	if err := h.backupService.ImportFromReader(src, clear, actor(r)); err != nil {
		respondWithError(w, r, err)
		return
	}
	slog.Info("Tree imported", "by", actor(r), "clear", clear)
	respondJSON(w, http.StatusOK, map[string]bool{"imported": true})
}
