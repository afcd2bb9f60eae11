package handlers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sharevault/backend/internal/auth"
	"github.com/sharevault/backend/internal/authz"
	"github.com/sharevault/backend/internal/files"
	"github.com/sharevault/backend/internal/logging"
	"github.com/sharevault/backend/internal/models"
)

// maxUploadBytes bounds the multipart form parsed into memory per upload.
const maxUploadBytes = 256 << 20

// FileHandler implements the file upload, listing and download endpoints.
type FileHandler struct {
	Files FileService
}

// Upload handles POST /upload requests. Authentication is enforced by the
// router's required-auth policy.
func (h FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	owner, ok := auth.IdentityFromContext(ctx)
	if !ok {
		failJSON(ctx, w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("invalid multipart form", "error", err)
		failJSON(ctx, w, http.StatusBadRequest, "No file uploaded")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		logger.Warn("missing file part", "error", err)
		failJSON(ctx, w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer part.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file, err := h.Files.Upload(ctx, files.UploadInput{
		Owner:        owner,
		OriginalName: header.Filename,
		Content:      part,
		Size:         header.Size,
		MimeType:     mimeType,
		IsPublic:     parseCheckbox(r.FormValue("isPublic")),
		Description:  r.FormValue("description"),
	})
	if err != nil {
		respondFileError(ctx, w, err, "Access denied. You can only modify your own files.")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "File uploaded successfully",
		"file":    uploadedFilePayload(file),
	})
}

// ListMine handles GET /files requests.
func (h FileHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, ok := auth.IdentityFromContext(ctx)
	if !ok {
		failJSON(ctx, w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	list, err := h.Files.ListMine(ctx, owner)
	if err != nil {
		respondFileError(ctx, w, err, "Access denied. You can only view your own files.")
		return
	}

	payload := make([]map[string]any, 0, len(list))
	for _, file := range list {
		payload = append(payload, filePayload(file))
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "files": payload})
}

// ListPublic handles GET /public-files-api requests. No authentication needed.
func (h FileHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.Files.ListPublic(ctx)
	if err != nil {
		respondFileError(ctx, w, err, "Access denied.")
		return
	}

	payload := make([]map[string]any, 0, len(list))
	for _, item := range list {
		entry := filePayload(item.File)
		entry["uploadedBy"] = map[string]any{"name": item.OwnerName, "email": item.OwnerEmail}
		payload = append(payload, entry)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "files": payload})
}

// Download handles GET /download/{id} requests. Authentication is optional:
// the authorization engine decides from whatever identity resolved.
func (h FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := authz.Anonymous
	if user, ok := auth.IdentityFromContext(ctx); ok {
		identity = authz.IdentityOf(user)
	}

	file, content, err := h.Files.Download(ctx, r.PathValue("id"), identity)
	if err != nil {
		respondFileError(ctx, w, err, "Access denied. This file is private.")
		return
	}
	defer content.Close()

	serveFile(ctx, w, file, content)
}

// TogglePrivacy handles POST /toggle-privacy/{id} requests.
func (h FileHandler) TogglePrivacy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, ok := auth.IdentityFromContext(ctx)
	if !ok {
		failJSON(ctx, w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	isPublic, err := h.Files.TogglePrivacy(ctx, r.PathValue("id"), authz.IdentityOf(owner))
	if err != nil {
		respondFileError(ctx, w, err, "Access denied. You can only modify your own files.")
		return
	}

	visibility := "private"
	if isPublic {
		visibility = "public"
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("File is now %s", visibility),
		"isPublic": isPublic,
	})
}

func serveFile(ctx context.Context, w http.ResponseWriter, file models.File, content io.Reader) {
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}

	if _, err := io.Copy(w, content); err != nil {
		logging.FromContext(ctx).Error("stream file bytes", "fileId", file.ID, "error", err)
	}
}

func parseCheckbox(value string) bool {
	switch value {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}

func uploadedFilePayload(file models.File) map[string]any {
	return map[string]any{
		"id":           file.ID,
		"originalName": file.OriginalName,
		"size":         file.Size,
		"uploadDate":   file.UploadDate.Format(time.RFC3339),
		"isPublic":     file.IsPublic,
	}
}

func filePayload(file models.File) map[string]any {
	return map[string]any{
		"id":            file.ID,
		"originalName":  file.OriginalName,
		"size":          file.Size,
		"mimetype":      file.MimeType,
		"uploadDate":    file.UploadDate.Format(time.RFC3339),
		"isPublic":      file.IsPublic,
		"downloadCount": file.DownloadCount,
		"description":   file.Description,
	}
}
