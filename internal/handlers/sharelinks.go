package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sharevault/backend/internal/auth"
	"github.com/sharevault/backend/internal/authz"
	"github.com/sharevault/backend/internal/logging"
	"github.com/sharevault/backend/internal/models"
	"github.com/sharevault/backend/internal/sharelink"
)

// ShareLinkHandler implements the share-link lifecycle and redemption endpoints.
type ShareLinkHandler struct {
	Links         ShareLinkService
	PublicBaseURL string
	NowFunc       func() time.Time
}

// Create handles POST /create-share-link/{fileId} requests.
func (h ShareLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, ok := auth.IdentityFromContext(ctx)
	if !ok {
		failJSON(ctx, w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	var req createShareLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid share link payload", "error", err)
		failJSON(ctx, w, http.StatusBadRequest, "Invalid share link parameters")
		return
	}

	link, err := h.Links.Create(ctx, r.PathValue("fileId"), authz.IdentityOf(owner), req.ExpiresIn, req.OneTimeUse)
	if err != nil {
		respondFileError(ctx, w, err, "You can only share your own files")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"success":   true,
		"message":   "Share link created successfully!",
		"shareLink": h.linkPayload(link),
	})
}

// List handles GET /share-links/{fileId} requests.
func (h ShareLinkHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, ok := auth.IdentityFromContext(ctx)
	if !ok {
		failJSON(ctx, w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	file, links, err := h.Links.List(ctx, r.PathValue("fileId"), authz.IdentityOf(owner))
	if err != nil {
		respondFileError(ctx, w, err, "You can only view share links for your own files")
		return
	}

	payload := make([]map[string]any, 0, len(links))
	for _, link := range links {
		payload = append(payload, h.linkPayload(link))
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success":    true,
		"file":       map[string]any{"id": file.ID, "name": file.OriginalName},
		"shareLinks": payload,
	})
}

// Revoke handles POST /revoke-share-link/{linkId} requests.
func (h ShareLinkHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, ok := auth.IdentityFromContext(ctx)
	if !ok {
		failJSON(ctx, w, http.StatusUnauthorized, "Please login to access this resource")
		return
	}

	if err := h.Links.Revoke(ctx, r.PathValue("linkId"), authz.IdentityOf(owner)); err != nil {
		respondFileError(ctx, w, err, "You can only revoke your own share links")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Share link has been revoked successfully",
	})
}

// Shared handles GET /s/{token} requests: the unauthenticated landing view of
// a share link. Viewing does not consume the link.
func (h ShareLinkHandler) Shared(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resolved, err := h.Links.Resolve(ctx, r.PathValue("token"))
	if err != nil {
		respondFileError(ctx, w, err, "Access denied.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"file": map[string]any{
			"id":           resolved.File.ID,
			"originalName": resolved.File.OriginalName,
			"size":         resolved.File.Size,
			"mimetype":     resolved.File.MimeType,
			"description":  resolved.File.Description,
			"uploadedBy":   resolved.OwnerName,
		},
		"shareLink": map[string]any{
			"expiresAt":   resolved.Link.ExpiresAt.Format(time.RFC3339),
			"oneTimeUse":  resolved.Link.OneTimeUse,
			"downloadUrl": h.shareURL(resolved.Link.Token) + "/download",
		},
	})
}

// SharedDownload handles GET /s/{token}/download requests, consuming the link.
func (h ShareLinkHandler) SharedDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, content, err := h.Links.Download(ctx, r.PathValue("token"))
	if err != nil {
		respondFileError(ctx, w, err, "Access denied.")
		return
	}
	defer content.Close()

	serveFile(ctx, w, file, content)
}

func (h ShareLinkHandler) linkPayload(link models.ShareLink) map[string]any {
	now := h.now()
	payload := map[string]any{
		"id":          link.ID,
		"url":         h.shareURL(link.Token),
		"expiresAt":   link.ExpiresAt.Format(time.RFC3339),
		"oneTimeUse":  link.OneTimeUse,
		"accessCount": link.AccessCount,
		"hasExpired":  now.After(link.ExpiresAt),
		"isValid":     sharelink.IsValid(link, now),
	}
	if link.LastAccessedAt != nil {
		payload["lastAccessedAt"] = link.LastAccessedAt.Format(time.RFC3339)
	}
	return payload
}

func (h ShareLinkHandler) shareURL(token string) string {
	base := strings.TrimSuffix(h.PublicBaseURL, "/")
	return fmt.Sprintf("%s/s/%s", base, token)
}

func (h ShareLinkHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}

type createShareLinkRequest struct {
	ExpiresIn  int  `json:"expiresIn"`
	OneTimeUse bool `json:"oneTimeUse"`
}
