package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sharevault/backend/internal/authz"
	"github.com/sharevault/backend/internal/files"
	"github.com/sharevault/backend/internal/logging"
	"github.com/sharevault/backend/internal/repositories"
	"github.com/sharevault/backend/internal/sharelink"
	"github.com/sharevault/backend/internal/sharing"
)

// invalidLinkMessage is the uniform outward message for every invalid-link
// outcome. The differentiated reason (expired, exhausted, revoked, not found)
// is logged but never leaked, so the response does not become an oracle for a
// link's internal state.
const invalidLinkMessage = "This share link is invalid or has expired."

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func failJSON(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]any{"success": false, "message": message})
}

// respondDenied renders an authorization denial. notOwnerMessage customises
// the owner-only wording per operation, matching the messages users see.
func respondDenied(ctx context.Context, w http.ResponseWriter, denied *authz.DeniedError, notOwnerMessage string) {
	switch denied.Decision.Reason {
	case authz.DenyPrivate:
		respondJSON(ctx, w, http.StatusForbidden, map[string]any{
			"success":    false,
			"message":    "Access denied. This file is private.",
			"needsLogin": denied.Decision.NeedsLogin,
		})
	case authz.DenyLinkInvalid:
		logging.FromContext(ctx).Warn("share link rejected", "reason", denied.Decision.LinkErr)
		failJSON(ctx, w, http.StatusNotFound, invalidLinkMessage)
	default:
		failJSON(ctx, w, http.StatusForbidden, notOwnerMessage)
	}
}

func isLinkInvalid(err error) bool {
	return errors.Is(err, sharelink.ErrLinkNotFound) ||
		errors.Is(err, sharelink.ErrLinkExpired) ||
		errors.Is(err, sharelink.ErrLinkExhausted) ||
		errors.Is(err, sharelink.ErrLinkRevoked)
}

// respondFileError maps the common service error cases shared by the file and
// share-link handlers. The notOwnerMessage applies when the error wraps an
// owner-only denial.
func respondFileError(ctx context.Context, w http.ResponseWriter, err error, notOwnerMessage string) {
	var denied *authz.DeniedError
	var fileValidation *files.ValidationError
	var linkValidation *sharelink.ValidationError

	switch {
	case errors.As(err, &denied):
		respondDenied(ctx, w, denied, notOwnerMessage)
	case errors.As(err, &fileValidation):
		failJSON(ctx, w, http.StatusBadRequest, fileValidation.Message)
	case errors.As(err, &linkValidation):
		failJSON(ctx, w, http.StatusBadRequest, linkValidation.Message)
	case isLinkInvalid(err):
		logging.FromContext(ctx).Warn("share link rejected", "reason", err)
		failJSON(ctx, w, http.StatusNotFound, invalidLinkMessage)
	case errors.Is(err, files.ErrFileMissing), errors.Is(err, sharing.ErrFileMissing):
		failJSON(ctx, w, http.StatusNotFound, "File not found on server")
	case errors.Is(err, repositories.ErrNotFound):
		failJSON(ctx, w, http.StatusNotFound, "File not found")
	default:
		logging.FromContext(ctx).Error("request failed", "error", err)
		failJSON(ctx, w, http.StatusInternalServerError, "Internal server error")
	}
}
