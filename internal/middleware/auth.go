package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sharevault/backend/internal/auth"
	"github.com/sharevault/backend/internal/logging"
)

// CredentialCookie is the cookie carrying the signed credential.
const CredentialCookie = "token"

const loginPath = "/user/login"

// Authenticator applies one resolver under two policies. Optional always
// proceeds, with or without an identity on the context; Required short-circuits
// unauthenticated requests before they reach business logic. The resolver
// itself behaves identically either way.
type Authenticator struct {
	Resolver *auth.Resolver
}

// Optional resolves the presented credential, if any, and always continues.
func (a Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := a.resolve(w, r)
		if res.Authenticated {
			r = r.WithContext(auth.WithIdentity(r.Context(), res.User))
		}
		next.ServeHTTP(w, r)
	})
}

// Required resolves the presented credential and rejects the request with a
// structured authentication-required response when no identity resolves.
func (a Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := a.resolve(w, r)
		if !res.Authenticated {
			logging.FromContext(r.Context()).Warn("authentication required", "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":    false,
				"message":    "Please login to access this resource",
				"redirectTo": loginPath,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), res.User)))
	})
}

func (a Authenticator) resolve(w http.ResponseWriter, r *http.Request) auth.Resolution {
	if a.Resolver == nil {
		return auth.Resolution{}
	}

	res := a.Resolver.Resolve(r.Context(), PresentedCredential(r))
	if res.ClearCredential {
		http.SetCookie(w, &http.Cookie{
			Name:     CredentialCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
	return res
}

// PresentedCredential extracts the bearer credential from the Authorization
// header or the credential cookie, preferring the header.
func PresentedCredential(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(CredentialCookie); err == nil {
		return cookie.Value
	}
	return ""
}
