package handlers

import (
	"net/http"
	"time"

	"github.com/sharevault/backend/internal/auth"
	"github.com/sharevault/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Credentials   CredentialIssuer
	Resolver      *auth.Resolver
	Files         FileService
	ShareLinks    ShareLinkService
	PublicBaseURL string
	TokenTTL      time.Duration
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. The optional
// vs required authentication policy is decided here, per route; the resolver
// behind both is the same.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Credentials: deps.Credentials, TokenTTL: deps.TokenTTL}
	fileH := FileHandler{Files: deps.Files}
	shareH := ShareLinkHandler{Links: deps.ShareLinks, PublicBaseURL: deps.PublicBaseURL}

	authn := middleware.Authenticator{Resolver: deps.Resolver}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /user/register", authH.Register)
	mux.HandleFunc("POST /user/login", authH.Login)
	mux.HandleFunc("POST /user/logout", authH.Logout)

	mux.Handle("POST /upload", authn.Required(http.HandlerFunc(fileH.Upload)))
	mux.Handle("GET /files", authn.Required(http.HandlerFunc(fileH.ListMine)))
	mux.HandleFunc("GET /public-files-api", fileH.ListPublic)
	mux.Handle("GET /download/{id}", authn.Optional(http.HandlerFunc(fileH.Download)))
	mux.Handle("POST /toggle-privacy/{id}", authn.Required(http.HandlerFunc(fileH.TogglePrivacy)))

	mux.Handle("POST /create-share-link/{fileId}", authn.Required(http.HandlerFunc(shareH.Create)))
	mux.Handle("GET /share-links/{fileId}", authn.Required(http.HandlerFunc(shareH.List)))
	mux.Handle("POST /revoke-share-link/{linkId}", authn.Required(http.HandlerFunc(shareH.Revoke)))

	mux.HandleFunc("GET /s/{token}", shareH.Shared)
	mux.HandleFunc("GET /s/{token}/download", shareH.SharedDownload)
}
