package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sharevault/backend/internal/auth"
	"github.com/sharevault/backend/internal/files"
	"github.com/sharevault/backend/internal/models"
	"github.com/sharevault/backend/internal/repositories"
	"github.com/sharevault/backend/internal/sharing"
	"github.com/sharevault/backend/internal/storage"
)

type inMemoryFileStore struct {
	files      map[string]models.File
	owners     *inMemoryUserStore
	increments map[string]int
}

func newInMemoryFileStore(owners *inMemoryUserStore) *inMemoryFileStore {
	return &inMemoryFileStore{files: make(map[string]models.File), owners: owners, increments: make(map[string]int)}
}

func (s *inMemoryFileStore) Create(_ context.Context, file models.File) error {
	s.files[file.ID] = file
	return nil
}

func (s *inMemoryFileStore) FindByID(_ context.Context, id string) (models.File, error) {
	file, ok := s.files[id]
	if !ok {
		return models.File{}, repositories.ErrNotFound
	}
	return file, nil
}

func (s *inMemoryFileStore) ListByOwner(_ context.Context, ownerID string) ([]models.File, error) {
	var out []models.File
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *inMemoryFileStore) ListPublic(ctx context.Context, limit int) ([]models.FileWithOwner, error) {
	var out []models.FileWithOwner
	for _, f := range s.files {
		if !f.IsPublic || len(out) >= limit {
			continue
		}
		owner, _ := s.owners.FindByID(ctx, f.OwnerID)
		out = append(out, models.FileWithOwner{File: f, OwnerName: owner.Name, OwnerEmail: owner.Email})
	}
	return out, nil
}

func (s *inMemoryFileStore) SetPublic(_ context.Context, id string, isPublic bool) error {
	file, ok := s.files[id]
	if !ok {
		return repositories.ErrNotFound
	}
	file.IsPublic = isPublic
	s.files[id] = file
	return nil
}

func (s *inMemoryFileStore) IncrementDownloadCount(_ context.Context, id string) error {
	file, ok := s.files[id]
	if !ok {
		return repositories.ErrNotFound
	}
	file.DownloadCount++
	s.files[id] = file
	s.increments[id]++
	return nil
}

type inMemoryLinkStore struct {
	links map[string]models.ShareLink
}

func newInMemoryLinkStore() *inMemoryLinkStore {
	return &inMemoryLinkStore{links: make(map[string]models.ShareLink)}
}

func (s *inMemoryLinkStore) Create(_ context.Context, link models.ShareLink) error {
	s.links[link.ID] = link
	return nil
}

func (s *inMemoryLinkStore) FindByID(_ context.Context, id string) (models.ShareLink, error) {
	link, ok := s.links[id]
	if !ok {
		return models.ShareLink{}, repositories.ErrNotFound
	}
	return link, nil
}

func (s *inMemoryLinkStore) FindByToken(_ context.Context, token string) (models.ShareLink, error) {
	for _, link := range s.links {
		if link.Token == token {
			return link, nil
		}
	}
	return models.ShareLink{}, repositories.ErrNotFound
}

func (s *inMemoryLinkStore) ListActiveByFile(_ context.Context, fileID string) ([]models.ShareLink, error) {
	var out []models.ShareLink
	for _, link := range s.links {
		if link.FileID == fileID && link.IsActive {
			out = append(out, link)
		}
	}
	return out, nil
}

func (s *inMemoryLinkStore) ConsumeAccess(_ context.Context, id string, now time.Time) error {
	link, ok := s.links[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if !link.IsActive || !link.ExpiresAt.After(now) || (link.OneTimeUse && link.AccessCount > 0) {
		return repositories.ErrNotFound
	}
	link.AccessCount++
	link.LastAccessedAt = &now
	s.links[id] = link
	return nil
}

func (s *inMemoryLinkStore) Revoke(_ context.Context, id string) error {
	link, ok := s.links[id]
	if !ok {
		return repositories.ErrNotFound
	}
	link.IsActive = false
	s.links[id] = link
	return nil
}

type inMemoryBlobStore struct {
	blobs map[string]string
}

func newInMemoryBlobStore() *inMemoryBlobStore {
	return &inMemoryBlobStore{blobs: make(map[string]string)}
}

func (b *inMemoryBlobStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.blobs[name] = string(data)
	return name, nil
}

func (b *inMemoryBlobStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	data, ok := b.blobs[locator]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (b *inMemoryBlobStore) Exists(_ context.Context, locator string) (bool, error) {
	_, ok := b.blobs[locator]
	return ok, nil
}

func (b *inMemoryBlobStore) Remove(_ context.Context, locator string) error {
	delete(b.blobs, locator)
	return nil
}

// testEnv wires the full HTTP surface over in-memory stores.
type testEnv struct {
	mux   *http.ServeMux
	users *inMemoryUserStore
	files *inMemoryFileStore
	links *inMemoryLinkStore
	blobs *inMemoryBlobStore
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users: newInMemoryUserStore(),
		links: newInMemoryLinkStore(),
		blobs: newInMemoryBlobStore(),
		now:   time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	env.files = newInMemoryFileStore(env.users)

	nowFunc := func() time.Time { return env.now }

	fileSvc := files.NewService(env.files, env.blobs)
	fileSvc.NowFunc = nowFunc

	linkMgr := sharing.NewManager(env.links, env.files, env.users, env.blobs)
	linkMgr.NowFunc = nowFunc

	codec := auth.NewTokenCodec("test-secret", time.Hour)

	env.mux = http.NewServeMux()
	RegisterRoutes(env.mux, Dependencies{
		Users:         env.users,
		Credentials:   codec,
		Resolver:      auth.NewResolver(codec, env.users),
		Files:         fileSvc,
		ShareLinks:    linkMgr,
		PublicBaseURL: "http://localhost:8080",
		TokenTTL:      time.Hour,
	})

	return env
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

// register creates an account through the HTTP surface and returns the bearer
// token for subsequent requests.
func (env *testEnv) register(t *testing.T, name, email string) string {
	t.Helper()

	body, _ := json.Marshal(registerRequest{Name: name, Email: email, Password: "password123"})
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/user/register", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", email, rec.Code, rec.Body.String())
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.Token
}

func (env *testEnv) upload(t *testing.T, token, filename, content string, isPublic bool) string {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if isPublic {
		if err := form.WriteField("isPublic", "true"); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := env.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		File struct {
			ID string `json:"id"`
		} `json:"file"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp.File.ID
}

func (env *testEnv) createShareLink(t *testing.T, token, fileID string, expiresIn int, oneTimeUse bool) (id, shareToken string) {
	t.Helper()

	body, _ := json.Marshal(createShareLinkRequest{ExpiresIn: expiresIn, OneTimeUse: oneTimeUse})
	req := httptest.NewRequest(http.MethodPost, "/create-share-link/"+fileID, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)

	rec := env.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create share link: status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ShareLink struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"shareLink"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode share link response: %v", err)
	}

	parts := strings.Split(resp.ShareLink.URL, "/s/")
	if len(parts) != 2 || parts[1] == "" {
		t.Fatalf("unexpected share url %q", resp.ShareLink.URL)
	}
	return resp.ShareLink.ID, parts[1]
}

func authorizedRequest(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadThenShareLinkDownloadFlow(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Alice", "alice@example.com")
	fileID := env.upload(t, token, "notes.txt", "hello world", false)

	_, shareToken := env.createShareLink(t, token, fileID, 7, true)

	// Landing page resolves without consuming.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/s/"+shareToken, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("shared landing: status %d: %s", rec.Code, rec.Body.String())
	}
	var landing struct {
		File struct {
			OriginalName string `json:"originalName"`
			UploadedBy   string `json:"uploadedBy"`
		} `json:"file"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&landing); err != nil {
		t.Fatalf("decode landing: %v", err)
	}
	if landing.File.OriginalName != "notes.txt" || landing.File.UploadedBy != "Alice" {
		t.Fatalf("unexpected landing payload: %+v", landing)
	}

	// Anonymous download through the link.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/s/"+shareToken+"/download", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("shared download: status %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "hello world" {
		t.Fatalf("unexpected content %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "notes.txt") {
		t.Fatalf("expected attachment disposition, got %q", got)
	}

	// One-time link: second download is denied with the uniform message.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/s/"+shareToken+"/download", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d on reuse, got %d", http.StatusNotFound, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), invalidLinkMessage) {
		t.Fatalf("expected uniform invalid-link message, got %s", rec.Body.String())
	}

	// And its landing page is now gone too.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/s/"+shareToken, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected consumed link landing to 404, got %d", rec.Code)
	}
}

func TestPrivateFileAccessPolicy(t *testing.T) {
	env := newTestEnv(t)

	ownerToken := env.register(t, "Alice", "alice@example.com")
	strangerToken := env.register(t, "Bob", "bob@example.com")
	fileID := env.upload(t, ownerToken, "secret.txt", "classified", false)

	// Owner downloads their private file.
	rec := env.do(t, authorizedRequest(http.MethodGet, "/download/"+fileID, ownerToken))
	if rec.Code != http.StatusOK || rec.Body.String() != "classified" {
		t.Fatalf("owner download failed: status %d body %q", rec.Code, rec.Body.String())
	}

	// A different authenticated user is denied.
	rec = env.do(t, authorizedRequest(http.MethodGet, "/download/"+fileID, strangerToken))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for stranger, got %d", http.StatusForbidden, rec.Code)
	}

	// Anonymous is denied with a login hint.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/download/"+fileID, nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for anonymous, got %d", http.StatusForbidden, rec.Code)
	}
	var denial struct {
		NeedsLogin bool `json:"needsLogin"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&denial); err != nil {
		t.Fatalf("decode denial: %v", err)
	}
	if !denial.NeedsLogin {
		t.Fatal("expected login hint for anonymous denial")
	}
}

func TestTogglePrivacyFlow(t *testing.T) {
	env := newTestEnv(t)

	ownerToken := env.register(t, "Alice", "alice@example.com")
	fileID := env.upload(t, ownerToken, "notes.txt", "hello", false)

	// Toggle to public.
	rec := env.do(t, authorizedRequest(http.MethodPost, "/toggle-privacy/"+fileID, ownerToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		IsPublic bool   `json:"isPublic"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode toggle response: %v", err)
	}
	if !resp.IsPublic || resp.Message != "File is now public" {
		t.Fatalf("unexpected toggle response: %+v", resp)
	}

	// Now anonymous download succeeds.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/download/"+fileID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous download of public file, got %d", rec.Code)
	}

	// And the file shows up in the public listing with owner details.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/public-files-api", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("public listing: status %d", rec.Code)
	}
	var listing struct {
		Files []struct {
			ID         string `json:"id"`
			UploadedBy struct {
				Name string `json:"name"`
			} `json:"uploadedBy"`
		} `json:"files"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Files) != 1 || listing.Files[0].ID != fileID || listing.Files[0].UploadedBy.Name != "Alice" {
		t.Fatalf("unexpected public listing: %+v", listing)
	}
}

func TestProtectedRoutesRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	targets := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/upload"},
		{http.MethodGet, "/files"},
		{http.MethodPost, "/toggle-privacy/some-id"},
		{http.MethodPost, "/create-share-link/some-id"},
		{http.MethodGet, "/share-links/some-id"},
		{http.MethodPost, "/revoke-share-link/some-id"},
	}

	for _, target := range targets {
		rec := env.do(t, httptest.NewRequest(target.method, target.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected status %d got %d", target.method, target.path, http.StatusUnauthorized, rec.Code)
		}
		var resp struct {
			RedirectTo string `json:"redirectTo"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.RedirectTo != "/user/login" {
			t.Fatalf("%s %s: expected login redirect, got %q", target.method, target.path, resp.RedirectTo)
		}
	}
}

func TestRevokeShareLinkFlow(t *testing.T) {
	env := newTestEnv(t)

	ownerToken := env.register(t, "Alice", "alice@example.com")
	strangerToken := env.register(t, "Bob", "bob@example.com")
	fileID := env.upload(t, ownerToken, "notes.txt", "hello", false)
	linkID, shareToken := env.createShareLink(t, ownerToken, fileID, 7, false)

	// A stranger cannot revoke someone else's link.
	rec := env.do(t, authorizedRequest(http.MethodPost, "/revoke-share-link/"+linkID, strangerToken))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for stranger revoke, got %d", http.StatusForbidden, rec.Code)
	}

	// The creator revokes it.
	rec = env.do(t, authorizedRequest(http.MethodPost, "/revoke-share-link/"+linkID, ownerToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: status %d: %s", rec.Code, rec.Body.String())
	}

	// The token stops working, uniformly.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/s/"+shareToken+"/download", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), invalidLinkMessage) {
		t.Fatalf("expected uniform invalid-link denial, got %d: %s", rec.Code, rec.Body.String())
	}

	// Revoked links disappear from the listing.
	rec = env.do(t, authorizedRequest(http.MethodGet, "/share-links/"+fileID, ownerToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var listing struct {
		ShareLinks []map[string]any `json:"shareLinks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.ShareLinks) != 0 {
		t.Fatalf("expected no active links, got %+v", listing.ShareLinks)
	}
}

func TestExpiredShareLinkDenied(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Alice", "alice@example.com")
	fileID := env.upload(t, token, "notes.txt", "hello", false)
	_, shareToken := env.createShareLink(t, token, fileID, 1, false)

	env.now = env.now.AddDate(0, 0, 2)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/s/"+shareToken+"/download", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), invalidLinkMessage) {
		t.Fatalf("expected uniform invalid-link denial, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownShareTokenUsesUniformMessage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/s/no-such-token", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), invalidLinkMessage) {
		t.Fatalf("expected uniform invalid-link denial, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestShareLinkCreationRejectsBadExpiry(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Alice", "alice@example.com")
	fileID := env.upload(t, token, "notes.txt", "hello", false)

	for _, days := range []int{0, 31} {
		body, _ := json.Marshal(createShareLinkRequest{ExpiresIn: days})
		req := httptest.NewRequest(http.MethodPost, "/create-share-link/"+fileID, bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)

		rec := env.do(t, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expiresIn %d: expected status %d got %d", days, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestListMineOnlyShowsOwnFiles(t *testing.T) {
	env := newTestEnv(t)

	aliceToken := env.register(t, "Alice", "alice@example.com")
	bobToken := env.register(t, "Bob", "bob@example.com")
	aliceFile := env.upload(t, aliceToken, "alice.txt", "a", false)
	env.upload(t, bobToken, "bob.txt", "b", true)

	rec := env.do(t, authorizedRequest(http.MethodGet, "/files", aliceToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}

	var listing struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Files) != 1 || listing.Files[0].ID != aliceFile {
		t.Fatalf("expected only alice's file, got %+v", listing.Files)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
}
