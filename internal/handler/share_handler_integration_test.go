package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/internal/blob"
	"github.com/minidrive/minidrive/internal/repository"
	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/testutil"
)

func setupTestApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()

	db, cfg, cleanup := testutil.SetupTest(t)

	store, err := blob.NewFSStore(cfg.StoragePath)
	if err != nil {
		cleanup()
		t.Fatalf("create blob store: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)

	authSvc := service.NewAuthService(userRepo, "integration-jwt-secret", time.Hour, 1<<20)
	gatewaySvc := service.NewGatewayService(fileRepo, userRepo, store, 1<<20)
	linkSvc := service.NewLinkService(fileRepo, "integration-share-secret", time.Hour)

	authHandler := NewAuthHandler(authSvc, gatewaySvc)
	fileHandler := NewFileHandler(gatewaySvc, linkSvc, "http://localhost:8080")
	shareHandler := NewShareHandler(linkSvc, gatewaySvc)

	app := fiber.New()
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/storage", AuthMiddleware(authSvc), authHandler.Storage)

	files := api.Group("/files", AuthMiddleware(authSvc))
	files.Post("/", fileHandler.Upload)
	files.Get("/", fileHandler.List)
	files.Get("/:id/download", fileHandler.Download)
	files.Delete("/:id", fileHandler.Delete)
	files.Post("/:id/share", fileHandler.CreateShare)
	files.Delete("/:id/share", fileHandler.RevokeShares)

	shares := api.Group("/shares")
	shares.Get("/:token/info", shareHandler.Info)
	shares.Get("/:token", shareHandler.Download)

	return app, cleanup
}

func registerAndLogin(t *testing.T, app *fiber.App, email string) string {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":"integration-pass","full_name":"Test User"}`, email)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: %d", resp.StatusCode)
	}

	body = fmt.Sprintf(`{"email":%q,"password":"integration-pass"}`, email)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if loginResp.Data.Token == "" {
		t.Fatalf("empty session token")
	}
	return loginResp.Data.Token
}

func uploadFile(t *testing.T, app *fiber.App, token, filename string, content []byte) string {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status: %d body=%s", resp.StatusCode, raw)
	}

	var uploadResp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return uploadResp.Data.ID
}

func TestShareFlow_EndToEnd(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	token := registerAndLogin(t, app, "share-flow@example.com")
	fileID := uploadFile(t, app, token, "report.txt", []byte("quarterly numbers"))

	// Issue a share link.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/"+fileID+"/share",
		bytes.NewReader([]byte(`{"ttl_minutes":10}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("create share: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create share status: %d", resp.StatusCode)
	}

	var shareResp struct {
		Data struct {
			Token     string `json:"token"`
			ExpiresAt string `json:"expires_at"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shareResp); err != nil {
		t.Fatalf("decode share response: %v", err)
	}
	if shareResp.Data.Token == "" {
		t.Fatalf("empty share token")
	}

	// Anonymous metadata lookup does not require a session.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/shares/"+shareResp.Data.Token+"/info", nil)
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("share info: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("share info status: %d", resp.StatusCode)
	}

	// Anonymous download streams the exact bytes.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/shares/"+shareResp.Data.Token, nil)
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("share download: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("share download status: %d", resp.StatusCode)
	}
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read share body: %v", err)
	}
	if string(got) != "quarterly numbers" {
		t.Fatalf("downloaded bytes differ: %q", got)
	}

	// Revoking kills the existing link.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+fileID+"/share", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status: %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/shares/"+shareResp.Data.Token, nil)
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("download after revoke: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revoke, got %d", resp.StatusCode)
	}
}

func TestShareFlow_InvalidToken(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shares/not-a-real-token", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
}

func TestUploadFlow_QuotaAndOwnership(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	alice := registerAndLogin(t, app, "alice-http@example.com")
	bob := registerAndLogin(t, app, "bob-http@example.com")

	fileID := uploadFile(t, app, alice, "private.txt", []byte("alice only"))

	// Bob cannot download Alice's file.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+fileID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+bob)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("cross-user download: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", resp.StatusCode)
	}

	// Unauthenticated requests are rejected outright.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/files/", nil)
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("unauthenticated list: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}

	// Quota usage is reported after upload.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/storage", nil)
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("storage info: %v", err)
	}
	var storageResp struct {
		Data struct {
			Used int64 `json:"used"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&storageResp); err != nil {
		t.Fatalf("decode storage response: %v", err)
	}
	if storageResp.Data.Used != int64(len("alice only")) {
		t.Fatalf("expected used=%d, got %d", len("alice only"), storageResp.Data.Used)
	}
}
