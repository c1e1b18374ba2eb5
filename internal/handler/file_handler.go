package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/internal/models"
	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/response"
	"github.com/minidrive/minidrive/pkg/sanitize"
)

type FileHandler struct {
	gatewaySvc    *service.GatewayService
	linkSvc       *service.LinkService
	publicBaseURL string
}

func NewFileHandler(gatewaySvc *service.GatewayService, linkSvc *service.LinkService, publicBaseURL string) *FileHandler {
	return &FileHandler{
		gatewaySvc:    gatewaySvc,
		linkSvc:       linkSvc,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (h *FileHandler) Upload(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "file is required")
	}

	filename := c.FormValue("filename", fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")

	var folderID *string
	if v := strings.TrimSpace(c.FormValue("folder_id")); v != "" {
		folderID = &v
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalError(c, "failed to read file")
	}
	defer file.Close()

	record, err := h.gatewaySvc.Upload(c.Context(), userID, filename, contentType, file, folderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExceeded):
			RecordQuotaRejection()
			return response.QuotaExceeded(c, "storage quota exceeded")
		case errors.Is(err, service.ErrTooLarge):
			return response.TooLarge(c, "file exceeds the maximum allowed size")
		case errors.Is(err, service.ErrStorageBackend):
			return response.StorageBackend(c, "storage backend unavailable, please retry")
		default:
			return response.InternalError(c, "upload failed")
		}
	}

	RecordUpload(float64(record.SizeBytes))
	return response.Created(c, record)
}

func (h *FileHandler) List(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	files, err := h.gatewaySvc.List(userID)
	if err != nil {
		return response.InternalError(c, "failed to list files")
	}
	if files == nil {
		files = []*models.FileRecord{}
	}
	return response.Success(c, files)
}

func (h *FileHandler) Get(c *fiber.Ctx) error {
	userID, isAdmin := currentUser(c)

	record, err := h.gatewaySvc.Get(userID, isAdmin, c.Params("id"))
	if err != nil {
		return mapFileError(c, err)
	}
	return response.Success(c, record)
}

func (h *FileHandler) Download(c *fiber.Ctx) error {
	userID, isAdmin := currentUser(c)

	record, body, err := h.gatewaySvc.Download(c.Context(), userID, isAdmin, c.Params("id"))
	if err != nil {
		return mapFileError(c, err)
	}

	RecordDownload("owner")
	c.Set("Content-Type", record.ContentType)
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sanitize.ForHeader(record.Filename)))
	c.Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	return c.SendStream(body, int(record.SizeBytes))
}

func (h *FileHandler) Delete(c *fiber.Ctx) error {
	userID, isAdmin := currentUser(c)

	if err := h.gatewaySvc.Delete(c.Context(), userID, isAdmin, c.Params("id")); err != nil {
		if errors.Is(err, service.ErrStorageBackend) {
			return response.StorageBackend(c, "storage backend unavailable, please retry")
		}
		return mapFileError(c, err)
	}
	return response.Success(c, fiber.Map{"deleted": true})
}

// CreateShare mints an expiring share link for a file the caller owns.
func (h *FileHandler) CreateShare(c *fiber.Ctx) error {
	userID, isAdmin := currentUser(c)

	var req struct {
		TTLMinutes int `json:"ttl_minutes"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return response.BadRequest(c, "invalid request body")
	}
	if req.TTLMinutes < 0 {
		return response.BadRequest(c, "ttl_minutes must not be negative")
	}

	token, expiresAt, err := h.linkSvc.Issue(userID, isAdmin, c.Params("id"), time.Duration(req.TTLMinutes)*time.Minute)
	if err != nil {
		return mapFileError(c, err)
	}

	RecordShareIssued()
	return response.Created(c, fiber.Map{
		"token":      token,
		"url":        h.publicBaseURL + "/api/v1/shares/" + token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// RevokeShares invalidates every share link issued for the file so far.
func (h *FileHandler) RevokeShares(c *fiber.Ctx) error {
	userID, isAdmin := currentUser(c)

	if err := h.linkSvc.Revoke(userID, isAdmin, c.Params("id")); err != nil {
		return mapFileError(c, err)
	}
	return response.Success(c, fiber.Map{"revoked": true})
}

func mapFileError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return response.NotFound(c, "file not found")
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c, "access denied")
	default:
		return response.InternalError(c, "operation failed")
	}
}
