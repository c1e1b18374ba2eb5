package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/internal/blob"
	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/response"
	"github.com/minidrive/minidrive/pkg/sanitize"
)

// ShareHandler serves anonymous downloads through share tokens. No session
// is required; the token is the whole credential.
type ShareHandler struct {
	linkSvc    *service.LinkService
	gatewaySvc *service.GatewayService
}

func NewShareHandler(linkSvc *service.LinkService, gatewaySvc *service.GatewayService) *ShareHandler {
	return &ShareHandler{linkSvc: linkSvc, gatewaySvc: gatewaySvc}
}

// presignTTL bounds the lifetime of backend-native URLs handed to anonymous
// clients. Kept short; the share token itself carries the real expiry.
const presignTTL = 5 * time.Minute

// Download resolves a share token and serves the file. When the blob backend
// can mint presigned URLs the client is redirected there; otherwise the bytes
// stream through the application.
func (h *ShareHandler) Download(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return response.BadRequest(c, "share token is required")
	}

	record, err := h.linkSvc.Resolve(token)
	if err != nil {
		return mapShareError(c, err)
	}

	record, url, err := h.gatewaySvc.PresignShared(c.Context(), record.ID, presignTTL)
	if err == nil {
		RecordDownload("shared")
		return c.Redirect(url, fiber.StatusFound)
	}
	if !errors.Is(err, blob.ErrPresignUnsupported) {
		return mapShareError(c, err)
	}

	record, body, err := h.gatewaySvc.DownloadShared(c.Context(), record.ID)
	if err != nil {
		return mapShareError(c, err)
	}

	RecordDownload("shared")
	c.Set("Content-Type", record.ContentType)
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sanitize.ForHeader(record.Filename)))
	c.Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	return c.SendStream(body, int(record.SizeBytes))
}

// Info returns file metadata for a share token without counting a download,
// so link preview pages do not inflate the counter.
func (h *ShareHandler) Info(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return response.BadRequest(c, "share token is required")
	}

	record, err := h.linkSvc.Resolve(token)
	if err != nil {
		return mapShareError(c, err)
	}

	return response.Success(c, fiber.Map{
		"filename":     record.Filename,
		"content_type": record.ContentType,
		"size_bytes":   record.SizeBytes,
	})
}

func mapShareError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return response.Gone(c, "share link has expired")
	case errors.Is(err, service.ErrInvalidToken):
		return response.Unauthorized(c, "invalid share link")
	case errors.Is(err, service.ErrNotFound):
		return response.NotFound(c, "file not found")
	case errors.Is(err, service.ErrStorageBackend):
		return response.StorageBackend(c, "storage backend unavailable, please retry")
	default:
		return response.InternalError(c, "operation failed")
	}
}
