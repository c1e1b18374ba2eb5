package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/internal/models"
	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/response"
)

type FolderHandler struct {
	folderSvc *service.FolderService
}

func NewFolderHandler(folderSvc *service.FolderService) *FolderHandler {
	return &FolderHandler{folderSvc: folderSvc}
}

func (h *FolderHandler) Create(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	var req struct {
		Name     string  `json:"name"`
		ParentID *string `json:"parent_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return response.BadRequest(c, "name is required")
	}

	folder, err := h.folderSvc.Create(userID, req.Name, req.ParentID)
	if err != nil {
		return mapFolderError(c, err)
	}
	return response.Created(c, folder)
}

func (h *FolderHandler) List(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	var parentID *string
	if v := strings.TrimSpace(c.Query("parent_id")); v != "" {
		parentID = &v
	}

	folders, err := h.folderSvc.List(userID, parentID)
	if err != nil {
		return response.InternalError(c, "failed to list folders")
	}
	if folders == nil {
		folders = []*models.Folder{}
	}
	return response.Success(c, folders)
}

func (h *FolderHandler) Rename(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return response.BadRequest(c, "name is required")
	}

	folder, err := h.folderSvc.Rename(userID, c.Params("id"), req.Name)
	if err != nil {
		return mapFolderError(c, err)
	}
	return response.Success(c, folder)
}

// Move reparents a folder; a null parent_id moves it to the top level.
func (h *FolderHandler) Move(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	var req struct {
		ParentID *string `json:"parent_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	folder, err := h.folderSvc.Move(userID, c.Params("id"), req.ParentID)
	if err != nil {
		return mapFolderError(c, err)
	}
	return response.Success(c, folder)
}

func (h *FolderHandler) Delete(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	if err := h.folderSvc.Delete(userID, c.Params("id")); err != nil {
		return mapFolderError(c, err)
	}
	return response.Success(c, fiber.Map{"deleted": true})
}

func mapFolderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return response.NotFound(c, "folder not found")
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c, "access denied")
	case errors.Is(err, service.ErrNameTaken):
		return response.Conflict(c, "a folder with that name already exists")
	case errors.Is(err, service.ErrFolderNotEmpty):
		return response.Conflict(c, "folder is not empty")
	default:
		return response.BadRequest(c, err.Error())
	}
}
