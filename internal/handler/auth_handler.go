package handler

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/response"
)

type AuthHandler struct {
	authSvc    *service.AuthService
	gatewaySvc *service.GatewayService
}

func NewAuthHandler(authSvc *service.AuthService, gatewaySvc *service.GatewayService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, gatewaySvc: gatewaySvc}
}

const minPasswordLength = 8

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return response.BadRequest(c, "email is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return response.BadRequest(c, "invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return response.BadRequest(c, "password must be at least 8 characters")
	}

	user, err := h.authSvc.Register(req.Email, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return response.Conflict(c, "email already registered")
		}
		return response.InternalError(c, "failed to create account")
	}

	return response.Created(c, user)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	token, user, err := h.authSvc.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			RecordAuthFailure("bad_credentials")
			return response.Unauthorized(c, "invalid email or password")
		}
		return response.InternalError(c, "login failed")
	}

	return response.Success(c, fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	user, err := h.authSvc.GetUserByID(userID)
	if err != nil {
		return response.NotFound(c, "user not found")
	}
	return response.Success(c, user)
}

// Storage returns the caller's quota limit, used and free bytes.
func (h *AuthHandler) Storage(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	info, err := h.gatewaySvc.StorageInfo(userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return response.NotFound(c, "user not found")
		}
		return response.InternalError(c, "failed to read storage info")
	}
	return response.Success(c, info)
}
