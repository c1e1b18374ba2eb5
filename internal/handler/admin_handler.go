package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/internal/models"
	"github.com/minidrive/minidrive/internal/service"
	"github.com/minidrive/minidrive/pkg/response"
)

type AdminHandler struct {
	metricsSvc *service.MetricsService
	gatewaySvc *service.GatewayService
}

func NewAdminHandler(metricsSvc *service.MetricsService, gatewaySvc *service.GatewayService) *AdminHandler {
	return &AdminHandler{metricsSvc: metricsSvc, gatewaySvc: gatewaySvc}
}

// Summary returns the aggregate usage snapshot.
func (h *AdminHandler) Summary(c *fiber.Ctx) error {
	snapshot, err := h.metricsSvc.Snapshot()
	if err != nil {
		return response.InternalError(c, "failed to compute summary")
	}
	return response.Success(c, snapshot)
}

// ListUsers returns per-user quota consumption.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.metricsSvc.ListUsers()
	if err != nil {
		return response.InternalError(c, "failed to list users")
	}
	if users == nil {
		users = []*models.UserUsage{}
	}
	return response.Success(c, users)
}

// Reconcile forces an immediate rebuild of the quota counters from the file
// ledger.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	if err := h.gatewaySvc.ReconcileQuotaUsage(); err != nil {
		return response.InternalError(c, "reconciliation failed")
	}
	return response.Success(c, fiber.Map{"reconciled": true})
}
