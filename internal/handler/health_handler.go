package handler

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minidrive/minidrive/internal/blob"
)

var errDatabaseNotInitialized = errors.New("database not initialized")

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db          *sql.DB
	store       blob.Store
	storagePath string
}

// NewHealthHandler creates a health handler. storagePath is probed only for
// the filesystem backend; remote backends are checked through the store.
func NewHealthHandler(db *sql.DB, store blob.Store, storagePath string) *HealthHandler {
	return &HealthHandler{db: db, store: store, storagePath: storagePath}
}

// Liveness reports that the process is up.
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness reports whether the server can handle requests: the database
// answers and the blob storage is reachable.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	checks := make(map[string]interface{})
	allHealthy := true

	if err := h.checkDatabase(); err != nil {
		checks["database"] = fiber.Map{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = fiber.Map{"status": "healthy"}
	}

	if err := h.checkStorage(); err != nil {
		checks["storage"] = fiber.Map{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["storage"] = fiber.Map{"status": "healthy"}
	}

	status := "ok"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

func (h *HealthHandler) checkDatabase() error {
	if h.db == nil {
		return errDatabaseNotInitialized
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.db.PingContext(ctx)
}

func (h *HealthHandler) checkStorage() error {
	if h.storagePath == "" {
		// Remote backend; a cheap existence probe against a key that cannot
		// exist exercises connectivity without side effects.
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := h.store.Get(ctx, "healthcheck/.probe"); err != nil && !errors.Is(err, blob.ErrNotFound) {
			return err
		}
		return nil
	}

	probe := filepath.Join(h.storagePath, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0600); err != nil {
		return err
	}
	return os.Remove(probe)
}
