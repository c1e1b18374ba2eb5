package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestInitAndPackageFunctions(t *testing.T) {
	previous := DefaultLogger
	defer func() { DefaultLogger = previous }()

	var buf bytes.Buffer
	Init(Config{
		Level:  "debug",
		Format: "json",
		Output: &buf,
	})

	Debug().Msg("debug line")
	Info().Msg("info line")
	Warn().Msg("warn line")
	Error().Msg("error line")

	out := buf.String()
	for _, want := range []string{"debug line", "info line", "warn line", "error line"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestAudit(t *testing.T) {
	previous := DefaultLogger
	defer func() { DefaultLogger = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})

	Audit("file_uploaded", "user-1", map[string]string{"file_id": "f-1"})

	out := buf.String()
	for _, want := range []string{`"log_type":"audit"`, `"action":"file_uploaded"`, `"user_id":"user-1"`, `"file_id":"f-1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected audit output to contain %q, got: %s", want, out)
		}
	}
}

func TestMiddlewareLogsRequests(t *testing.T) {
	previous := DefaultLogger
	defer func() { DefaultLogger = previous }()

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})

	app := fiber.New()
	app.Use(Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if !strings.Contains(out, `"path":"/ping"`) || !strings.Contains(out, `"method":"GET"`) {
		t.Fatalf("expected request log, got: %s", out)
	}
}
