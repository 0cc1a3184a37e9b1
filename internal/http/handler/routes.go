package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"kerno/internal/health"
	"kerno/internal/service"
)

// Deps are what the routes need. Health and Gatherer are optional.
type Deps struct {
	Documents service.DocumentService
	Health    *health.Checker
	Gatherer  prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Health != nil {
		app.Get("/health", HealthCheck(d.Health))
	}
	// Backward-compatible simple liveness probe
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", Metrics(d.Gatherer))
	}
	app.Get("/flash", Flash())

	docs := app.Group("/documents")
	docs.Get("/", ListDocuments(d.Documents))
	docs.Post("/", UploadDocument(d.Documents))
	docs.Post("/json", UploadDocumentJSON(d.Documents))
	docs.Get("/:id", GetDocument(d.Documents))
	docs.Patch("/:id", RenameDocument(d.Documents))
	docs.Delete("/:id", DeleteDocument(d.Documents))
	docs.Put("/:id/tags", TagDocument(d.Documents))
	docs.Get("/:id/download", DownloadDocument(d.Documents))
}
