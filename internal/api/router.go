package api

import (
	"time"

	"github.com/Project-Sylos/Archivist/internal/api/handlers"
	apimiddleware "github.com/Project-Sylos/Archivist/internal/api/middleware"
	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/Project-Sylos/Archivist/sdk"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestTimeout bounds every request, uploads included
const requestTimeout = 60 * time.Second

// Router represents the HTTP API router
type Router struct {
	archivist *sdk.Archivist
	config    *types.APIConfig
}

// NewRouter creates a new API router
func NewRouter(archivist *sdk.Archivist, config *types.APIConfig) *Router {
	return &Router{archivist: archivist, config: config}
}

// SetupRoutes configures all API routes using modular handlers
func (r *Router) SetupRoutes() *chi.Mux {
	router := chi.NewRouter()

	// Standard middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.archivist.Logger()))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))

	// Custom middleware
	router.Use(apimiddleware.CORS(r.config.AllowOrigin))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(r.archivist)
	processHandler := handlers.NewProcessHandler(r.archivist, int64(r.config.MaxUploadMB)<<20)
	folderHandler := handlers.NewFolderHandler(r.archivist)
	documentHandler := handlers.NewDocumentHandler(r.archivist)
	nodeHandler := handlers.NewNodeHandler(r.archivist)
	notifyHandler := handlers.NewNotifyHandler(r.archivist)
	systemHandler := handlers.NewSystemHandler(r.archivist)

	// Welcome and health check
	router.Get("/", healthHandler.Welcome)
	router.Get("/health", healthHandler.HealthCheck)

	// Upload endpoints
	router.Post("/processData", processHandler.ProcessData)
	if r.config.EnableTestEndpoint {
		router.Post("/test", processHandler.Test)
	}

	// API routes
	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/repository", func(repo chi.Router) {
			repo.Get("/info", nodeHandler.GetRepositoryInfo)
			repo.Get("/types", nodeHandler.GetTypes)
			repo.Get("/object", nodeHandler.GetObject)

			repo.Get("/children", folderHandler.ListChildren)
			repo.Post("/folder", folderHandler.CreateFolder)
			repo.Post("/folder/rename", folderHandler.RenameFolder)
			repo.Delete("/folder", folderHandler.DeleteFolder)

			repo.Get("/content", documentHandler.GetContent)
			repo.Put("/content", documentHandler.UpdateContent)
			repo.Delete("/document", documentHandler.DeleteDocument)
			repo.Post("/copy", documentHandler.CopyDocument)
		})

		api.Post("/notify", notifyHandler.Send)

		// System operations
		api.Post("/reset", systemHandler.Reset)
		api.Get("/config", systemHandler.GetConfig)
		api.Get("/stats", systemHandler.GetStats)
	})

	return router
}
