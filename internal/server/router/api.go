package router

import (
	"net/http"

	"github.com/diwenne/smashspeed-rn/internal/server/handlers"
)

// APIRouter handles everything under /api.
type APIRouter struct {
	api     *handlers.APIHandlers
	modules *handlers.ModuleHandlers
	clips   *handlers.ClipHandlers
}

// RegisterRoutes registers all API routes
func (r *APIRouter) RegisterRoutes(mux *http.ServeMux, server interface{}) {
	serverService, ok := server.(handlers.ServerService)
	if !ok {
		panic("server does not implement handlers.ServerService")
	}
	r.api = handlers.NewAPIHandlers(serverService)
	r.modules = handlers.NewModuleHandlers(serverService)
	r.clips = handlers.NewClipHandlers(serverService)

	mux.HandleFunc("GET /api/health", r.api.HandleHealth)
	mux.HandleFunc("GET /api/status", r.api.HandleStatus)

	mux.HandleFunc("GET /api/modules", r.modules.HandleModules)
	mux.HandleFunc("POST /api/modules/{name}", r.modules.HandleInvoke)
	mux.HandleFunc("GET /api/jobs/{id}", r.modules.HandleJob)
	mux.HandleFunc("GET /api/jobs/{id}/ws", r.modules.HandleJobWebSocket)

	mux.HandleFunc("GET /api/clips/{name}", r.clips.HandleClip)
}

// GetPathPrefix returns the path prefix for API routes
func (r *APIRouter) GetPathPrefix() string {
	return "/api"
}
