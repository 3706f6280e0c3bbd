package router

import (
	"net/http"
)

// Router registers a group of routes on a mux.
type Router interface {
	// RegisterRoutes registers all routes for this router
	RegisterRoutes(mux *http.ServeMux, server interface{})
	// GetPathPrefix returns the path prefix for this router
	GetPathPrefix() string
}
