package handlers

import (
	"net/http"
)

// APIHandlers serves the /api/health and /api/status endpoints.
type APIHandlers struct {
	serverService ServerService
}

func NewAPIHandlers(serverSvc ServerService) *APIHandlers {
	return &APIHandlers{serverService: serverSvc}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, req *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "smashspeed-server"})
}

func (h *APIHandlers) HandleStatus(w http.ResponseWriter, req *http.Request) {
	if h.serverService == nil {
		RespondJSON(w, http.StatusOK, map[string]string{"status": "running", "service": "smashspeed-server"})
		return
	}

	status := map[string]interface{}{
		"running":   h.serverService.IsRunning(),
		"port":      h.serverService.GetPort(),
		"uptime":    h.serverService.GetUptime().String(),
		"version":   h.serverService.GetVersion(),
		"cache_dir": h.serverService.GetCacheDir(),
	}
	if d := h.serverService.GetDispatcher(); d != nil {
		status["methods"] = d.Registry().Names()
	}
	RespondJSON(w, http.StatusOK, status)
}
