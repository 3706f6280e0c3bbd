package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/diwenne/smashspeed-rn/internal/util"
)

// ClipHandlers serves finished clips from the cache dir.
type ClipHandlers struct {
	serverService ServerService
}

func NewClipHandlers(serverSvc ServerService) *ClipHandlers {
	return &ClipHandlers{serverService: serverSvc}
}

// HandleClip streams /api/clips/{name}. Only names produced by the trimmer are served.
func (h *ClipHandlers) HandleClip(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	if !util.IsClipName(name) {
		RespondError(w, http.StatusBadRequest, "E_BAD_REQUEST", "Not a clip name")
		return
	}
	path := filepath.Join(h.serverService.GetCacheDir(), name)
	if _, err := os.Stat(path); err != nil {
		RespondError(w, http.StatusNotFound, "E_FILE_NOT_FOUND", "No such clip")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, req, path)
}
