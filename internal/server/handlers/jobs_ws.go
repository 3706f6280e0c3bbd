package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/diwenne/smashspeed-rn/internal/util"
)

var jobUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the app's web view connects from its own origin
	},
}

// HandleJobWebSocket upgrades /api/jobs/{id}/ws and pushes one JobResponse
// when the job settles, then closes the connection. Closing the socket
// early stops the wait but not the job.
func (h *ModuleHandlers) HandleJobWebSocket(w http.ResponseWriter, req *http.Request) {
	d := h.serverService.GetDispatcher()
	job, ok := d.Job(req.PathValue("id"))
	if !ok {
		RespondError(w, http.StatusNotFound, "E_NO_SUCH_JOB", "No job with that id")
		return
	}

	conn, err := jobUpgrader.Upgrade(w, req, nil)
	if err != nil {
		util.GetLogger().Warn("job websocket upgrade failed", "id", job.ID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	go func() {
		// only control frames are expected; a read error means the peer left
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					util.GetLogger().Debug("job websocket read error", "id", job.ID, "error", err)
				}
				cancel()
				return
			}
		}
	}()

	if _, err := job.Promise.Wait(ctx); err != nil && !job.Promise.Settled() {
		d.Release(job.ID)
		return
	}
	resp := h.describe(job)
	d.Forget(job.ID)
	if err := conn.WriteJSON(resp); err != nil {
		util.GetLogger().Warn("job websocket write failed", "id", job.ID, "error", err)
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, resp.Status), time.Now().Add(time.Second))
}
