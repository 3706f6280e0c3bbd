package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/diwenne/smashspeed-rn/internal/bridge"
	"github.com/diwenne/smashspeed-rn/internal/trimmer"
	"github.com/diwenne/smashspeed-rn/internal/util"
)

// Job states reported over HTTP.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusRejected = "rejected"
)

// JobResponse reports a dispatched call.
type JobResponse struct {
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Status  string      `json:"status"`
	Result  interface{} `json:"result,omitempty"`
	URL     string      `json:"url,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ModuleHandlers exposes the registered bridge methods.
type ModuleHandlers struct {
	serverService ServerService
}

func NewModuleHandlers(serverSvc ServerService) *ModuleHandlers {
	return &ModuleHandlers{serverService: serverSvc}
}

// HandleModules lists the registered method names.
func (h *ModuleHandlers) HandleModules(w http.ResponseWriter, req *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"methods": h.serverService.GetDispatcher().Registry().Names(),
	})
}

// HandleInvoke calls the method named in the path with the JSON body as
// arguments. With ?async=true it answers 202 at once; otherwise it waits
// for the result.
func (h *ModuleHandlers) HandleInvoke(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	var args bridge.Args
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&args); err != nil {
			RespondError(w, http.StatusBadRequest, "E_BAD_REQUEST", "Request body must be a JSON object: "+err.Error())
			return
		}
	}

	job, err := h.serverService.GetDispatcher().Dispatch(req.Context(), name, args)
	if err != nil {
		RespondError(w, http.StatusNotFound, bridge.CodeUnknownMethod, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(req.URL.Query().Get("async")); async {
		RespondJSON(w, http.StatusAccepted, JobResponse{ID: job.ID, Method: job.Method, Status: StatusPending})
		return
	}
	if _, err := job.Promise.Wait(req.Context()); err != nil && !job.Promise.Settled() {
		// client went away; the job keeps running but nobody will poll it
		h.serverService.GetDispatcher().Release(job.ID)
		return
	}
	resp := h.describe(job)
	h.serverService.GetDispatcher().Forget(job.ID)
	RespondJSON(w, h.statusFor(resp), resp)
}

// HandleJob reports a job started with ?async=true.
func (h *ModuleHandlers) HandleJob(w http.ResponseWriter, req *http.Request) {
	d := h.serverService.GetDispatcher()
	job, ok := d.Job(req.PathValue("id"))
	if !ok {
		RespondError(w, http.StatusNotFound, "E_NO_SUCH_JOB", "No job with that id")
		return
	}
	resp := h.describe(job)
	if resp.Status != StatusPending {
		d.Forget(job.ID)
	}
	RespondJSON(w, h.statusFor(resp), resp)
}

func (h *ModuleHandlers) describe(job *bridge.Job) JobResponse {
	resp := JobResponse{ID: job.ID, Method: job.Method, Status: StatusPending}
	if !job.Promise.Settled() {
		return resp
	}
	v, err := job.Promise.Wait(context.Background())
	if err != nil {
		e := trimmer.Fail(err)
		resp.Status, resp.Code, resp.Message = StatusRejected, e.Code, e.Message
		return resp
	}
	resp.Status, resp.Result = StatusResolved, v
	if uri, ok := v.(string); ok {
		if path, err := bridge.ResolveURI(uri); err == nil && filepath.Dir(path) == filepath.Clean(h.serverService.GetCacheDir()) {
			if name := filepath.Base(path); util.IsClipName(name) {
				resp.URL = "/api/clips/" + name
			}
		}
	}
	return resp
}

func (h *ModuleHandlers) statusFor(resp JobResponse) int {
	switch resp.Status {
	case StatusPending:
		return http.StatusAccepted
	case StatusRejected:
		return statusForCode(resp.Code)
	default:
		return http.StatusOK
	}
}
