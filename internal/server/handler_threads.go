package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/tickos/pkg/model"
)

// GET /api/v1/threads
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.kernel.Snapshot())
}

// GET /api/v1/threads/{tid}
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tid, ok := parseTid(w, r, reqID)
	if !ok {
		return
	}
	info, found := s.kernel.Thread(tid)
	if !found {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("thread", tid.String()))
		return
	}
	respondOK(w, reqID, info)
}

// POST /api/v1/threads/{tid}/wake
func (s *Server) handleWakeThread(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tid, ok := parseTid(w, r, reqID)
	if !ok {
		return
	}
	info, found := s.kernel.Thread(tid)
	if !found {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("thread", tid.String()))
		return
	}
	if !s.kernel.WakeUp(tid) {
		respondError(w, reqID, http.StatusConflict, &model.APIError{
			Code:    model.ErrConflict,
			Message: "thread " + tid.String() + " is " + info.State.String() + ", not sleeping",
		})
		return
	}
	respondOK(w, reqID, map[string]any{"tid": tid, "woken": true})
}

type execRequest struct {
	Path string `json:"path"`
}

// POST /api/v1/exec
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if req.Path == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("path is required"))
		return
	}

	tid, err := s.kernel.Execute(r.Context(), req.Path, nil)
	switch {
	case err == nil:
		respondCreated(w, reqID, map[string]any{"tid": tid, "path": req.Path})
	case errors.Is(err, model.ErrCommandNotFound):
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("program", req.Path))
	case errors.Is(err, model.ErrBadImage):
		respondError(w, reqID, http.StatusUnprocessableEntity, model.NewValidationError(err.Error()))
	case errors.Is(err, model.ErrPoolExhausted):
		respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
			Code: model.ErrConflict, Message: err.Error(),
		})
	default:
		s.logger.Error("exec failed", "path", req.Path, "error", err)
		respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
			Code: model.ErrInternal, Message: err.Error(),
		})
	}
}

// GET /api/v1/exits
func (s *Server) handleListExits(w http.ResponseWriter, r *http.Request) {
	exits := s.kernel.Exits()
	if exits == nil {
		exits = []model.ExitRecord{}
	}
	respondOK(w, RequestIDFromContext(r.Context()), exits)
}

func parseTid(w http.ResponseWriter, r *http.Request, reqID string) (model.Tid, bool) {
	raw := chi.URLParam(r, "tid")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid tid: "+raw))
		return 0, false
	}
	return model.Tid(n), true
}
