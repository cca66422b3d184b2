package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BootID    string `json:"boot_id"`
	Booted    string `json:"booted"`
	Uptime    string `json:"uptime"`
	Policy    string `json:"policy,omitempty"`
	Current   string `json:"current"`
	Threads   int    `json:"threads"`
	Ready     int    `json:"ready"`
	Capacity  int    `json:"capacity"`
	Timers    int    `json:"timers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	snap := s.kernel.Snapshot()
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   s.version,
		GoVersion: runtime.Version(),
		BootID:    s.kernel.BootID(),
		Booted:    humanize.Time(s.kernel.BootedAt()),
		Uptime:    s.kernel.Now().Round(time.Millisecond).String(),
		Policy:    s.policy,
		Current:   snap.Current.String(),
		Threads:   len(snap.Threads),
		Ready:     snap.Ready,
		Capacity:  snap.Capacity,
		Timers:    s.kernel.PendingTimers(),
	})
}
