package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Endpoints []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:    "tickos kstat",
		Version: "v1",
		Endpoints: []endpointInfo{
			{"/api/v1/health", []string{"GET"}, "Kernel health, clock and pool occupancy"},
			{"/api/v1/threads", []string{"GET"}, "Every live thread and its state"},
			{"/api/v1/threads/{tid}", []string{"GET"}, "One live thread"},
			{"/api/v1/threads/{tid}/wake", []string{"POST"}, "Wake a sleeping thread"},
			{"/api/v1/exec", []string{"POST"}, "Execute a program image as a new user thread"},
			{"/api/v1/exits", []string{"GET"}, "Most recent thread exits, oldest first"},
		},
	})
}
