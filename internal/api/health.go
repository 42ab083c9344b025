package api

import (
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// HandleHealth reports process liveness and database reachability.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.PG != nil && s.PG.DB != nil {
		if err := s.PG.DB.PingContext(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}
	s.writeJSON(w, http.StatusOK, resp)
}
