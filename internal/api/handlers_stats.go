package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"conversions": s.orchestrator.Stats(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"scores":      s.orchestrator.Engine().Scorer().Stats(),
	}
	if s.cache != nil {
		out["cache"] = s.cache.Stats()
	}
	writeJSON(w, http.StatusOK, out)
}
