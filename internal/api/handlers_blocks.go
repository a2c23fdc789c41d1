package api

import (
	"net/http"
)

// handleListBlocks lists the content blocks the loader has indexed.
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	if s.blocks == nil {
		jsonError(w, "block index unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": s.blocks.Blocks()})
}

type invalidateRequest struct {
	IDs []string `json:"ids"`
}

// handleInvalidate drops the named blocks from the shared cache. An empty
// list purges everything.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		jsonError(w, "block cache disabled", http.StatusServiceUnavailable)
		return
	}

	var req invalidateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	if len(req.IDs) == 0 {
		if err := s.cache.Purge(ctx); err != nil {
			jsonError(w, err.Error(), http.StatusBadGateway)
			return
		}
		s.log.Info("block cache purged")
		writeJSON(w, http.StatusOK, map[string]any{"purged": true})
		return
	}

	if err := s.cache.Invalidate(ctx, req.IDs...); err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.log.Info("blocks invalidated", "ids", req.IDs)
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": req.IDs})
}
