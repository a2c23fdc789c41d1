package api

import (
	"net/http"
	"time"

	"github.com/dgallion1/docresolve/internal/convert"
	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/pipeline"
)

type resolveRequest struct {
	Title    string       `json:"title"`
	Path     string       `json:"path"`
	Tree     doctree.Tree `json:"tree"`
	Category string       `json:"category"`
	Baseline string       `json:"baseline"`
	Output   string       `json:"output"`
	Relaxed  *bool        `json:"relaxed"`
	Limits   struct {
		MaxDepth   int `json:"max_depth"`
		MaxNesting int `json:"max_nesting"`
		TimeoutMs  int `json:"timeout_ms"`
	} `json:"limits"`
}

// handleResolve resolves, parses and scores a serialized tree in the
// request. Classified failures map to 404, 409, 422 or 504.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Tree == nil {
		jsonError(w, "tree is required", http.StatusBadRequest)
		return
	}

	relaxed := s.cfg.RelaxedReferences
	if req.Relaxed != nil {
		relaxed = *req.Relaxed
	}
	opts := convert.Options{
		Path:     req.Path,
		Category: req.Category,
		Baseline: req.Baseline,
		Output:   req.Output,
		Relaxed:  relaxed,
		Limits: s.capLimits(convert.Limits{
			MaxDepth:   req.Limits.MaxDepth,
			MaxNesting: req.Limits.MaxNesting,
			Timeout:    time.Duration(req.Limits.TimeoutMs) * time.Millisecond,
		}),
	}

	doc := &doctree.Document{Title: req.Title, Body: req.Tree}
	rep, err := s.orchestrator.Engine().Convert(r.Context(), doc, opts)
	if err != nil {
		kind := docerr.KindOf(err)
		s.log.Info("resolve failed", "kind", kind, "error", err)
		writeJSON(w, statusForKind(kind), map[string]string{
			"error": err.Error(),
			"kind":  kind,
		})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func statusForKind(kind string) int {
	switch kind {
	case docerr.KindReferenceNotFound:
		return http.StatusNotFound
	case docerr.KindCircularReference, docerr.KindMaxDepthExceeded:
		return http.StatusConflict
	case docerr.KindMalformedConditional, docerr.KindUnterminatedConditional,
		docerr.KindMaxNestingExceeded, docerr.KindMalformedTable, pipeline.KindExtraction:
		return http.StatusUnprocessableEntity
	case docerr.KindTimeout:
		return http.StatusGatewayTimeout
	case pipeline.KindQueueFull:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
