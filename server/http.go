package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/carrousel/carousel"
	"github.com/hazyhaar/carrousel/compose"
	"github.com/hazyhaar/carrousel/renderlog"
)

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Use(maxBody(s.cfg.MaxBody))
	r.Use(s.traceID)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/modules", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, s.listModules())
		})
		r.Post("/compose", s.handleCompose)
		r.Post("/render/batch", s.handleRenderBatch)
		r.Post("/carousel/transform", s.handleTransform)
		r.Post("/carousel/render", s.handleCarouselRender)

		if s.history != nil {
			r.Get("/batches", s.handleBatches)
			r.Get("/batches/{id}", s.handleBatch)
		}
		if s.metrics != nil {
			r.Get("/metrics", s.handleMetrics)
		}
	})

	if s.cfg.StaticOutput && s.cfg.OutputDir != "" {
		prefix := strings.TrimSuffix(s.cfg.PublicURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.cfg.OutputDir))))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.alive != nil {
		// Chrome starts lazily; "idle" is healthy.
		if s.alive() {
			resp["browser"] = "up"
		} else {
			resp["browser"] = "idle"
		}
	}
	writeJSON(w, 200, resp)
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req compose.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	doc, err := s.compose(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, doc)
}

// handleRenderBatch answers 200 whatever the per-job outcomes; only a
// missing layout list is a request error.
func (s *Server) handleRenderBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Layouts *[]carousel.TemplateLayout `json:"layouts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Layouts == nil {
		writeJSON(w, 400, map[string]string{"error": "layouts is required"})
		return
	}
	writeJSON(w, 200, s.renderBatch(r.Context(), *req.Layouts))
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	req, err := transformRequest(r)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	resp, err := s.transform(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, resp)
}

func (s *Server) handleCarouselRender(w http.ResponseWriter, r *http.Request) {
	req, err := transformRequest(r)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	resp, err := s.renderCarousel(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, resp)
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	list, err := s.history.Recent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, list)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.history.Batch(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, renderlog.ErrNotFound) {
		writeError(w, 404, err)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, res)
}

// handleMetrics returns render timings of the last ?minutes (default 60).
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-time.Duration(queryInt(r, "minutes", 60)) * time.Minute)
	list, err := s.metrics.Query(r.Context(), r.URL.Query().Get("name"), since, queryInt(r, "limit", 500))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, list)
}

// transformRequest reads either a raw carousel body or the envelope the MCP
// tools take ({data, overlay, mode, ...}). Carousel documents have no
// top-level "data" key, which tells the two apart. Query parameters
// override the envelope.
func transformRequest(r *http.Request) (*TransformRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	req := &TransformRequest{Data: body}
	var env TransformRequest
	if json.Unmarshal(body, &env) == nil && len(env.Data) > 0 {
		req = &env
	}
	q := r.URL.Query()
	if v := q.Get("highlight_color"); v != "" {
		req.HighlightColor = v
	}
	if v := q.Get("highlight_bg"); v != "" {
		req.HighlightBackground = v
	}
	if v := q.Get("mode"); v != "" {
		req.Mode = v
	}
	return req, nil
}

// fail maps pipeline errors to status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *carousel.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, 400, verr)
	case errors.Is(err, ErrBadRequest):
		writeError(w, 400, err)
	default:
		requestLogger(r.Context(), s.logger).Error("server: request failed", "error", err)
		writeError(w, 500, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
