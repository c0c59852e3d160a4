package coordinator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/protocol"
	"github.com/v0xg/jobfill/internal/session"
)

const maxDocumentBytes = 4 << 20

type openRequest struct {
	URL string `json:"url"`
}

type openResponse struct {
	ID session.ID `json:"id"`
}

// Handler returns the HTTP surface of c.
func (c *Coordinator) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(c.requestLogger)

	r.Post("/sessions", c.handleOpen)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Delete("/", c.handleClose)
		r.Post("/classify", c.handleClassify)
		r.Get("/classification", c.handleClassification)
		r.Post("/generate", c.handleGenerate)
		r.Post("/run", c.handleRun)
	})
	r.Get("/profile", c.handleProfile)
	return r
}

func (c *Coordinator) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		c.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (c *Coordinator) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("body must be {\"url\": \"...\"}"))
		return
	}
	id, err := c.OpenSession(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, openResponse{ID: id})
}

func (c *Coordinator) handleClose(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := c.Close(id); err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			c.logger.Error("close session", zap.String("session", string(id)), zap.Error(err))
		}
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Coordinator) handleClassify(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, err := c.Classify(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *Coordinator) handleClassification(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, found := c.Classification(id)
	if !found {
		writeError(w, http.StatusNotFound, errors.New("session has not been classified"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *Coordinator) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	doc, err := c.Generate(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleRun accepts an optional document body; an empty body runs the
// session's generated document.
func (c *Coordinator) handleRun(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var doc *protocol.Document
	if len(body) > 0 {
		doc, err = protocol.Parse(body)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}

	out, err := c.Start(r.Context(), id, doc)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *Coordinator) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := c.Profile(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func sessionID(w http.ResponseWriter, r *http.Request) (session.ID, bool) {
	id, err := session.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return "", false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrNoDocument), errors.Is(err, protocol.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoProvider):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
