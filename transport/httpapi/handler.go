// Package httpapi exposes one editor session over JSON HTTP so a browser
// front-end can drive layer edits and the undo/redo timeline.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	history "github.com/goliatone/go-history"
	"github.com/goliatone/go-history/editor"
	"github.com/goliatone/go-history/internal/hydrate"
	"github.com/goliatone/go-history/layer"
)

const maxBodyBytes = 1 << 20

// Front-ends written against the camelCase layer model send this key.
var camelAliases = map[string]string{"zIndex": "z_index"}

// Option configures the handler.
type Option func(*server)

// WithLogger logs one line per request.
func WithLogger(logger *slog.Logger) Option {
	return func(s *server) { s.logger = logger }
}

type server struct {
	session *editor.Session
	logger  *slog.Logger
	patches *hydrate.Decoder[layer.Patch]
	layers  *hydrate.Decoder[addRequest]
}

// addRequest tells an explicit "visible": false or "z_index": 0 apart from an
// omitted key.
type addRequest struct {
	layer.Layer
	Visible *bool `json:"visible,omitempty"`
	ZIndex  *int  `json:"z_index,omitempty"`
}

func (r addRequest) options() []layer.AddOption {
	var opts []layer.AddOption
	if r.Visible != nil && !*r.Visible {
		opts = append(opts, layer.Hidden())
	}
	if r.ZIndex != nil {
		opts = append(opts, layer.AtZIndex(*r.ZIndex))
	}
	return opts
}

// New builds the router for session.
func New(session *editor.Session, opts ...Option) http.Handler {
	s := &server{
		session: session,
		patches: hydrate.NewDecoder(
			hydrate.WithKeyAliases[layer.Patch](camelAliases),
			hydrate.WithDisallowUnknownFields[layer.Patch](),
		),
		layers: hydrate.NewDecoder(
			hydrate.WithKeyAliases[addRequest](camelAliases),
			hydrate.WithDisallowUnknownFields[addRequest](),
		),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.logger != nil {
		r.Use(s.logRequests)
	}

	r.Get("/document", s.document)
	r.Get("/history", s.timeline)
	r.Post("/undo", s.move(func() (history.Entry[layer.Document], bool) { return s.session.Undo() }))
	r.Post("/redo", s.move(func() (history.Entry[layer.Document], bool) { return s.session.Redo() }))
	r.Post("/jump/{index}", s.jump)
	r.Post("/select", s.selectLayer)
	r.Post("/save", s.save)
	r.Route("/layers", func(r chi.Router) {
		r.Post("/", s.addLayer)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", s.updateLayer)
			r.Delete("/", s.removeLayer)
			r.Post("/duplicate", s.duplicateLayer)
			r.Post("/up", s.shift(func(id string) bool { return s.session.MoveLayerUp(id) }))
			r.Post("/down", s.shift(func(id string) bool { return s.session.MoveLayerDown(id) }))
		})
	})
	return r
}

type entryView struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type timelineView struct {
	Entries []entryView `json:"entries"`
	Cursor  int         `json:"cursor"`
	CanUndo bool        `json:"can_undo"`
	CanRedo bool        `json:"can_redo"`
}

func viewOf(entry history.Entry[layer.Document]) entryView {
	return entryView{
		ID:          entry.ID,
		Action:      string(entry.Action),
		Description: entry.Description,
		Timestamp:   entry.Timestamp,
	}
}

func (s *server) document(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Document())
}

func (s *server) timeline(w http.ResponseWriter, _ *http.Request) {
	entries := s.session.Entries()
	view := timelineView{
		Entries: make([]entryView, len(entries)),
		Cursor:  s.session.History().Cursor(),
		CanUndo: s.session.CanUndo(),
		CanRedo: s.session.CanRedo(),
	}
	for i, entry := range entries {
		view.Entries[i] = viewOf(entry)
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *server) move(fn func() (history.Entry[layer.Document], bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		entry, ok := fn()
		if !ok {
			s.writeError(w, http.StatusConflict, errors.New("nothing to restore"))
			return
		}
		s.writeJSON(w, http.StatusOK, viewOf(entry))
	}
}

func (s *server) jump(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid index: %w", err))
		return
	}
	s.move(func() (history.Entry[layer.Document], bool) { return s.session.JumpTo(index) })(w, r)
}

func (s *server) addLayer(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	req, err := s.layers.Decode(hydrate.Context{Route: "POST /layers"}, body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.session.AddLayer(req.Layer, req.options()...))
}

func (s *server) updateLayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, found := s.session.Store().Layer(id); !found {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("layer %q not found", id))
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	patch, err := s.patches.Decode(hydrate.Context{Route: "PATCH /layers/{id}", LayerID: id}, body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.session.UpdateLayer(id, patch)
	updated, _ := s.session.Store().Layer(id)
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *server) removeLayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.session.RemoveLayer(id) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("layer %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) duplicateLayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dup, ok := s.session.DuplicateLayer(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("layer %q not found", id))
		return
	}
	s.writeJSON(w, http.StatusCreated, dup)
}

func (s *server) shift(fn func(id string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, found := s.session.Store().Layer(id); !found {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("layer %q not found", id))
			return
		}
		if !fn(id) {
			s.writeError(w, http.StatusConflict, fmt.Errorf("layer %q cannot move further", id))
			return
		}
		s.writeJSON(w, http.StatusOK, s.session.Store().PaintOrder())
	}
}

func (s *server) selectLayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode select: %w", err))
		return
	}
	if req.ID != "" {
		if _, found := s.session.Store().Layer(req.ID); !found {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("layer %q not found", req.ID))
			return
		}
	}
	s.session.Select(req.ID)
	s.writeJSON(w, http.StatusOK, map[string]string{"selected_id": s.session.Store().SelectedID()})
}

func (s *server) save(w http.ResponseWriter, r *http.Request) {
	err := s.session.Save(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, editor.ErrNoPersistence), errors.Is(err, editor.ErrDocumentIDRequired):
		s.writeError(w, http.StatusNotImplemented, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.LogAttrs(context.Background(), slog.LevelInfo, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return nil, false
	}
	return body, true
}

// writeJSON logs encode failures; the status line is already sent by then.
func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.logger != nil {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "encode response failed",
			slog.Int("status", code),
			slog.Any("error", err),
		)
	}
}

func (s *server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
