package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/on-the-ground/skadi_go/log"
)

// server exposes the movie store over HTTP.
//
//	GET  /state                 current view state
//	POST /movies/{title}/click  perform MovieClicked
//	POST /refresh               perform RefreshRequested
//	GET  /metrics               Prometheus metrics
//	GET  /ws                    stream of states and toasts
type server struct {
	ctx      context.Context
	store    *movieStore
	catalog  *Catalog
	metrics  http.Handler
	upgrader websocket.Upgrader
}

func newServer(ctx context.Context, store *movieStore, catalog *Catalog, metrics http.Handler) *server {
	return &server{
		ctx:     ctx,
		store:   store,
		catalog: catalog,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/state", s.getState)
	r.Post("/movies/{title}/click", s.clickMovie)
	r.Post("/refresh", s.refresh)
	r.Handle("/metrics", s.metrics)
	r.Get("/ws", s.stream)
	return r
}

func (s *server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, render(s.store.CurrentState()))
}

func (s *server) clickMovie(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	_, ok, err := s.catalog.Get(title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown movie %q", title))
		return
	}

	s.store.Perform(MovieClicked{Title: title})
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	s.store.Perform(RefreshRequested{})
	w.WriteHeader(http.StatusAccepted)
}

type streamMessage struct {
	Type  string `json:"type"`
	View  *view  `json:"view,omitempty"`
	Toast string `json:"toast,omitempty"`
}

func stateMessage(state ViewState) streamMessage {
	v := render(state)
	return streamMessage{Type: "state", View: &v}
}

func signalMessage(signal Signal) streamMessage {
	switch signal := signal.(type) {
	case ShowToast:
		return streamMessage{Type: "toast", Toast: signal.Text}
	default:
		panic(fmt.Sprintf("unknown signal %T", signal))
	}
}

// stream pushes the current state, every later state and every toast to a
// websocket client until it disconnects or the store stops.
func (s *server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	states := s.store.States()
	defer states.Cancel()
	signals := s.store.Signals()
	defer signals.Cancel()

	// Keep reading so close frames are processed.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		var msg streamMessage
		select {
		case <-disconnected:
			return
		case state, ok := <-states.C():
			if !ok {
				return
			}
			msg = stateMessage(state)
		case signal, ok := <-signals.C():
			if !ok {
				return
			}
			msg = signalMessage(signal)
		}

		if err := conn.WriteJSON(msg); err != nil {
			log.Eff(s.ctx, log.LogWarn, "websocket write failed", map[string]interface{}{
				"remote": conn.RemoteAddr().String(),
				"error":  err.Error(),
			})
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
