package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MetricsFunc returns a JSON-encodable snapshot of runtime counters.
type MetricsFunc func() interface{}

// NewRouter serves the topic subscriptions and the monitoring routes.
func NewRouter(hub *Hub, metrics MetricsFunc) *mux.Router {
	r := mux.NewRouter()
	// Topic names may contain slashes, so the latest route must be registered first
	r.HandleFunc("/topics/{topic:.+}/latest", hub.handleLatest).Methods("GET")
	r.HandleFunc("/topics/{topic:.+}", hub.handleSubscribe).Methods("GET")
	r.HandleFunc("/healthz", handleHealth).Methods("GET")
	if metrics != nil {
		r.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, metrics())
		}).Methods("GET")
	}
	return r
}

func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	h.mu.Lock()
	m, ok := h.latest[topic]
	h.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"code":    "no_message",
			"message": "nothing published on " + topic,
		})
		return
	}

	if m.kind == websocket.TextMessage {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "application/msgpack")
	}
	w.Write(m.data)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Serve runs an HTTP server for handler until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.SugaredLogger) error {
	srv := &http.Server{
		Handler:      handler,
		Addr:         addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infow("starting transport server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
