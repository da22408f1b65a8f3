package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pintr/p2p-videocall/internal/signaling"
)

// NewRouter wires the relay's HTTP surface: the websocket endpoint and a
// health check.
func NewRouter(hub *signaling.Hub, allowedOrigins []string, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("signaling relay is healthy"))
	})

	r.Get("/ws", ServeWS(hub, allowedOrigins, log))

	return r
}

// ServeWS returns the handler that upgrades a connection and hands it to the
// hub. An empty origin allow-list accepts every origin.
func ServeWS(hub *signaling.Hub, allowedOrigins []string, log zerolog.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		session := signaling.NewSession(hub, conn, log)
		select {
		case hub.Register <- session:
		case <-hub.Done():
			conn.Close()
			return
		}

		// One goroutine per direction; the pumps own all reads and
		// writes on this connection.
		go session.WritePump()
		go session.ReadPump()
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}
