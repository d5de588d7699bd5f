package signaling

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server accepts websocket connections and hands each one a Client
// bound to the shared registry and router.
type Server struct {
	registry *Registry
	router   *Router
	upgrader websocket.Upgrader
}

// NewServer creates a signaling server with an empty registry.
func NewServer() *Server {
	registry := NewRegistry()
	return &Server{
		registry: registry,
		router:   NewRouter(registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // room ids are the only admission control
			},
		},
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, 256),
		registry: s.registry,
		router:   s.router,
		rooms:    make(map[string]bool),
	}

	log.Printf("User connected: %s", client.id)

	go client.writePump()
	go client.readPump()
}

// HandleHealth reports liveness for load balancers and tunnels.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// Handler returns the http mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

// StartServer starts the signaling HTTP server on addr.
func (s *Server) StartServer(addr string) error {
	log.Printf("Signal server starting on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}
