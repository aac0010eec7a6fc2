package marketdata

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const streamBuffer = 64

// Server exposes the feed over HTTP: a websocket stream of updates and
// a JSON depth snapshot for request/response consumers.
type Server struct {
	publisher *Publisher
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

func NewServer(publisher *Publisher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		publisher: publisher,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:       log,
	}
}

// Register mounts the feed endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws/marketdata", s.handleStream)
	mux.HandleFunc("/book", s.handleSnapshot)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.publisher.Hub().Subscribe(streamBuffer)
	defer s.publisher.Hub().Unsubscribe(sub)

	// Seed the connection with current state before live updates.
	if err := conn.WriteJSON(s.publisher.Snapshot()); err != nil {
		return
	}

	for u := range sub.Updates() {
		if err := conn.WriteJSON(u); err != nil {
			s.log.Debug("websocket write failed",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Error(err))
			return
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.publisher.Snapshot())
}
