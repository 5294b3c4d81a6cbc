package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/222caleb/stinkyman-game/store"
)

const (
	roomCodeLength  = 6
	roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// how many collisions to tolerate before giving up on a code
	roomCodeAttempts = 5

	purgeInterval = time.Hour
	purgeMaxAge   = 24 * time.Hour
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameServer is the relay: it upgrades websocket connections, routes
// room traffic through the Hub and persists rooms in the store.
type GameServer struct {
	http.Server

	store  store.RoomStore
	hub    *Hub
	logger *logrus.Logger

	mu  sync.Mutex
	rng *rand.Rand

	done chan struct{}
}

// Opts configures a GameServer. Zero values get sensible defaults.
type Opts struct {
	Addr           string
	Store          store.RoomStore
	Logger         *logrus.Logger
	AllowedOrigins []string

	// AIGrace is how long a disconnected player holds their seat
	// before the room treats them as AI-controlled
	AIGrace time.Duration

	// Rand drives room code generation; defaults to a time-seeded
	// source
	Rand *rand.Rand
}

// NewServer creates a GameServer ready to ListenAndServe
func NewServer(opts Opts) *GameServer {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.AIGrace == 0 {
		opts.AIGrace = 30 * time.Second
	}

	s := &GameServer{
		store:  opts.Store,
		logger: opts.Logger,
		rng:    opts.Rand,
		done:   make(chan struct{}),
	}
	s.hub = NewHub(opts.Store, opts.Logger, opts.AIGrace, s.newRoomCode)

	router := http.NewServeMux()
	router.HandleFunc("/health", s.handleHealth)
	router.HandleFunc("/api/rooms", s.handleActiveRooms)
	router.HandleFunc("/ws", s.handleWS)
	router.HandleFunc("/", s.handleRoot)

	cors := handlers.CORS(
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowCredentials(),
	)

	s.Addr = opts.Addr
	s.Handler = handlers.LoggingHandler(opts.Logger.Writer(), cors(router))

	go s.purgeLoop()

	return s
}

// Shutdown stops the purge loop, closes the room hub and drains the
// http server
func (s *GameServer) Shutdown(ctx context.Context) error {
	close(s.done)
	s.hub.Close()
	return s.Server.Shutdown(ctx)
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GameServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "game relay running",
	})
}

func (s *GameServer) handleActiveRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rooms, err := s.store.ActiveRooms(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("listing active rooms")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (s *GameServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("upgrading websocket")
		return
	}
	s.hub.Serve(conn)
}

// newRoomCode generates an unused 6-character room code. The store is
// the arbiter: collisions surface as ErrRoomExists on create, so the
// caller retries through here.
func (s *GameServer) newRoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeCharset[s.rng.Intn(len(roomCodeCharset))]
	}
	return string(code)
}

func (s *GameServer) purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			purged, err := s.store.PurgeStale(ctx, purgeMaxAge)
			cancel()
			if err != nil {
				s.logger.WithError(err).Error("purging stale rooms")
				continue
			}
			if purged > 0 {
				s.logger.WithField("count", purged).Info("purged stale rooms")
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	bytes, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("problem encoding response: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(bytes)
}
