package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development (use proper CORS in production)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	manager *Manager
	log     *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager: manager,
		log:     logger.With("component", "ws-handler"),
	}
}

// SetupRoutes configures WebSocket routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// WebSocket endpoint: /ws/houses/{id}
	router.HandleFunc("/ws/houses/{id}", h.HandleWebSocket)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/stats/houses/{id}", h.GetStats).Methods("GET")

	return router
}

type welcome struct {
	Type     string `json:"type"`
	HouseID  uint32 `json:"house_id"`
	ClientID string `json:"client_id"`
}

func houseVar(r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// HandleWebSocket upgrades HTTP connection to WebSocket
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	house, ok := houseVar(r)
	if !ok {
		http.Error(w, "House ID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", slog.String("error", err.Error()))
		return
	}

	client := &Client{
		ID:      uuid.New().String(),
		HouseID: house,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
	}

	// queued before registration: once registered, Send belongs to the manager
	hello, _ := json.Marshal(welcome{Type: "connected", HouseID: house, ClientID: client.ID})
	client.Send <- hello

	if !h.manager.RegisterClient(client) {
		_ = conn.Close()
		return
	}
	go client.readPump(h.manager)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "broadcast-service",
	})
}

// GetStats returns the number of clients watching a house.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	house, ok := houseVar(r)
	if !ok {
		http.Error(w, "House ID is required", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint32{
		"house_id":    house,
		"subscribers": uint32(h.manager.GetSubscriberCount(house)),
	})
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
