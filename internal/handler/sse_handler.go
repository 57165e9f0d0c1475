package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/flowride/flow/internal/cache"
	"github.com/flowride/flow/internal/repository"
	"github.com/go-chi/chi/v5"
)

// SSEHandler streams live driver positions to riders watching an active
// ride. Updates arrive over the Redis location feed, so the stream works
// no matter which server instance received the driver's report.
type SSEHandler struct {
	rideRepo repository.RideRepository
	feed     cache.LocationFeed
	clients  map[string]map[chan []byte]bool // rideID -> clients
	mu       sync.RWMutex
}

func NewSSEHandler(rideRepo repository.RideRepository, feed cache.LocationFeed) *SSEHandler {
	handler := &SSEHandler{
		rideRepo: rideRepo,
		feed:     feed,
		clients:  make(map[string]map[chan []byte]bool),
	}

	go handler.startFeedListener()

	return handler
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/rides/{id}/track", h.TrackRide)
}

// TrackRide handles SSE connections for real-time ride tracking
func (h *SSEHandler) TrackRide(w http.ResponseWriter, r *http.Request) {
	rideID := chi.URLParam(r, "id")
	if rideID == "" {
		http.Error(w, "ride id required", http.StatusBadRequest)
		return
	}

	ride, err := h.rideRepo.GetByID(r.Context(), rideID)
	if err != nil || ride == nil {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}

	if ride.DriverID == nil {
		http.Error(w, "no driver assigned yet", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan []byte, 10)
	h.registerClient(rideID, clientChan)
	defer h.unregisterClient(rideID, clientChan)

	// Send the last known position immediately so the map is never blank.
	if ride.DriverCurrentLat != nil && ride.DriverCurrentLng != nil {
		event := map[string]interface{}{
			"driver_id": *ride.DriverID,
			"lat":       *ride.DriverCurrentLat,
			"lng":       *ride.DriverCurrentLng,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		data, _ := json.Marshal(event)
		fmt.Fprintf(w, "event: location\ndata: %s\n\n", data)
		flusher.Flush()
	}

	ctx := r.Context()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-clientChan:
			fmt.Fprintf(w, "event: location\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: heartbeat\ndata: {\"time\": \"%s\"}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) registerClient(rideID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[rideID] == nil {
		h.clients[rideID] = make(map[chan []byte]bool)
	}
	h.clients[rideID][ch] = true
}

func (h *SSEHandler) unregisterClient(rideID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[rideID]; ok {
		delete(clients, ch)
		if len(clients) == 0 {
			delete(h.clients, rideID)
		}
	}
	close(ch)
}

func (h *SSEHandler) broadcast(rideID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[rideID]; ok {
		for ch := range clients {
			select {
			case ch <- data:
			default:
				// Client too slow, skip
			}
		}
	}
}

func (h *SSEHandler) startFeedListener() {
	updates, cancel := h.feed.Subscribe(context.Background())
	defer cancel()

	for update := range updates {
		event := map[string]interface{}{
			"driver_id": update.DriverID,
			"lat":       update.Lat,
			"lng":       update.Lng,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		data, _ := json.Marshal(event)
		h.broadcast(update.RideID, data)
	}
}
