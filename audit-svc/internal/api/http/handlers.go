package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"overcooked-storefront/audit-svc/internal/service"
)

type Handler struct {
	Store service.EventStore
}

func NewHandler(store service.EventStore) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.healthCheck).Methods("GET")
	r.HandleFunc("/api/orders/{id}/events", h.getOrderEvents).Methods("GET")
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "audit-svc",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// getOrderEvents returns the checkout trail of one order, oldest first.
func (h *Handler) getOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || orderID <= 0 {
		writeErrorBody(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	events, err := h.Store.ListOrderEvents(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: listing events for order %d: %v", orderID, err)
		writeErrorBody(w, http.StatusInternalServerError, "internal", "Failed to load order events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeErrorBody(w http.ResponseWriter, status int, kind, msg string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = msg
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
