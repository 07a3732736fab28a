package http

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/rendezvous/internal/config"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	RoomService *service.RoomService
	Hub         *ws.Hub

	cfg      config.Config
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandler(roomService *service.RoomService, hub *ws.Hub, cfg config.Config) *Handler {
	h := &Handler{
		RoomService: roomService,
		Hub:         hub,
		cfg:         cfg,
		now:         time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(middleware.SetHeader("X-Frame-Options", "SAMEORIGIN"))
	r.Use(middleware.SetHeader("Referrer-Policy", "no-referrer"))
	r.Use(middleware.SetHeader("X-DNS-Prefetch-Control", "off"))

	r.Get("/ws", h.ServeWS)
	r.Get("/health", h.health)
	r.Get("/metrics", h.metrics)

	if h.cfg.IsDevelopment() {
		r.Route("/debug/rooms", func(r chi.Router) {
			r.Get("/", h.listRooms)
			r.Get("/{roomID}", h.roomParticipants)
		})
	}

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"status":      "healthy",
		"timestamp":   h.now().UTC().Format(time.RFC3339Nano),
		"environment": h.cfg.Environment,
	})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"metrics": h.RoomService.Stats(),
	})
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rooms":   h.RoomService.Rooms(),
	})
}

func (h *Handler) roomParticipants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"roomId":       strings.ToUpper(roomID),
		"participants": h.RoomService.ParticipantsOf(roomID),
	})
}

func (h *Handler) allowAnyOrigin() bool {
	return slices.Contains(h.cfg.CORSOrigins, "*")
}

// originAllowed gates websocket upgrades, which CORS does not cover. Requests
// without an Origin header come from non-browser clients and are let through.
func (h *Handler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowAnyOrigin() {
		return true
	}
	if slices.Contains(h.cfg.CORSOrigins, origin) {
		return true
	}
	log.Warn().Str("origin", origin).Msg("Rejected websocket origin")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
