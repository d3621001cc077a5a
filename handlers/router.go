package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ffinder-server/middleware"
	"ffinder-server/services"
	"ffinder-server/store"
)

type RouterConfig struct {
	Users   *services.UserService
	Groups  *services.GroupService
	Invites *services.InviteService
	Rooms   *services.RoomService
	// Store is pinged by /healthz when it supports it.
	Store store.Store

	CORSOrigins []string
	// RateLimit requests per RateWindow and client IP on the
	// unauthenticated account routes. Zero disables the limit.
	RateLimit  int
	RateWindow time.Duration
}

// NewRouter wires every route and the middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Users)
	userHandler := NewUserHandler(cfg.Users)
	groupHandler := NewGroupHandler(cfg.Groups)
	inviteHandler := NewInviteHandler(cfg.Invites)
	roomHandler := NewRoomHandler(cfg.Rooms)

	limit := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.RateLimit > 0 {
		limiter := httprate.Limit(cfg.RateLimit, cfg.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(middleware.TooManyRequests),
		)
		limit = func(h http.HandlerFunc) http.Handler { return limiter(h) }
	}

	r := mux.NewRouter()
	r.NotFoundHandler = middleware.NotFoundHandler()
	r.MethodNotAllowedHandler = middleware.MethodNotAllowedHandler()
	r.Use(middleware.MetricsMiddleware())

	r.HandleFunc("/healthz", healthz(cfg.Store)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Public routes
	r.Handle("/users/register", limit(authHandler.RegisterUser)).Methods(http.MethodPost)
	r.Handle("/users/login", limit(authHandler.LoginUser)).Methods(http.MethodPost)
	r.Handle("/login/{provider}", limit(authHandler.LoginProvider)).Methods(http.MethodPost)
	r.HandleFunc("/confirm/{token}", inviteHandler.Confirm).Methods(http.MethodGet)
	r.Handle("/activate/{token}", limit(inviteHandler.Activate)).Methods(http.MethodPost)

	// Authenticated routes
	auth := middleware.AuthMiddleware(cfg.Users)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	r.Handle("/users/location", protected(userHandler.UpdateLocation)).Methods(http.MethodPost)
	r.Handle("/users/me", protected(userHandler.Me)).Methods(http.MethodGet)
	r.Handle("/users/me", protected(userHandler.DeleteMe)).Methods(http.MethodDelete)

	r.Handle("/groups", protected(groupHandler.CreateGroup)).Methods(http.MethodPost)
	r.Handle("/groups/{id}", protected(groupHandler.GetGroup)).Methods(http.MethodGet)
	r.Handle("/groups/{id}/locations", protected(groupHandler.Locations)).Methods(http.MethodGet)
	r.Handle("/groups/{id}/nearby", protected(groupHandler.Nearby)).Methods(http.MethodGet)
	r.Handle("/groups/{id}/add", protected(groupHandler.AddMember)).Methods(http.MethodPost)
	r.Handle("/groups/{id}/remove", protected(groupHandler.RemoveMember)).Methods(http.MethodPost)

	r.Handle("/rooms", protected(roomHandler.CreateRoom)).Methods(http.MethodPost)
	r.Handle("/rooms/{id}", protected(roomHandler.GetRoom)).Methods(http.MethodGet)
	r.Handle("/rooms/{id}/beacons", protected(roomHandler.ListBeacons)).Methods(http.MethodGet)
	r.Handle("/beacons", protected(roomHandler.AddBeacon)).Methods(http.MethodPost)

	var h http.Handler = r
	h = middleware.CORSMiddleware(cfg.CORSOrigins)(h)
	h = middleware.RecoverMiddleware()(h)
	h = middleware.RequestLogger()(h)
	return h
}

func healthz(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := st.(store.Pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
