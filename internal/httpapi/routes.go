package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouteOptions struct {
	PublicURL string
	Logger    *zap.Logger
}

func SetupRoutes(rooms Rooms, sockets http.Handler, opts RouteOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthz", Healthz(rooms))
	r.Get("/ws", sockets.ServeHTTP)
	r.Get("/rooms/{code}", GetRoom(rooms, log))
	r.Get("/rooms/{code}/qr", RoomQR(rooms, opts.PublicURL, log))
	return r
}
