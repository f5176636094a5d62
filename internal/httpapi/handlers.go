package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/idiom-party-backend/internal/hub"
	ptypes "github.com/DoyleJ11/idiom-party-backend/pkg/types"
)

// Rooms is the read side of the coordinator served over HTTP.
type Rooms interface {
	Snapshot(ctx context.Context, code string) (ptypes.RoomSnapshot, error)
	Rooms() int
}

const qrSize = 320

func Healthz(rooms Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
			Rooms  int    `json:"rooms"`
		}{Status: "ok", Rooms: rooms.Rooms()})
	}
}

func GetRoom(rooms Rooms, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := rooms.Snapshot(r.Context(), chi.URLParam(r, "code"))
		switch {
		case errors.Is(err, hub.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case err != nil:
			log.Warn("room snapshot", zap.Error(err))
			http.Error(w, "failed to read room", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// RoomQR renders a QR code of the room's join link. publicURL, when set,
// overrides the base derived from the request.
func RoomQR(rooms Rooms, publicURL string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := rooms.Snapshot(r.Context(), chi.URLParam(r, "code"))
		switch {
		case errors.Is(err, hub.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case err != nil:
			log.Warn("room snapshot", zap.Error(err))
			http.Error(w, "failed to read room", http.StatusInternalServerError)
			return
		}

		png, err := qrcode.Encode(JoinURL(baseURL(r, publicURL), snap.Code), qrcode.Medium, qrSize)
		if err != nil {
			log.Error("qr encode", zap.Error(err))
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

func JoinURL(base, code string) string {
	return strings.TrimSuffix(base, "/") + "/join?" + url.Values{"code": {code}}.Encode()
}

// baseURL respects TLS and X-Forwarded-Proto when no public URL is configured.
func baseURL(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
