package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/idiom-party-backend/internal/hub"
	ptypes "github.com/DoyleJ11/idiom-party-backend/pkg/types"
)

type mockRooms struct{ mock.Mock }

func (m *mockRooms) Snapshot(_ context.Context, code string) (ptypes.RoomSnapshot, error) {
	args := m.Called(code)
	return args.Get(0).(ptypes.RoomSnapshot), args.Error(1)
}

func (m *mockRooms) Rooms() int { return m.Called().Int(0) }

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func newRouter(rooms Rooms, publicURL string) http.Handler {
	sockets := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	return SetupRoutes(rooms, sockets, RouteOptions{PublicURL: publicURL})
}

func TestHealthz(t *testing.T) {
	rooms := &mockRooms{}
	rooms.On("Rooms").Return(4)

	rec := httptest.NewRecorder()
	newRouter(rooms, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","rooms":4}`, rec.Body.String())
}

func TestGetRoom(t *testing.T) {
	rooms := &mockRooms{}
	rooms.On("Snapshot", "ABC123").Return(ptypes.RoomSnapshot{
		Code:        "ABC123",
		Mode:        "player",
		Phase:       "waiting",
		TotalRounds: 10,
		HostID:      "h",
		Players:     []ptypes.PlayerView{{ID: "h", Name: "Ann"}},
	}, nil)
	rooms.On("Snapshot", "NOPE00").Return(ptypes.RoomSnapshot{}, hub.ErrRoomNotFound)
	rooms.On("Snapshot", "BROKEN").Return(ptypes.RoomSnapshot{}, errors.New("boom"))
	router := newRouter(rooms, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/ABC123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap ptypes.RoomSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "Ann", snap.Players[0].Name)
	assert.Equal(t, 10, snap.TotalRounds)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/NOPE00", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/BROKEN", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRoomQR(t *testing.T) {
	rooms := &mockRooms{}
	rooms.On("Snapshot", "ABC123").Return(ptypes.RoomSnapshot{Code: "ABC123"}, nil)
	rooms.On("Snapshot", "NOPE00").Return(ptypes.RoomSnapshot{}, hub.ErrRoomNotFound)
	router := newRouter(rooms, "https://party.example")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/ABC123/qr", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), pngMagic))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/NOPE00/qr", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebsocketRouteIsMounted(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&mockRooms{}, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://party.example/join?code=ABC123", JoinURL("https://party.example/", "ABC123"))

	r := httptest.NewRequest(http.MethodGet, "/rooms/ABC123/qr", nil)
	r.Host = "game.local:8080"
	assert.Equal(t, "http://game.local:8080", baseURL(r, ""))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://game.local:8080", baseURL(r, ""))
	assert.Equal(t, "https://cfg.example", baseURL(r, "https://cfg.example"))
}
