package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := orch.New(app.NewRegistry(), app.NewRoomManager(), app.SimplePolicy{}, time.Second)
	cfg := &config.ServerConfig{Mode: "test", Secret: "test-secret", PingPeriod: time.Second}
	return SetupRouter(context.Background(), cfg, o), o
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRooms_CRUD(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodPost, "/api/rooms", CreateRoomRequest{Name: "standup", Description: "daily"})
	require.Equal(t, http.StatusCreated, w.Code)
	var snap protocol.RoomSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "daily", snap.Description)
	require.NotEmpty(t, snap.ID)

	w = do(r, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, snap.ID, list.Rooms[0].ID)

	w = do(r, http.MethodGet, "/api/rooms/"+string(snap.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/rooms/"+string(snap.ID)+"/participants", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"participants":[]}`, w.Body.String())

	w = do(r, http.MethodDelete, "/api/rooms/"+string(snap.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/rooms/"+string(snap.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, "/api/rooms/"+string(snap.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRooms_CreateValidation(t *testing.T) {
	r, _ := newRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/rooms", CreateRoomRequest{Name: "  "}).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthzSetsSessionCookie(t *testing.T) {
	r, _ := newRouter(t)
	w := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Result().Cookies())
}
