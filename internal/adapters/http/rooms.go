package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxRoomNameLen = 64

type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roomHandlers struct {
	orch *orch.Orchestrator
}

func (h *roomHandlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *roomHandlers) create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len([]rune(name)) > maxRoomNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
		return
	}
	room := h.orch.Rooms.CreateRoom(domain.RoomName(name), strings.TrimSpace(req.Description))
	snap, err := h.orch.Snapshot(room.Room().ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(snap.ID)).Msg("room created via api")
	c.JSON(http.StatusCreated, snap)
}

func (h *roomHandlers) get(c *gin.Context) {
	snap, err := h.orch.Snapshot(domain.RoomID(c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *roomHandlers) participants(c *gin.Context) {
	snap, err := h.orch.Snapshot(domain.RoomID(c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": snap.Participants})
}

func (h *roomHandlers) stop(c *gin.Context) {
	if err := h.orch.EvictRoom(domain.RoomID(c.Param("id"))); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *roomHandlers) fail(c *gin.Context, err error) {
	if errors.Is(err, orch.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
