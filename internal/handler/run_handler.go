package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/service"
	"github.com/jengzang/roadsim-backend-go/pkg/response"
)

const writeTimeout = 10 * time.Second

// RunHandler handles HTTP requests for simulation runs
type RunHandler struct {
	service  *service.RunService
	upgrader websocket.Upgrader
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{
		service: service,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Create handles POST /api/v1/runs
func (h *RunHandler) Create(c *gin.Context) {
	var req models.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}
	snap, err := h.service.Create(req)
	if err != nil {
		fail(c, "Failed to create run", err)
		return
	}
	response.Created(c, snap)
}

// Get handles GET /api/v1/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	snap, err := h.service.Snapshot(c.Param("id"))
	if err != nil {
		fail(c, "Failed to get run", err)
		return
	}
	response.Success(c, snap)
}

// Step handles POST /api/v1/runs/:id/step; an empty body steps one tick
func (h *RunHandler) Step(c *gin.Context) {
	var req models.StepRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body", err)
			return
		}
	}
	snap, err := h.service.Step(c.Request.Context(), c.Param("id"), req.Ticks)
	if err != nil {
		fail(c, "Failed to step run", err)
		return
	}
	response.Success(c, snap)
}

// Stats handles GET /api/v1/runs/:id/stats
func (h *RunHandler) Stats(c *gin.Context) {
	st, err := h.service.Stats(c.Param("id"))
	if err != nil {
		fail(c, "Failed to get run stats", err)
		return
	}
	response.Success(c, st)
}

// Delete handles DELETE /api/v1/runs/:id
func (h *RunHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Param("id")); err != nil {
		fail(c, "Failed to delete run", err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

// Stream handles GET /api/v1/runs/:id/stream. The current snapshot is sent
// on connect, then one message per step until the run is deleted or the
// client goes away.
func (h *RunHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	current, err := h.service.Snapshot(id)
	if err != nil {
		fail(c, "Failed to stream run", err)
		return
	}
	updates, cancel, err := h.service.Subscribe(id)
	if err != nil {
		fail(c, "Failed to stream run", err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("[Stream] upgrade failed for run %s: %v", id, err)
		return
	}
	defer conn.Close()

	// reads only detect the client closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(snap *models.RunSnapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(snap); err != nil {
			log.Debugf("[Stream] run %s: %v", id, err)
			return false
		}
		return true
	}
	if !send(current) {
		return
	}
	for {
		select {
		case <-gone:
			return
		case snap, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run deleted"),
					time.Now().Add(writeTimeout))
				return
			}
			if !send(snap) {
				return
			}
		}
	}
}
