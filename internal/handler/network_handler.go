package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/roadsim-backend-go/internal/service"
	"github.com/jengzang/roadsim-backend-go/pkg/response"
)

// maxNetworkBody caps the size of an uploaded GeoJSON document
const maxNetworkBody = 64 << 20

// NetworkHandler handles HTTP requests for road networks
type NetworkHandler struct {
	service *service.NetworkService
}

// NewNetworkHandler creates a new network handler
func NewNetworkHandler(service *service.NetworkService) *NetworkHandler {
	return &NetworkHandler{service: service}
}

// Import handles POST /api/v1/networks?name=...&geographic=true
func (h *NetworkHandler) Import(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNetworkBody))
	if err != nil {
		response.BadRequest(c, "Failed to read body", err)
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		response.BadRequest(c, "Invalid GeoJSON FeatureCollection", err)
		return
	}
	geographic, _ := strconv.ParseBool(c.DefaultQuery("geographic", "false"))

	network, err := h.service.Import(fc, service.ImportOptions{
		Name:       c.Query("name"),
		Geographic: geographic,
	})
	if err != nil {
		fail(c, "Failed to import network", err)
		return
	}
	response.Created(c, network)
}

// GetByID handles GET /api/v1/networks/:id
func (h *NetworkHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid network ID", err)
		return
	}
	network, err := h.service.Get(id)
	if err != nil {
		fail(c, "Failed to get network", err)
		return
	}
	response.Success(c, network)
}
