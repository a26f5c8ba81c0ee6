package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/navigation"
	"github.com/jengzang/roadsim-backend-go/internal/service"
	"github.com/jengzang/roadsim-backend-go/internal/simulation"
	"github.com/jengzang/roadsim-backend-go/pkg/response"
)

// fail maps service and simulation errors onto HTTP statuses
func fail(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, service.ErrNetworkNotFound),
		errors.Is(err, service.ErrJobNotFound):
		response.NotFound(c, message, err)
	case errors.Is(err, service.ErrJobNotActive):
		response.Error(c, http.StatusConflict, message, err)
	case errors.Is(err, service.ErrInvalidNetwork),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, simulation.ErrNotEnoughSpawnPoints),
		errors.Is(err, navigation.ErrUnknownNode),
		errors.Is(err, navigation.ErrRouteNotFound):
		response.BadRequest(c, message, err)
	default:
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}
