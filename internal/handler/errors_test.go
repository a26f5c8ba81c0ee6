package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/navigation"
	"github.com/jengzang/roadsim-backend-go/internal/service"
	"github.com/jengzang/roadsim-backend-go/internal/simulation"
)

func TestFail_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{service.ErrRunNotFound, http.StatusNotFound},
		{fmt.Errorf("network 3: %w", service.ErrNetworkNotFound), http.StatusNotFound},
		{service.ErrJobNotFound, http.StatusNotFound},
		{service.ErrJobNotActive, http.StatusConflict},
		{service.ErrInvalidNetwork, http.StatusBadRequest},
		{fmt.Errorf("%w: dt", config.ErrInvalid), http.StatusBadRequest},
		{simulation.ErrNotEnoughSpawnPoints, http.StatusBadRequest},
		{errors.Join(fmt.Errorf("v: %w", navigation.ErrUnknownNode)), http.StatusBadRequest},
		{navigation.ErrRouteNotFound, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		fail(c, "failed", tc.err)
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), tc.err.Error())
	}
}
