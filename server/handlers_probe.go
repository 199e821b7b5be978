package server

import (
	"fmt"
	"net/http"

	"uptime-status/monitor"
	apperrors "uptime-status/pkg/errors"

	"github.com/gin-gonic/gin"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// maxCustomTargets 单次请求最多检测的目标数
const maxCustomTargets = 20

type probeRequest struct {
	Monitors []monitor.ProbeTarget `json:"monitors"`
}

// customMonitorAPI 批量检测自定义目标的响应时间
func (s *Server) customMonitorAPI(c *gin.Context) {
	var req probeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Monitors == nil {
		renderError(c, apperrors.BadRequest("Invalid request body: monitors array is required"))
		return
	}
	if len(req.Monitors) > maxCustomTargets {
		renderError(c, apperrors.BadRequest(fmt.Sprintf("Too many monitors: at most %d per request", maxCustomTargets)))
		return
	}

	results := s.service.Probe(c.Request.Context(), req.Monitors)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"timestamp": s.now().UTC().Format(isoMillis),
		"results":   results,
	})
}

func (s *Server) customMonitorHealthAPI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "custom-monitor",
		"timestamp": s.now().UTC().Format(isoMillis),
	})
}
