package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"uptime-status/model"
	"uptime-status/monitor"
	apperrors "uptime-status/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/socket"
	"go.uber.org/zap"
)

type monitorsResponse struct {
	*monitor.Result
	UpdatedAgo    string `json:"updatedAgo,omitempty"`
	NextRefreshIn *int64 `json:"nextRefreshIn,omitempty"`
}

func parseForce(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// getMonitorsAPI 返回监控列表，force=true 时绕过缓存和限流
func (s *Server) getMonitorsAPI(c *gin.Context) {
	res, err := s.service.Fetch(c.Request.Context(), parseForce(c.Query("force")))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.monitorsResponse(res))
}

func (s *Server) monitorsResponse(res *monitor.Result) monitorsResponse {
	out := monitorsResponse{
		Result:     res,
		UpdatedAgo: relative(res.FetchedAt, s.now()),
	}
	if s.countdown != nil && s.countdown.Running() {
		secs := int64(s.countdown.Remaining().Seconds())
		out.NextRefreshIn = &secs
	}
	return out
}

// getMonitorAPI 返回单个监控，缓存为空时先做一次非强制刷新
func (s *Server) getMonitorAPI(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		renderError(c, apperrors.BadRequest("Invalid monitor id"))
		return
	}

	m, ok := s.service.Monitor(id)
	if !ok && s.service.Cached() == nil {
		if _, err := s.service.Fetch(c.Request.Context(), false); err != nil {
			renderError(c, err)
			return
		}
		m, ok = s.service.Monitor(id)
	}
	if !ok {
		renderError(c, apperrors.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) getQuotaAPI(c *gin.Context) {
	q := s.service.CheckQuota(c.Request.Context())
	body := gin.H{
		"remaining": q.Remaining,
		"total":     q.Total,
		"isLimited": q.IsLimited,
		"resetIn":   q.ResetIn,
	}
	if q.Notice != nil {
		body["notice"] = q.Notice
		body["noticeAge"] = relative(q.Notice.Timestamp, s.now())
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) getGroupsAPI(c *gin.Context) {
	var monitors []model.MonitorSnapshot
	if entry := s.service.Cached(); entry != nil {
		monitors = entry.Monitors
	}
	views, ungrouped := groupMonitors(s.cfg.Groups, monitors)
	c.JSON(http.StatusOK, gin.H{
		"groups":    views,
		"ungrouped": ungrouped,
	})
}

// setupMonitorHandlers 设置监控相关的 Socket.IO 事件处理器
func (s *Server) setupMonitorHandlers(client *socket.Socket) {
	client.On("getMonitorList", func(args ...any) {
		s.sendMonitorList(client)
	})

	client.On("getMonitor", func(args ...any) {
		id, err := getArgAsInt(args, 0)
		if err != nil {
			client.Emit("error", map[string]any{"msg": "Invalid monitor id"})
			return
		}
		m, ok := s.service.Monitor(id)
		if !ok {
			client.Emit("error", map[string]any{"msg": "Monitor not found"})
			return
		}
		client.Emit("monitor", m)
	})

	client.On("getQuota", func(args ...any) {
		client.Emit("quota", s.service.CheckQuota(context.Background()))
	})

	client.On("getCountdown", func(args ...any) {
		if s.countdown == nil {
			return
		}
		client.Emit("countdown", countdownPayload(s.countdown.Remaining()))
	})

	// Handle "refresh": 可选参数 {force: bool}，最后一个参数可为 ack 回调
	client.On("refresh", func(args ...any) {
		force := false
		if opts, err := getArgAsMap(args, 0); err == nil {
			force = safeMapGetBool(opts, "force")
		}
		callback := getCallback(args)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Upstream.Timeout+s.cfg.Refresh.FakeRefreshDelay)
			defer cancel()

			res, err := s.service.Fetch(ctx, force)
			if err != nil {
				s.log.Warn("Socket refresh failed", zap.String("client", string(client.Id())), zap.Error(err))
				payload := errorPayload(err)
				client.Emit("refreshError", payload)
				if callback != nil {
					callback([]any{map[string]any{"ok": false, "error": payload}}, nil)
				}
				return
			}
			resp := s.monitorsResponse(res)
			client.Emit("monitorList", resp)
			if callback != nil {
				callback([]any{map[string]any{"ok": true, "fakeRefresh": res.FakeRefresh, "fromCache": res.FromCache}}, nil)
			}
		}()
	})
}
