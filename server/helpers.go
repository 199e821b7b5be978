package server

import (
	"net/http"
	"strconv"
	"time"

	"uptime-status/config"
	"uptime-status/model"
	apperrors "uptime-status/pkg/errors"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/socket"
)

// renderError 将错误转换为 JSON 响应
func renderError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
		"kind":  appErr.Kind.String(),
	}
	if appErr.Kind == apperrors.KindRateLimited {
		body["resetIn"] = appErr.ResetIn.Milliseconds()
		c.Header("Retry-After", strconv.Itoa(int((appErr.ResetIn+time.Second-1)/time.Second)))
	}
	c.JSON(appErr.StatusCode, body)
}

func errorPayload(err error) map[string]any {
	appErr := apperrors.As(err)
	out := map[string]any{
		"error": appErr.Message,
		"kind":  appErr.Kind.String(),
	}
	if appErr.Kind == apperrors.KindRateLimited {
		out["resetIn"] = appErr.ResetIn.Milliseconds()
	}
	return out
}

// relative renders t against now, e.g. "2 minutes ago".
func relative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func countdownPayload(remaining time.Duration) map[string]any {
	return map[string]any{
		"remaining": int64(remaining / time.Second),
	}
}

// broadcastMonitorList 广播监控列表给所有客户端
func (s *Server) broadcastMonitorList(entry model.CacheEntry) {
	s.socketServer.To(publicRoom).Emit("monitorList", s.monitorListPayload(&entry))
}

// sendMonitorList 发送监控列表给单个客户端
func (s *Server) sendMonitorList(client *socket.Socket) {
	entry := s.service.Cached()
	if entry == nil {
		client.Emit("monitorList", s.monitorListPayload(&model.CacheEntry{Monitors: []model.MonitorSnapshot{}}))
		return
	}
	client.Emit("monitorList", s.monitorListPayload(entry))
}

func (s *Server) monitorListPayload(entry *model.CacheEntry) map[string]any {
	return map[string]any{
		"monitors":   entry.Monitors,
		"fetchedAt":  entry.FetchedAt,
		"updatedAgo": relative(entry.FetchedAt, s.now()),
	}
}

type groupStats struct {
	Total   int `json:"total"`
	Up      int `json:"up"`
	Down    int `json:"down"`
	Paused  int `json:"paused"`
	Unknown int `json:"unknown"`
}

type groupView struct {
	config.MonitorGroup
	Stats  groupStats          `json:"stats"`
	Status model.MonitorStatus `json:"status"`
}

// groupMonitors 按分组统计监控状态，返回分组视图和未分组的监控 ID
func groupMonitors(groups []config.MonitorGroup, monitors []model.MonitorSnapshot) ([]groupView, []int) {
	byID := make(map[int]model.MonitorSnapshot, len(monitors))
	for _, m := range monitors {
		byID[m.ID] = m
	}

	grouped := make(map[int]struct{})
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		v := groupView{MonitorGroup: g}
		if v.Monitors == nil {
			v.Monitors = []int{}
		}
		for _, id := range g.Monitors {
			grouped[id] = struct{}{}
			m, ok := byID[id]
			if !ok {
				continue
			}
			v.Stats.Total++
			switch m.Status {
			case model.StatusUp:
				v.Stats.Up++
			case model.StatusDown:
				v.Stats.Down++
			case model.StatusPaused:
				v.Stats.Paused++
			default:
				v.Stats.Unknown++
			}
		}
		v.Status = groupStatus(v.Stats)
		views = append(views, v)
	}

	ungrouped := []int{}
	for _, m := range monitors {
		if _, ok := grouped[m.ID]; !ok {
			ungrouped = append(ungrouped, m.ID)
		}
	}
	return views, ungrouped
}

// 任一宕机即为 down，全部暂停为 paused
func groupStatus(st groupStats) model.MonitorStatus {
	switch {
	case st.Total == 0:
		return model.StatusUnknown
	case st.Down > 0:
		return model.StatusDown
	case st.Paused == st.Total:
		return model.StatusPaused
	default:
		return model.StatusUp
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
}
