// Package http 行情服务接口：当前快照、历史、图表代理与 SSE 推送
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/goldtrading/internal/marketdata/application"
	"github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/marketdata/infrastructure/feed"
	"github.com/wyfcoding/goldtrading/pkg/logger"
)

// keepaliveInterval SSE 心跳间隔
const keepaliveInterval = 15 * time.Second

type Handler struct {
	prices  *application.PriceService
	history domain.HistoryRepository
	charts  *feed.Client
}

func NewHandler(prices *application.PriceService, history domain.HistoryRepository, charts *feed.Client) *Handler {
	return &Handler{prices: prices, history: history, charts: charts}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/prices")
	{
		g.GET("/current", h.Current)
		g.GET("/stream", h.Stream)
		g.GET("/history", h.History)
		g.GET("/history/:instrument", h.HistoryByInstrument)
		g.GET("/chart/:symbol", h.Chart)
	}
}

// Current 返回当前快照；启动后首轮刷新未完成时返回 204
func (h *Handler) Current(c *gin.Context) {
	snap, ok := h.prices.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	if c.Query("format") == "list" {
		c.JSON(http.StatusOK, application.SnapshotList(snap))
		return
	}
	c.JSON(http.StatusOK, application.SnapshotDTO(snap))
}

// Stream SSE 推送。连接即收到当前快照，之后每次刷新推一条，
// 空闲时每 15 秒发一条心跳注释行防止中间层断连。
func (h *Handler) Stream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := h.prices.Subscribe(application.DefaultSubscriberBuffer)
	defer unsubscribe()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(application.SnapshotDTO(snap))
			if err != nil {
				logger.Error(ctx, "Failed to encode snapshot event", "error", err)
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func parseTimeParam(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return t, nil
}

// History 按时间窗查询全品种历史
func (h *Handler) History(c *gin.Context) {
	now := time.Now()
	from, err := parseTimeParam(c, "from", now.Add(-24*time.Hour))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := parseTimeParam(c, "to", now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))

	records, err := h.history.ListSnapshots(c.Request.Context(), from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

// HistoryByInstrument 按品种查询历史
func (h *Handler) HistoryByInstrument(c *gin.Context) {
	inst, ok := domain.ParseInstrument(c.Param("instrument"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown instrument: " + c.Param("instrument")})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))

	records, err := h.history.ListByInstrument(c.Request.Context(), inst, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goldType": inst, "count": len(records), "records": records})
}

// Chart 图表数据代理，供前端 K 线直连
func (h *Handler) Chart(c *gin.Context) {
	symbol := c.Param("symbol")
	now := time.Now()
	window := domain.DefaultWindow(now)
	from, err := parseTimeParam(c, "from", window.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := parseTimeParam(c, "to", window.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	window.From, window.To = from, to
	if resolution, err := strconv.Atoi(c.Query("resolution")); err == nil && resolution > 0 {
		window.Resolution = resolution
	}

	data, err := h.charts.FetchChart(c.Request.Context(), symbol, window)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}
