// Package http 品种状态管理接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/status/application"
	"github.com/wyfcoding/goldtrading/internal/status/domain"
	"github.com/wyfcoding/goldtrading/pkg/middleware"
)

type Handler struct {
	service *application.StatusService
}

func NewHandler(service *application.StatusService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/admin/status")
	{
		g.GET("", h.GetAll)
		g.GET("/:instrument", h.Get)
		g.PUT("/:instrument", middleware.Identity(), middleware.RequireAdmin(), h.Set)
	}
}

// GetAll 返回全部品种状态
func (h *Handler) GetAll(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetAll(c.Request.Context()))
}

// Get 返回单品种状态
func (h *Handler) Get(c *gin.Context) {
	inst, ok := marketdomain.ParseInstrument(c.Param("instrument"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown instrument: " + c.Param("instrument")})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"goldType": inst,
		"status":   h.service.Get(c.Request.Context(), inst),
	})
}

type SetStatusReq struct {
	Status domain.State `json:"status" binding:"required"`
}

// Set 更新品种状态。返回 200 时状态已持久化且行情缓存已联动。
func (h *Handler) Set(c *gin.Context) {
	inst, ok := marketdomain.ParseInstrument(c.Param("instrument"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown instrument: " + c.Param("instrument")})
		return
	}
	var req SetStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be ONLINE, PAUSE or STOP"})
		return
	}

	if err := h.service.Set(c.Request.Context(), inst, req.Status); err != nil {
		if errors.Is(err, marketdomain.ErrUnknownInstrument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goldType": inst, "status": req.Status})
}
