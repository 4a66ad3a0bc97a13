// Package middleware 提供 Gin 通用中间件（日志、trace、panic recover、身份提取）
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wyfcoding/goldtrading/pkg/logger"
	"github.com/wyfcoding/goldtrading/pkg/metrics"
)

// RequestIDKey context key for request ID
const RequestIDKey = "request_id"

// TraceIDKey context key for trace ID
const TraceIDKey = "trace_id"

// UserIDKey context key for the authenticated user ID
const UserIDKey = "user_id"

// UserRoleKey context key for the authenticated user role
const UserRoleKey = "user_role"

// Logging Gin 日志中间件，注入 request_id / trace_id
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Set(TraceIDKey, traceID)

		ctx := logger.ContextWith(c.Request.Context(), TraceIDKey, traceID)
		ctx = logger.ContextWith(ctx, RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info(ctx, "HTTP request completed",
			"method", method,
			"path", path,
			"status_code", statusCode,
			"duration", duration,
			"client_ip", c.ClientIP(),
		)
	}
}

// Recovery panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "HTTP handler panic",
					"path", c.Request.URL.Path,
					"panic", r,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// Metrics HTTP 指标中间件
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Identity 身份提取中间件。鉴权由网关完成，这里只信任并提取身份头。
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Set(UserRoleKey, c.GetHeader("X-User-Role"))
		c.Next()
	}
}

// RequireAdmin 管理员角色校验中间件，需在 Identity 之后使用
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(UserRoleKey) != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}
