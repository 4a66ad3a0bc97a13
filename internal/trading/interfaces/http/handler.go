// Package http 交易接口：下单、批量成交、流水与钱包
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/trading/application"
	"github.com/wyfcoding/goldtrading/internal/trading/domain"
	"github.com/wyfcoding/goldtrading/pkg/middleware"
)

type Handler struct {
	trades  *application.TradeService
	wallets *application.WalletService
}

func NewHandler(trades *application.TradeService, wallets *application.WalletService) *Handler {
	return &Handler{trades: trades, wallets: wallets}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/trading", middleware.Identity())
	{
		g.POST("/execute", h.Execute)
		g.POST("/execute-bulk", h.ExecuteBulk)
		g.GET("/history", h.History)
	}
	w := r.Group("/wallet", middleware.Identity())
	{
		w.GET("", h.GetWallet)
		w.POST("/deposit", h.Deposit)
		w.POST("/withdraw", h.Withdraw)
		w.POST("/exchange", h.Exchange)
	}
}

// statusFor 业务错误到 HTTP 状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTradingHalted), errors.Is(err, domain.ErrTradingPaused):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPriceUnavailable), errors.Is(err, domain.ErrExchangeRateUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// Execute 下单
func (h *Handler) Execute(c *gin.Context) {
	var req application.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.UserID = c.GetString(middleware.UserIDKey)

	txn, err := h.trades.Execute(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

type BulkReq struct {
	Trades []application.BulkTradeItem `json:"trades" binding:"required"`
}

// ExecuteBulk 批量成交落档（跳过非法条目，不触碰钱包）
func (h *Handler) ExecuteBulk(c *gin.Context) {
	var req BulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txns, err := h.trades.ExecuteBulk(c.Request.Context(), c.GetString(middleware.UserIDKey), req.Trades)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(txns), "transactions": txns})
}

// History 查询成交流水
func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := h.trades.History(c.Request.Context(), c.GetString(middleware.UserIDKey), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(txns), "transactions": txns})
}

// GetWallet 查询钱包与持仓
func (h *Handler) GetWallet(c *gin.Context) {
	view, err := h.wallets.Get(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type AmountReq struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

// Deposit 充值
func (h *Handler) Deposit(c *gin.Context) {
	var req AmountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.wallets.Deposit(c.Request.Context(), c.GetString(middleware.UserIDKey),
		marketdomain.Currency(req.Currency), req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Withdraw 提现
func (h *Handler) Withdraw(c *gin.Context) {
	var req AmountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.wallets.Withdraw(c.Request.Context(), c.GetString(middleware.UserIDKey),
		marketdomain.Currency(req.Currency), req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type ExchangeReq struct {
	From   string          `json:"from" binding:"required"`
	To     string          `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Exchange 双币互换
func (h *Handler) Exchange(c *gin.Context) {
	var req ExchangeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.wallets.Exchange(c.Request.Context(), c.GetString(middleware.UserIDKey),
		marketdomain.Currency(req.From), marketdomain.Currency(req.To), req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
