package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/goldtrading/internal/exchangerate"
	marketapp "github.com/wyfcoding/goldtrading/internal/marketdata/application"
	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/marketdata/infrastructure/feed"
	marketmysql "github.com/wyfcoding/goldtrading/internal/marketdata/infrastructure/persistence/mysql"
	markethttp "github.com/wyfcoding/goldtrading/internal/marketdata/interfaces/http"
	statusapp "github.com/wyfcoding/goldtrading/internal/status/application"
	statusdomain "github.com/wyfcoding/goldtrading/internal/status/domain"
	statusmysql "github.com/wyfcoding/goldtrading/internal/status/infrastructure/persistence/mysql"
	statushttp "github.com/wyfcoding/goldtrading/internal/status/interfaces/http"
	"github.com/wyfcoding/goldtrading/internal/stream"
	tradingapp "github.com/wyfcoding/goldtrading/internal/trading/application"
	tradingdomain "github.com/wyfcoding/goldtrading/internal/trading/domain"
	tradingmysql "github.com/wyfcoding/goldtrading/internal/trading/infrastructure/persistence/mysql"
	tradinghttp "github.com/wyfcoding/goldtrading/internal/trading/interfaces/http"
	"github.com/wyfcoding/goldtrading/pkg/cache"
	"github.com/wyfcoding/goldtrading/pkg/config"
	"github.com/wyfcoding/goldtrading/pkg/db"
	"github.com/wyfcoding/goldtrading/pkg/logger"
	"github.com/wyfcoding/goldtrading/pkg/metrics"
	"github.com/wyfcoding/goldtrading/pkg/middleware"
	"github.com/wyfcoding/goldtrading/pkg/mq"
)

var configPath = flag.String("config", "configs/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 日志
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	ctx := context.Background()

	// 3. 指标
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.ExposeHTTP(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				logger.Error(ctx, "Metrics server exited", "error", err)
			}
		}()
	}

	// 4. 基础设施
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect database", "error", err)
	}
	defer database.Close()

	// Auto migrate（仅开发环境）
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&marketdomain.PriceHistoryRecord{},
			&statusdomain.InstrumentStatus{},
			&tradingdomain.Wallet{},
			&tradingdomain.WalletHolding{},
			&tradingdomain.Transaction{},
		); err != nil {
			logger.Error(ctx, "Auto migrate failed", "error", err)
		}
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to init redis", "error", err)
		}
		defer redisCache.Close()
	}

	var producer *mq.KafkaProducer
	if cfg.Kafka.Enabled {
		producer, err = mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to init kafka producer", "error", err)
		}
		defer producer.Close()
	}

	// 5. 仓储
	historyRepo := marketmysql.NewHistoryRepository(database.DB)
	statusRepo := statusmysql.NewStatusRepository(database.DB)
	walletRepo := tradingmysql.NewWalletRepository(database.DB)
	txnRepo := tradingmysql.NewTransactionRepository(database.DB)

	// 6. 应用服务
	statusService := statusapp.NewStatusService(statusRepo, statusapp.StatusServiceOptions{
		Events:      nilIfDisabled(producer),
		StatusTopic: cfg.Kafka.StatusTopic,
	})
	if err := statusService.Init(ctx); err != nil {
		logger.Fatal(ctx, "Failed to init instrument statuses", "error", err)
	}

	feedClient := feed.NewClient(feed.Config{
		DealerURL:      cfg.Feed.DealerURL,
		ChartURL:       cfg.Feed.ChartURL,
		RequestTimeout: time.Duration(cfg.Feed.RequestTimeout) * time.Second,
	})

	priceOpts := marketapp.PriceServiceOptions{
		Events:       nilIfDisabled(producer),
		PriceTopic:   cfg.Kafka.PriceTopic,
		Metrics:      m,
		Interval:     time.Duration(cfg.Feed.RefreshInterval) * time.Second,
		FetchTimeout: time.Duration(cfg.Feed.RequestTimeout) * time.Second,
	}
	if redisCache != nil {
		priceOpts.Mirror = redisCache
	}
	priceService := marketapp.NewPriceService(feedClient, statusService, historyRepo, priceOpts)
	statusService.BindPriceCache(priceService)

	rateService := exchangerate.NewRateService(exchangerate.Config{
		URL:               cfg.ExchangeRate.URL,
		RefreshInterval:   time.Duration(cfg.ExchangeRate.RefreshInterval) * time.Second,
		RequestTimeout:    time.Duration(cfg.ExchangeRate.RequestTimeout) * time.Second,
		FallbackTHBPerUSD: cfg.ExchangeRate.FallbackTHBPerUSD,
	})

	tradeService := tradingapp.NewTradeService(database, walletRepo, txnRepo, priceService, statusService, rateService,
		tradingapp.TradeServiceOptions{
			Events:     nilIfDisabled(producer),
			TradeTopic: cfg.Kafka.TradeTopic,
			Metrics:    m,
		})
	walletService := tradingapp.NewWalletService(database, walletRepo, rateService)

	// 7. 后台循环
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	priceService.Start(runCtx)
	rateService.Start(runCtx)

	hub := stream.NewHub()
	go hub.Run(runCtx)
	hub.AttachPriceFeed(runCtx, priceService)
	unsubscribeStatus := hub.AttachStatusFeed(statusService.Subscribe)
	defer unsubscribeStatus()

	// 8. 接口层
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery(), middleware.Metrics(m))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})
	r.GET("/ws", hub.ServeWS)

	api := r.Group("/api/v1")
	markethttp.NewHandler(priceService, historyRepo, feedClient).RegisterRoutes(api)
	statushttp.NewHandler(statusService).RegisterRoutes(api)
	tradinghttp.NewHandler(tradeService, walletService).RegisterRoutes(api)

	api.GET("/exchange-rate", func(c *gin.Context) {
		c.JSON(http.StatusOK, rateService.GetRates())
	})

	// 9. 启动与优雅关闭
	g, gctx := errgroup.WithContext(runCtx)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g.Go(func() error {
		logger.Info(ctx, "HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			logger.Info(ctx, "Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
		}

		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
	}
	logger.Info(ctx, "Server stopped")
}

// nilIfDisabled 把可能为 nil 的具体类型转成接口，避免 nil 指针装进非 nil 接口
func nilIfDisabled(p *mq.KafkaProducer) marketapp.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
