// Package application 行情服务的应用层：权威快照缓存、刷新循环与订阅分发
package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	statusdomain "github.com/wyfcoding/goldtrading/internal/status/domain"
	"github.com/wyfcoding/goldtrading/pkg/logger"
	"github.com/wyfcoding/goldtrading/pkg/metrics"
)

// FeedSource 行情源抽象，由 infrastructure/feed 实现
type FeedSource interface {
	Fetch(ctx context.Context, inst domain.Instrument, window domain.Window) (domain.PriceQuote, error)
}

// StatusProvider 品种状态读取抽象，由 status 应用层实现。读取内存缓存，不会失败。
type StatusProvider interface {
	States(ctx context.Context) map[domain.Instrument]statusdomain.State
}

// SnapshotMirror 最新快照的外部镜像（Redis），供其他进程轮询
type SnapshotMirror interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// EventPublisher 事件发布抽象（Kafka）
type EventPublisher interface {
	SendMessage(ctx context.Context, topic string, key string, value interface{}) error
}

// mirrorKey 最新快照在 Redis 中的键
const mirrorKey = "goldtrading:prices:latest"

// DefaultSubscriberBuffer 订阅者默认缓冲大小
const DefaultSubscriberBuffer = 8

// PriceServiceOptions 可选依赖
type PriceServiceOptions struct {
	// Mirror 最新快照镜像，可为 nil
	Mirror SnapshotMirror
	// Events 事件发布器，可为 nil
	Events EventPublisher
	// PriceTopic 快照事件主题
	PriceTopic string
	// Metrics 指标，可为 nil
	Metrics *metrics.Metrics
	// Interval 刷新间隔，零值取 60s
	Interval time.Duration
	// FetchTimeout 单品种抓取超时，零值取 10s
	FetchTimeout time.Duration
}

// PriceService 权威行情缓存与广播器。
// 快照为写时复制：先构建完整新快照，再原子换指针，读取方永远看不到半成品。
type PriceService struct {
	feed     FeedSource
	statuses StatusProvider
	history  domain.HistoryRepository
	opts     PriceServiceOptions

	snapshot   atomic.Pointer[domain.Snapshot]
	refreshing atomic.Bool

	// storeMu 串行化快照换入：状态读取、合并与 Store 必须原子，
	// 否则刷新周期可能拿旧状态覆盖刚刚停牌归零的报价
	storeMu sync.Mutex

	mu     sync.Mutex
	subs   map[int64]chan *domain.Snapshot
	nextID int64
}

// NewPriceService 创建行情服务
func NewPriceService(feed FeedSource, statuses StatusProvider, history domain.HistoryRepository, opts PriceServiceOptions) *PriceService {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &PriceService{
		feed:     feed,
		statuses: statuses,
		history:  history,
		opts:     opts,
		subs:     make(map[int64]chan *domain.Snapshot),
	}
}

// Start 启动刷新循环，ctx 取消后退出。首轮刷新异步执行，不阻塞启动。
func (s *PriceService) Start(ctx context.Context) {
	go func() {
		if err := s.RefreshOnce(ctx); err != nil {
			logger.Warn(ctx, "Initial price refresh failed", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RefreshOnce(ctx); err != nil {
					logger.Warn(ctx, "Price refresh failed", "error", err)
				}
			}
		}
	}()
}

// RefreshOnce 执行一个刷新周期。single-flight：上一轮未结束时本轮直接跳过。
func (s *PriceService) RefreshOnce(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		logger.Debug(ctx, "Price refresh still in progress, tick skipped")
		if s.opts.Metrics != nil {
			s.opts.Metrics.PriceRefreshTotal.WithLabelValues("skipped").Inc()
		}
		return nil
	}
	defer s.refreshing.Store(false)

	start := time.Now()
	now := start
	window := domain.DefaultWindow(now)

	// 并行抓取全部品种；单品种失败只影响自己
	fetched := s.fetchAll(ctx, window)

	s.storeMu.Lock()
	states := s.statuses.States(ctx)
	prev := s.snapshot.Load()

	next := &domain.Snapshot{
		Timestamp: now,
		Quotes:    make(map[domain.Instrument]domain.PriceQuote, len(fetched)),
	}

	for _, inst := range domain.AllInstruments() {
		state, ok := states[inst]
		if !ok {
			state = statusdomain.StateOnline
		}

		switch state {
		case statusdomain.StateStop:
			// 停牌每轮都重新断言零价
			next.Quotes[inst] = domain.ZeroQuote(now)
		case statusdomain.StatePause:
			// 暂停冻结在进入暂停时的值
			if prevQuote, has := prev.Quote(inst); has {
				next.Quotes[inst] = prevQuote
			}
		default:
			if quote, has := fetched[inst]; has {
				next.Quotes[inst] = quote
			} else if prevQuote, has := prev.Quote(inst); has {
				// 本轮抓取失败，保留上一轮的值
				next.Quotes[inst] = prevQuote
			}
		}
	}

	s.snapshot.Store(next)
	s.storeMu.Unlock()

	if s.history != nil {
		if err := s.history.AppendSnapshot(ctx, next); err != nil {
			logger.Error(ctx, "Failed to append price history", "error", err)
		}
	}

	s.publish(ctx, next)

	if s.opts.Metrics != nil {
		s.opts.Metrics.PriceRefreshTotal.WithLabelValues("ok").Inc()
		s.opts.Metrics.PriceRefreshDuration.Observe(time.Since(start).Seconds())
	}
	logger.Info(ctx, "Price snapshot refreshed",
		"instruments", len(next.Quotes),
		"duration", time.Since(start),
	)
	return nil
}

// fetchAll 并行抓取全部品种，汇合各自结果。失败的品种不出现在结果里。
func (s *PriceService) fetchAll(ctx context.Context, window domain.Window) map[domain.Instrument]domain.PriceQuote {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		fetched = make(map[domain.Instrument]domain.PriceQuote)
	)

	for _, inst := range domain.AllInstruments() {
		wg.Add(1)
		go func(inst domain.Instrument) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
			defer cancel()

			quote, err := s.feed.Fetch(fetchCtx, inst, window)
			if err != nil {
				logger.Warn(ctx, "Feed fetch failed", "instrument", inst, "error", err)
				if s.opts.Metrics != nil {
					s.opts.Metrics.FeedErrorsTotal.WithLabelValues(string(inst)).Inc()
				}
				return
			}

			mu.Lock()
			fetched[inst] = quote
			mu.Unlock()
		}(inst)
	}

	wg.Wait()
	return fetched
}

// Latest 非阻塞读取最新快照。第二个返回值区分“尚无快照”和“空快照”。
func (s *PriceService) Latest() (*domain.Snapshot, bool) {
	snap := s.snapshot.Load()
	return snap, snap != nil
}

// Subscribe 订阅快照更新。每个订阅者有独立有界缓冲，慢消费者只丢自己的消息。
// 若已有快照，订阅时立即投递一份，新连接不必等下一轮刷新。
func (s *PriceService) Subscribe(buffer int) (<-chan *domain.Snapshot, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan *domain.Snapshot, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.SubscribersActive.Inc()
	}

	if snap := s.snapshot.Load(); snap != nil {
		select {
		case ch <- snap:
		default:
		}
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
			if s.opts.Metrics != nil {
				s.opts.Metrics.SubscribersActive.Dec()
			}
		})
	}
	return ch, unsubscribe
}

// ForceStop 停牌立即生效：不等下一轮刷新，马上把该品种报价归零并重新发布。
// 由状态服务在 Set 返回前同步调用。
func (s *PriceService) ForceStop(ctx context.Context, inst domain.Instrument) {
	now := time.Now()
	zero := domain.ZeroQuote(now)

	s.storeMu.Lock()
	prev := s.snapshot.Load()
	var next *domain.Snapshot
	if prev == nil {
		next = &domain.Snapshot{
			Timestamp: now,
			Quotes:    map[domain.Instrument]domain.PriceQuote{inst: zero},
		}
	} else {
		next = prev.Clone()
		next.Timestamp = now
		next.Quotes[inst] = zero
	}
	s.snapshot.Store(next)
	s.storeMu.Unlock()

	if s.history != nil {
		if err := s.history.Append(ctx, inst, zero); err != nil {
			logger.Error(ctx, "Failed to append stop record", "instrument", inst, "error", err)
		}
	}

	s.publish(ctx, next)
	logger.Info(ctx, "Instrument price forced to zero", "instrument", inst)
}

// Rebroadcast 把当前快照重新推给所有订阅者（状态变更后的即时通知）
func (s *PriceService) Rebroadcast(ctx context.Context) {
	if snap := s.snapshot.Load(); snap != nil {
		s.publish(ctx, snap)
	}
}

// publish 镜像、投递事件并广播给进程内订阅者。广播为非阻塞投递，满了即丢。
func (s *PriceService) publish(ctx context.Context, snap *domain.Snapshot) {
	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.SetJSON(ctx, mirrorKey, SnapshotDTO(snap), 0); err != nil {
			logger.Warn(ctx, "Failed to mirror snapshot", "error", err)
		}
	}
	if s.opts.Events != nil && s.opts.PriceTopic != "" {
		if err := s.opts.Events.SendMessage(ctx, s.opts.PriceTopic, snap.Timestamp.Format(time.RFC3339), SnapshotDTO(snap)); err != nil {
			logger.Warn(ctx, "Failed to publish snapshot event", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			if s.opts.Metrics != nil {
				s.opts.Metrics.BroadcastDropsTotal.Inc()
			}
		}
	}
}
