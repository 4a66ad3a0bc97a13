// Package application 品种状态服务：内存缓存 + 持久化 + 同步订阅通知
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/status/domain"
	"github.com/wyfcoding/goldtrading/pkg/logger"
)

// PriceOverrider 行情缓存的状态联动接口，由行情服务实现
type PriceOverrider interface {
	// ForceStop 立即把品种报价归零并重新发布
	ForceStop(ctx context.Context, inst marketdomain.Instrument)
	// Rebroadcast 把当前快照重新推给订阅者
	Rebroadcast(ctx context.Context)
}

// EventPublisher 事件发布抽象（Kafka）
type EventPublisher interface {
	SendMessage(ctx context.Context, topic string, key string, value interface{}) error
}

// StatusServiceOptions 可选依赖
type StatusServiceOptions struct {
	// Events 事件发布器，可为 nil
	Events EventPublisher
	// StatusTopic 状态变更事件主题
	StatusTopic string
}

// StatusService 品种交易状态服务。
// Set 在返回前完成持久化、行情缓存联动与订阅者通知，调用方确认成功后
// 读到的一定是新状态，不存在“响应已回但状态还没生效”的窗口。
type StatusService struct {
	repo domain.Repository
	opts StatusServiceOptions

	mu        sync.RWMutex
	states    map[marketdomain.Instrument]domain.State
	updatedAt map[marketdomain.Instrument]time.Time
	subs      map[int64]func(domain.Event)
	nextID    int64

	overrider PriceOverrider
}

// NewStatusService 创建状态服务
func NewStatusService(repo domain.Repository, opts StatusServiceOptions) *StatusService {
	return &StatusService{
		repo:      repo,
		opts:      opts,
		states:    make(map[marketdomain.Instrument]domain.State),
		updatedAt: make(map[marketdomain.Instrument]time.Time),
		subs:      make(map[int64]func(domain.Event)),
	}
}

// BindPriceCache 绑定行情缓存联动。启动期装配一次，之后只读。
func (s *StatusService) BindPriceCache(overrider PriceOverrider) {
	s.overrider = overrider
}

// Init 从存储加载状态，并为缺失的品种补 ONLINE 行
func (s *StatusService) Init(ctx context.Context) error {
	records, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load instrument statuses: %w", err)
	}

	s.mu.Lock()
	for _, record := range records {
		inst, ok := marketdomain.ParseInstrument(record.Instrument)
		if !ok {
			logger.Warn(ctx, "Skipping unknown instrument status row", "instrument", record.Instrument)
			continue
		}
		s.states[inst] = domain.State(record.State)
		s.updatedAt[inst] = record.UpdatedAt
	}
	missing := make([]marketdomain.Instrument, 0)
	for _, inst := range marketdomain.AllInstruments() {
		if _, ok := s.states[inst]; !ok {
			missing = append(missing, inst)
		}
	}
	s.mu.Unlock()

	for _, inst := range missing {
		if err := s.repo.Upsert(ctx, inst, domain.StateOnline); err != nil {
			return fmt.Errorf("seed status for %s: %w", inst, err)
		}
		s.mu.Lock()
		s.states[inst] = domain.StateOnline
		s.updatedAt[inst] = time.Now()
		s.mu.Unlock()
		logger.Info(ctx, "Seeded instrument status", "instrument", inst, "state", domain.StateOnline)
	}
	return nil
}

// Get 查询品种状态，缺失时默认 ONLINE
func (s *StatusService) Get(ctx context.Context, inst marketdomain.Instrument) domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[inst]; ok {
		return state
	}
	return domain.StateOnline
}

// GetAll 返回全部品种状态
func (s *StatusService) GetAll(ctx context.Context) []*domain.InstrumentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.InstrumentStatus, 0, len(marketdomain.AllInstruments()))
	for _, inst := range marketdomain.AllInstruments() {
		state, ok := s.states[inst]
		if !ok {
			state = domain.StateOnline
		}
		record := &domain.InstrumentStatus{
			Instrument: string(inst),
			State:      string(state),
		}
		record.UpdatedAt = s.updatedAt[inst]
		out = append(out, record)
	}
	return out
}

// States 返回状态表的副本，供行情刷新周期合并
func (s *StatusService) States(ctx context.Context) map[marketdomain.Instrument]domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[marketdomain.Instrument]domain.State, len(s.states))
	for inst, state := range s.states {
		out[inst] = state
	}
	return out
}

// Set 更新品种状态：持久化 → 更新缓存 → 行情联动 → 同步通知订阅者。
// 全部完成后才返回。
func (s *StatusService) Set(ctx context.Context, inst marketdomain.Instrument, state domain.State) error {
	if !inst.Valid() {
		return marketdomain.ErrUnknownInstrument
	}
	if !state.Valid() {
		return fmt.Errorf("invalid state %q", state)
	}

	if err := s.repo.Upsert(ctx, inst, state); err != nil {
		return fmt.Errorf("persist status for %s: %w", inst, err)
	}

	s.mu.Lock()
	s.states[inst] = state
	s.updatedAt[inst] = time.Now()
	callbacks := make([]func(domain.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	// 行情缓存联动：停牌立即归零；其余状态把当前快照重推一次
	if s.overrider != nil {
		if state == domain.StateStop {
			s.overrider.ForceStop(ctx, inst)
		} else {
			s.overrider.Rebroadcast(ctx)
		}
	}

	event := domain.Event{Instrument: inst, State: state}
	for _, fn := range callbacks {
		fn(event)
	}

	if s.opts.Events != nil && s.opts.StatusTopic != "" {
		if err := s.opts.Events.SendMessage(ctx, s.opts.StatusTopic, string(inst), event); err != nil {
			logger.Warn(ctx, "Failed to publish status event", "instrument", inst, "error", err)
		}
	}

	logger.Info(ctx, "Instrument status updated", "instrument", inst, "state", state)
	return nil
}

// Subscribe 订阅状态变更。注册后立即回放每个已知品种的当前状态，
// 新连接不会有“开局盲区”。返回的函数用于退订。
func (s *StatusService) Subscribe(fn func(domain.Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	replay := make([]domain.Event, 0, len(marketdomain.AllInstruments()))
	for _, inst := range marketdomain.AllInstruments() {
		state, ok := s.states[inst]
		if !ok {
			state = domain.StateOnline
		}
		replay = append(replay, domain.Event{Instrument: inst, State: state})
	}
	s.mu.Unlock()

	for _, event := range replay {
		fn(event)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
