package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	statusdomain "github.com/wyfcoding/goldtrading/internal/status/domain"
)

type fakeFeed struct {
	mu     sync.Mutex
	quotes map[domain.Instrument]domain.PriceQuote
	errs   map[domain.Instrument]error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		quotes: make(map[domain.Instrument]domain.PriceQuote),
		errs:   make(map[domain.Instrument]error),
	}
}

func (f *fakeFeed) set(inst domain.Instrument, buyIn, sellOut float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[inst] = domain.NewQuote(
		decimal.NewFromFloat(buyIn), decimal.NewFromFloat(sellOut),
		domain.SourceTradingView, time.Now())
	delete(f.errs, inst)
}

func (f *fakeFeed) fail(inst domain.Instrument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[inst] = domain.ErrFeedUnavailable
}

func (f *fakeFeed) Fetch(ctx context.Context, inst domain.Instrument, window domain.Window) (domain.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[inst]; ok {
		return domain.PriceQuote{}, err
	}
	if quote, ok := f.quotes[inst]; ok {
		return quote, nil
	}
	return domain.PriceQuote{}, domain.ErrFeedUnavailable
}

type fakeStatuses struct {
	mu     sync.Mutex
	states map[domain.Instrument]statusdomain.State
}

func newFakeStatuses() *fakeStatuses {
	return &fakeStatuses{states: make(map[domain.Instrument]statusdomain.State)}
}

func (f *fakeStatuses) set(inst domain.Instrument, state statusdomain.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[inst] = state
}

func (f *fakeStatuses) States(ctx context.Context) map[domain.Instrument]statusdomain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[domain.Instrument]statusdomain.State, len(f.states))
	for k, v := range f.states {
		out[k] = v
	}
	return out
}

type fakeHistory struct {
	mu        sync.Mutex
	snapshots int
	appends   []domain.Instrument
}

func (f *fakeHistory) AppendSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	return nil
}

func (f *fakeHistory) Append(ctx context.Context, inst domain.Instrument, quote domain.PriceQuote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends = append(f.appends, inst)
	return nil
}

func (f *fakeHistory) ListSnapshots(ctx context.Context, from, to time.Time, limit int) ([]*domain.PriceHistoryRecord, error) {
	return nil, nil
}

func (f *fakeHistory) ListByInstrument(ctx context.Context, inst domain.Instrument, limit int) ([]*domain.PriceHistoryRecord, error) {
	return nil, nil
}

func newTestService(feed *fakeFeed, statuses *fakeStatuses, history *fakeHistory) *PriceService {
	return NewPriceService(feed, statuses, history, PriceServiceOptions{})
}

func TestRefreshOncePopulatesSnapshot(t *testing.T) {
	feed := newFakeFeed()
	for _, inst := range domain.AllInstruments() {
		feed.set(inst, 2000, 2010)
	}
	svc := newTestService(feed, newFakeStatuses(), &fakeHistory{})

	_, ok := svc.Latest()
	assert.False(t, ok)

	require.NoError(t, svc.RefreshOnce(context.Background()))

	snap, ok := svc.Latest()
	require.True(t, ok)
	assert.Len(t, snap.Quotes, len(domain.AllInstruments()))

	quote, ok := snap.Quote(domain.Gold9999)
	require.True(t, ok)
	assert.True(t, quote.BuyIn.Equal(decimal.NewFromInt(2000)))
	assert.True(t, quote.SellOut.Equal(decimal.NewFromInt(2010)))
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(2010)))
}

func TestRefreshOnceStoppedInstrumentIsZeroed(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Gold9999, 2000, 2010)
	statuses := newFakeStatuses()
	statuses.set(domain.Gold9999, statusdomain.StateStop)
	svc := newTestService(feed, statuses, &fakeHistory{})

	require.NoError(t, svc.RefreshOnce(context.Background()))

	snap, _ := svc.Latest()
	quote, ok := snap.Quote(domain.Gold9999)
	require.True(t, ok)
	assert.True(t, quote.IsZero())
	assert.Equal(t, domain.SourceStopped, quote.Source)

	// 停牌期间每轮刷新都重新断言零价，行情源给价也不生效
	feed.set(domain.Gold9999, 3000, 3010)
	require.NoError(t, svc.RefreshOnce(context.Background()))
	snap, _ = svc.Latest()
	quote, _ = snap.Quote(domain.Gold9999)
	assert.True(t, quote.IsZero())
}

func TestRefreshOncePausedInstrumentIsFrozen(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Gold965, 31000, 31100)
	statuses := newFakeStatuses()
	svc := newTestService(feed, statuses, &fakeHistory{})

	require.NoError(t, svc.RefreshOnce(context.Background()))

	statuses.set(domain.Gold965, statusdomain.StatePause)
	feed.set(domain.Gold965, 99000, 99100)
	require.NoError(t, svc.RefreshOnce(context.Background()))

	snap, _ := svc.Latest()
	quote, ok := snap.Quote(domain.Gold965)
	require.True(t, ok)
	assert.True(t, quote.BuyIn.Equal(decimal.NewFromInt(31000)))
	assert.True(t, quote.SellOut.Equal(decimal.NewFromInt(31100)))
}

func TestRefreshOnceRetainsPreviousOnFeedFailure(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Spot, 2400, 2401)
	svc := newTestService(feed, newFakeStatuses(), &fakeHistory{})

	require.NoError(t, svc.RefreshOnce(context.Background()))

	feed.fail(domain.Spot)
	require.NoError(t, svc.RefreshOnce(context.Background()))

	snap, _ := svc.Latest()
	quote, ok := snap.Quote(domain.Spot)
	require.True(t, ok)
	assert.True(t, quote.BuyIn.Equal(decimal.NewFromInt(2400)))
}

func TestRefreshOnceSingleFlight(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Spot, 2400, 2401)
	svc := newTestService(feed, newFakeStatuses(), &fakeHistory{})

	svc.refreshing.Store(true)
	require.NoError(t, svc.RefreshOnce(context.Background()))

	_, ok := svc.Latest()
	assert.False(t, ok, "skipped refresh must not produce a snapshot")

	svc.refreshing.Store(false)
	require.NoError(t, svc.RefreshOnce(context.Background()))
	_, ok = svc.Latest()
	assert.True(t, ok)
}

func TestSubscribeReplaysCurrentSnapshot(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Spot, 2400, 2401)
	svc := newTestService(feed, newFakeStatuses(), &fakeHistory{})
	require.NoError(t, svc.RefreshOnce(context.Background()))

	ch, unsubscribe := svc.Subscribe(4)
	defer unsubscribe()

	select {
	case snap := <-ch:
		_, ok := snap.Quote(domain.Spot)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected immediate snapshot on subscribe")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	svc := newTestService(newFakeFeed(), newFakeStatuses(), &fakeHistory{})
	_, unsubscribe := svc.Subscribe(1)

	unsubscribe()
	assert.NotPanics(t, func() { unsubscribe() })

	// 退订后的刷新不应 panic（不会向已关闭通道发送）
	feed := newFakeFeed()
	feed.set(domain.Spot, 2400, 2401)
	svc2 := newTestService(feed, newFakeStatuses(), &fakeHistory{})
	_, unsub2 := svc2.Subscribe(1)
	unsub2()
	assert.NotPanics(t, func() {
		require.NoError(t, svc2.RefreshOnce(context.Background()))
	})
}

func TestSlowSubscriberDoesNotBlockRefresh(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Spot, 2400, 2401)
	svc := newTestService(feed, newFakeStatuses(), &fakeHistory{})

	// 缓冲 1 且无人消费；多轮刷新必须全部即时返回
	_, unsubscribe := svc.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = svc.RefreshOnce(context.Background())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("refresh blocked on slow subscriber")
	}
}

func TestForceStopTakesEffectImmediately(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Gold9999, 2000, 2010)
	history := &fakeHistory{}
	svc := newTestService(feed, newFakeStatuses(), history)
	require.NoError(t, svc.RefreshOnce(context.Background()))

	ch, unsubscribe := svc.Subscribe(4)
	defer unsubscribe()
	<-ch // 订阅即时回放

	svc.ForceStop(context.Background(), domain.Gold9999)

	snap, _ := svc.Latest()
	quote, ok := snap.Quote(domain.Gold9999)
	require.True(t, ok)
	assert.True(t, quote.IsZero())

	select {
	case pushed := <-ch:
		q, _ := pushed.Quote(domain.Gold9999)
		assert.True(t, q.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected push after force stop")
	}

	history.mu.Lock()
	defer history.mu.Unlock()
	assert.Equal(t, []domain.Instrument{domain.Gold9999}, history.appends)
}

func TestForceStopWithoutSnapshot(t *testing.T) {
	svc := newTestService(newFakeFeed(), newFakeStatuses(), &fakeHistory{})

	svc.ForceStop(context.Background(), domain.Gold965)

	snap, ok := svc.Latest()
	require.True(t, ok)
	quote, ok := snap.Quote(domain.Gold965)
	require.True(t, ok)
	assert.True(t, quote.IsZero())
}

// gatedStatuses 先取状态再停在门上，重现刷新周期拿着旧状态表
// 等待换入的时序。
type gatedStatuses struct {
	*fakeStatuses
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStatuses) States(ctx context.Context) map[domain.Instrument]statusdomain.State {
	out := g.fakeStatuses.States(ctx)
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return out
}

func TestForceStopNotOverwrittenByInflightRefresh(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Gold9999, 2000, 2010)
	statuses := &gatedStatuses{
		fakeStatuses: newFakeStatuses(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	svc := NewPriceService(feed, statuses, &fakeHistory{}, PriceServiceOptions{})

	refreshDone := make(chan struct{})
	go func() {
		_ = svc.RefreshOnce(context.Background())
		close(refreshDone)
	}()
	<-statuses.entered

	// 刷新还没换入时停牌：停牌的零价不允许被这轮刷新覆盖回去
	stopDone := make(chan struct{})
	go func() {
		statuses.set(domain.Gold9999, statusdomain.StateStop)
		svc.ForceStop(context.Background(), domain.Gold9999)
		close(stopDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(statuses.release)
	<-refreshDone
	<-stopDone

	snap, ok := svc.Latest()
	require.True(t, ok)
	quote, ok := snap.Quote(domain.Gold9999)
	require.True(t, ok)
	assert.True(t, quote.IsZero(), "stopped instrument resurfaced with %s/%s", quote.BuyIn, quote.SellOut)
}

func TestSnapshotImmutableForReaders(t *testing.T) {
	feed := newFakeFeed()
	feed.set(domain.Spot, 2400, 2401)
	svc := newTestService(feed, newFakeStatuses(), &fakeHistory{})
	require.NoError(t, svc.RefreshOnce(context.Background()))

	before, _ := svc.Latest()
	svc.ForceStop(context.Background(), domain.Spot)

	// ForceStop 换指针而不是改旧快照，旧引用不受影响
	quote, _ := before.Quote(domain.Spot)
	assert.True(t, quote.BuyIn.Equal(decimal.NewFromInt(2400)))
}
