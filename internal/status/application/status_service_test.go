package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/status/domain"
)

type fakeRepo struct {
	mu      sync.Mutex
	states  map[marketdomain.Instrument]domain.State
	upserts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{states: make(map[marketdomain.Instrument]domain.State)}
}

func (r *fakeRepo) Upsert(ctx context.Context, inst marketdomain.Instrument, state domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[inst] = state
	r.upserts++
	return nil
}

func (r *fakeRepo) GetAll(ctx context.Context) ([]*domain.InstrumentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.InstrumentStatus, 0, len(r.states))
	for inst, state := range r.states {
		out = append(out, &domain.InstrumentStatus{
			Instrument: string(inst),
			State:      string(state),
		})
	}
	return out, nil
}

type fakeOverrider struct {
	mu           sync.Mutex
	forceStopped []marketdomain.Instrument
	rebroadcasts int
}

func (o *fakeOverrider) ForceStop(ctx context.Context, inst marketdomain.Instrument) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.forceStopped = append(o.forceStopped, inst)
}

func (o *fakeOverrider) Rebroadcast(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rebroadcasts++
}

func TestInitSeedsMissingInstruments(t *testing.T) {
	repo := newFakeRepo()
	repo.states[marketdomain.Gold9999] = domain.StateStop

	svc := NewStatusService(repo, StatusServiceOptions{})
	require.NoError(t, svc.Init(context.Background()))

	ctx := context.Background()
	assert.Equal(t, domain.StateStop, svc.Get(ctx, marketdomain.Gold9999))
	for _, inst := range marketdomain.AllInstruments() {
		if inst == marketdomain.Gold9999 {
			continue
		}
		assert.Equal(t, domain.StateOnline, svc.Get(ctx, inst), "instrument %s", inst)
	}
	// 已有一行 STOP，其余品种各补一行 ONLINE
	assert.Equal(t, len(marketdomain.AllInstruments())-1, repo.upserts)
}

func TestGetDefaultsToOnline(t *testing.T) {
	svc := NewStatusService(newFakeRepo(), StatusServiceOptions{})
	assert.Equal(t, domain.StateOnline, svc.Get(context.Background(), marketdomain.Spot))
}

func TestSetPersistsAndNotifiesBeforeReturn(t *testing.T) {
	repo := newFakeRepo()
	overrider := &fakeOverrider{}
	svc := NewStatusService(repo, StatusServiceOptions{})
	svc.BindPriceCache(overrider)
	require.NoError(t, svc.Init(context.Background()))

	var events []domain.Event
	unsubscribe := svc.Subscribe(func(e domain.Event) {
		events = append(events, e)
	})
	defer unsubscribe()
	replayed := len(events)

	require.NoError(t, svc.Set(context.Background(), marketdomain.Gold965, domain.StateStop))

	// Set 返回时一切都已生效：存储、内存、行情联动、订阅者
	assert.Equal(t, domain.StateStop, repo.states[marketdomain.Gold965])
	assert.Equal(t, domain.StateStop, svc.Get(context.Background(), marketdomain.Gold965))
	assert.Equal(t, []marketdomain.Instrument{marketdomain.Gold965}, overrider.forceStopped)
	require.Len(t, events, replayed+1)
	assert.Equal(t, marketdomain.Gold965, events[replayed].Instrument)
	assert.Equal(t, domain.StateStop, events[replayed].State)
}

func TestSetOnlineTriggersRebroadcast(t *testing.T) {
	overrider := &fakeOverrider{}
	svc := NewStatusService(newFakeRepo(), StatusServiceOptions{})
	svc.BindPriceCache(overrider)

	require.NoError(t, svc.Set(context.Background(), marketdomain.Spot, domain.StatePause))
	require.NoError(t, svc.Set(context.Background(), marketdomain.Spot, domain.StateOnline))

	assert.Empty(t, overrider.forceStopped)
	assert.Equal(t, 2, overrider.rebroadcasts)
}

func TestSetRejectsInvalidInput(t *testing.T) {
	svc := NewStatusService(newFakeRepo(), StatusServiceOptions{})

	err := svc.Set(context.Background(), marketdomain.Instrument("PLATINUM"), domain.StateStop)
	assert.ErrorIs(t, err, marketdomain.ErrUnknownInstrument)

	err = svc.Set(context.Background(), marketdomain.Spot, domain.State("BROKEN"))
	assert.Error(t, err)
}

func TestSubscribeReplaysAllStates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewStatusService(repo, StatusServiceOptions{})
	require.NoError(t, svc.Init(context.Background()))
	require.NoError(t, svc.Set(context.Background(), marketdomain.Gold9999, domain.StatePause))

	seen := make(map[marketdomain.Instrument]domain.State)
	unsubscribe := svc.Subscribe(func(e domain.Event) {
		seen[e.Instrument] = e.State
	})
	defer unsubscribe()

	assert.Len(t, seen, len(marketdomain.AllInstruments()))
	assert.Equal(t, domain.StatePause, seen[marketdomain.Gold9999])
	assert.Equal(t, domain.StateOnline, seen[marketdomain.Spot])
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	svc := NewStatusService(newFakeRepo(), StatusServiceOptions{})

	count := 0
	unsubscribe := svc.Subscribe(func(e domain.Event) { count++ })
	replayed := count

	unsubscribe()
	require.NoError(t, svc.Set(context.Background(), marketdomain.Spot, domain.StateStop))
	assert.Equal(t, replayed, count)
	assert.NotPanics(t, unsubscribe)
}

func TestStatesReturnsCopy(t *testing.T) {
	svc := NewStatusService(newFakeRepo(), StatusServiceOptions{})
	require.NoError(t, svc.Set(context.Background(), marketdomain.Spot, domain.StatePause))

	states := svc.States(context.Background())
	states[marketdomain.Spot] = domain.StateStop

	assert.Equal(t, domain.StatePause, svc.Get(context.Background(), marketdomain.Spot))
}
