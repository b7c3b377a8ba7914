package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall-dashboard/internal/daterange"
	"mall-dashboard/internal/models"
)

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Len())
}

type mockCmdable struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestRedis_GetSet(t *testing.T) {
	mock := newMockCmdable()
	r := &Redis{store: mock}
	ctx := context.Background()

	_, err := r.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, r.Set(ctx, "k", []byte(`[1]`), time.Minute))
	assert.Equal(t, time.Minute, mock.ttls["mall-dashboard:k"])

	got, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[1]`), got)

	assert.NoError(t, r.Ping(ctx))
	assert.NoError(t, r.Close())
}

type fakeUpstream struct {
	customerCalls  atomic.Int32
	purchaseCalls  atomic.Int32
	frequencyCalls atomic.Int32
	release        chan struct{}
	err            error
}

func (f *fakeUpstream) Customers(ctx context.Context, q models.CustomerQuery) ([]models.Customer, error) {
	f.customerCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return []models.Customer{{ID: 1, Name: q.Name, Count: 2, TotalAmount: decimal.NewFromInt(42000)}}, nil
}

func (f *fakeUpstream) CustomerPurchases(ctx context.Context, id int) ([]models.CustomerPurchase, error) {
	f.purchaseCalls.Add(1)
	return []models.CustomerPurchase{{Date: "2024-07-01", Product: "셔츠", Quantity: 1, Price: decimal.NewFromInt(21000)}}, nil
}

func (f *fakeUpstream) PurchaseFrequency(ctx context.Context, r daterange.Range) ([]models.PriceFrequency, error) {
	f.frequencyCalls.Add(1)
	return []models.PriceFrequency{{Range: "≤2만원", Count: 1}}, nil
}

func TestSource_CachesPerKey(t *testing.T) {
	up := &fakeUpstream{}
	mem := NewMemory()
	s := NewSource(up, mem, nil, nil)
	ctx := context.Background()

	first, err := s.Customers(ctx, models.CustomerQuery{Name: "kim"})
	require.NoError(t, err)
	second, err := s.Customers(ctx, models.CustomerQuery{Name: "kim"})
	require.NoError(t, err)
	_, err = s.Customers(ctx, models.CustomerQuery{Name: "lee"})
	require.NoError(t, err)

	assert.Equal(t, first[0].Name, second[0].Name)
	assert.True(t, first[0].TotalAmount.Equal(second[0].TotalAmount))
	assert.Equal(t, int32(2), up.customerCalls.Load())

	_, _ = s.CustomerPurchases(ctx, 3)
	_, _ = s.CustomerPurchases(ctx, 3)
	assert.Equal(t, int32(1), up.purchaseCalls.Load())

	r := daterange.Range{From: "2024-07-01", To: "2024-07-31"}
	_, _ = s.PurchaseFrequency(ctx, r)
	_, _ = s.PurchaseFrequency(ctx, r)
	assert.Equal(t, int32(1), up.frequencyCalls.Load())

	_, err = mem.Get(ctx, "customers:detail:3:purchases")
	assert.NoError(t, err)
}

func TestSource_CollapsesConcurrentMisses(t *testing.T) {
	up := &fakeUpstream{release: make(chan struct{})}
	s := NewSource(up, NewMemory(), nil, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Customers(context.Background(), models.CustomerQuery{SortBy: "asc"})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return up.customerCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(up.release)
	wg.Wait()

	assert.Equal(t, int32(1), up.customerCalls.Load())
}

func TestSource_ErrorsAreNotCached(t *testing.T) {
	up := &fakeUpstream{err: errors.New("boom")}
	s := NewSource(up, NewMemory(), nil, nil)

	_, err := s.Customers(context.Background(), models.CustomerQuery{})
	require.Error(t, err)

	up.err = nil
	got, err := s.Customers(context.Background(), models.CustomerQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), up.customerCalls.Load())
}

func TestSource_BrokenCacheFallsThrough(t *testing.T) {
	mock := newMockCmdable()
	mock.getErr = errors.New("connection refused")
	up := &fakeUpstream{}
	s := NewSource(up, &Redis{store: mock}, nil, nil)

	got, err := s.CustomerPurchases(context.Background(), 9)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSource_CallerCancellation(t *testing.T) {
	up := &fakeUpstream{release: make(chan struct{})}
	s := NewSource(up, NewMemory(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Customers(ctx, models.CustomerQuery{})
	assert.ErrorIs(t, err, context.Canceled)
	close(up.release)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "customers:list:desc:kim", CustomersKey(models.CustomerQuery{SortBy: "desc", Name: "kim"}))
	assert.Equal(t, "customers:detail:12:purchases", PurchasesKey(12))
	assert.Equal(t, "purchases:frequency:2024-07-01:2024-07-31", FrequencyKey(daterange.Range{From: "2024-07-01", To: "2024-07-31"}))
}
