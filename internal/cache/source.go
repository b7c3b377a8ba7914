package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"mall-dashboard/internal/daterange"
	"mall-dashboard/internal/metrics"
	"mall-dashboard/internal/models"
)

const (
	CustomersTTL = 5 * time.Minute
	PurchasesTTL = 3 * time.Minute
	FrequencyTTL = 5 * time.Minute

	fetchTimeout = 30 * time.Second
)

// Upstream is what Source puts a cache in front of.
type Upstream interface {
	Customers(ctx context.Context, q models.CustomerQuery) ([]models.Customer, error)
	CustomerPurchases(ctx context.Context, id int) ([]models.CustomerPurchase, error)
	PurchaseFrequency(ctx context.Context, r daterange.Range) ([]models.PriceFrequency, error)
}

func CustomersKey(q models.CustomerQuery) string {
	return "customers:list:" + q.SortBy + ":" + q.Name
}

func PurchasesKey(id int) string {
	return "customers:detail:" + strconv.Itoa(id) + ":purchases"
}

func FrequencyKey(r daterange.Range) string {
	return "purchases:frequency:" + r.From + ":" + r.To
}

// Source answers from the cache when it can and from upstream otherwise.
// Concurrent misses for one key share a single upstream call. A failing cache
// never fails a request.
type Source struct {
	upstream Upstream
	cache    Cache
	group    singleflight.Group
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewSource(upstream Upstream, c Cache, logger *slog.Logger, m *metrics.Metrics) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{upstream: upstream, cache: c, logger: logger, metrics: m}
}

func (s *Source) Customers(ctx context.Context, q models.CustomerQuery) ([]models.Customer, error) {
	return load(ctx, s, "customers", CustomersKey(q), CustomersTTL, func(ctx context.Context) ([]models.Customer, error) {
		return s.upstream.Customers(ctx, q)
	})
}

func (s *Source) CustomerPurchases(ctx context.Context, id int) ([]models.CustomerPurchase, error) {
	return load(ctx, s, "customer_purchases", PurchasesKey(id), PurchasesTTL, func(ctx context.Context) ([]models.CustomerPurchase, error) {
		return s.upstream.CustomerPurchases(ctx, id)
	})
}

func (s *Source) PurchaseFrequency(ctx context.Context, r daterange.Range) ([]models.PriceFrequency, error) {
	return load(ctx, s, "purchase_frequency", FrequencyKey(r), FrequencyTTL, func(ctx context.Context) ([]models.PriceFrequency, error) {
		return s.upstream.PurchaseFrequency(ctx, r)
	})
}

func load[T any](ctx context.Context, s *Source, query, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			s.metrics.CacheHit(query)
			return v, nil
		}
		s.logger.Warn("discarding unreadable cache entry", "key", key)
	} else if !errors.Is(err, ErrMiss) {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}
	s.metrics.CacheMiss(query)

	// the shared call outlives any single caller giving up on it
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(v); err == nil {
			if err := s.cache.Set(fetchCtx, key, raw, ttl); err != nil {
				s.logger.Warn("cache write failed", "key", key, "error", err)
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
