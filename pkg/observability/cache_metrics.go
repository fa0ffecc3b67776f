package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheHitsGauge   = "weavequality.scan.cache.hits"
	metricCacheMissesGauge = "weavequality.scan.cache.misses"
)

// CacheStatsProvider exposes cache hit/miss counters for OTel export. No
// type in pkg/gitlib or pkg/history implements it; RegisterCacheMetrics
// reports whatever providers its caller passes in.
type CacheStatsProvider interface {
	CacheHits() int64
	CacheMisses() int64
}

type namedCacheProvider struct {
	name     string
	provider CacheStatsProvider
}

// RegisterCacheMetrics registers observable gauges that report live cache
// hit/miss counts from the blob and diff caches at collection time. Either
// provider may be nil (not every scan opens history mining).
func RegisterCacheMetrics(mt metric.Meter, blob, diff CacheStatsProvider) error {
	var providers []namedCacheProvider

	if blob != nil {
		providers = append(providers, namedCacheProvider{"blob", blob})
	}
	if diff != nil {
		providers = append(providers, namedCacheProvider{"diff", diff})
	}

	if len(providers) == 0 {
		return nil
	}

	_, err := mt.Int64ObservableGauge(metricCacheHitsGauge,
		metric.WithDescription("Cache hit count"),
		metric.WithUnit("{hit}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			for _, p := range providers {
				o.Observe(p.provider.CacheHits(), metric.WithAttributes(attribute.String(attrCache, p.name)))
			}

			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheHitsGauge, err)
	}

	_, err = mt.Int64ObservableGauge(metricCacheMissesGauge,
		metric.WithDescription("Cache miss count"),
		metric.WithUnit("{miss}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			for _, p := range providers {
				o.Observe(p.provider.CacheMisses(), metric.WithAttributes(attribute.String(attrCache, p.name)))
			}

			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheMissesGauge, err)
	}

	return nil
}
