package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricScanDuration     = "weavequality.scan.duration.seconds"
	metricScanFilesTotal   = "weavequality.scan.files.total"
	metricScanHotspotCount = "weavequality.scan.hotspots.count"
	metricScanQualityScore = "weavequality.scan.quality_score"
	metricCacheHitsTotal   = "weavequality.scan.cache.hits.total"
	metricCacheMissesTotal = "weavequality.scan.cache.misses.total"

	attrCache = "cache"
)

// ScanMetrics holds OTel instruments for one repository scan.
type ScanMetrics struct {
	scanDuration metric.Float64Histogram
	filesTotal   metric.Int64Counter
	hotspots     metric.Int64Gauge
	quality      metric.Int64Gauge
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
}

// ScanStats mirrors scanner.Summary, decoupled from that package so
// observability never imports it back.
type ScanStats struct {
	Duration        time.Duration
	FilesScanned    int
	HotspotCount    int
	QualityScore    int
	BlobCacheHits   int64
	BlobCacheMisses int64
	DiffCacheHits   int64
	DiffCacheMisses int64
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	duration, err := mt.Float64Histogram(metricScanDuration,
		metric.WithDescription("Scan wall-clock duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricScanDuration, err)
	}

	files, err := mt.Int64Counter(metricScanFilesTotal,
		metric.WithDescription("Total files scanned"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricScanFilesTotal, err)
	}

	hotspots, err := mt.Int64Gauge(metricScanHotspotCount,
		metric.WithDescription("Hotspot count from the most recent scan"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricScanHotspotCount, err)
	}

	quality, err := mt.Int64Gauge(metricScanQualityScore,
		metric.WithDescription("Repository quality score (0-100) from the most recent scan"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricScanQualityScore, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Cache hits by type"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Cache misses by type"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &ScanMetrics{
		scanDuration: duration,
		filesTotal:   files,
		hotspots:     hotspots,
		quality:      quality,
		cacheHits:    hits,
		cacheMisses:  misses,
	}, nil
}

// RecordScan records the outcome of one completed scan.
// Safe to call on a nil receiver (no-op).
func (sm *ScanMetrics) RecordScan(ctx context.Context, stats ScanStats) {
	if sm == nil {
		return
	}

	sm.scanDuration.Record(ctx, stats.Duration.Seconds())
	sm.filesTotal.Add(ctx, int64(stats.FilesScanned))
	sm.hotspots.Record(ctx, int64(stats.HotspotCount))
	sm.quality.Record(ctx, int64(stats.QualityScore))

	blobAttrs := metric.WithAttributes(attribute.String(attrCache, "blob"))
	sm.cacheHits.Add(ctx, stats.BlobCacheHits, blobAttrs)
	sm.cacheMisses.Add(ctx, stats.BlobCacheMisses, blobAttrs)

	diffAttrs := metric.WithAttributes(attribute.String(attrCache, "diff"))
	sm.cacheHits.Add(ctx, stats.DiffCacheHits, diffAttrs)
	sm.cacheMisses.Add(ctx, stats.DiffCacheMisses, diffAttrs)
}
