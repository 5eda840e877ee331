package hotscore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/cache"
	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
)

// Scored is a post id with its stored hot score
type Scored struct {
	ID    string
	Score float64
}

// RankStore lists active posts by hot score
type RankStore interface {
	// TopHotScores returns up to limit active posts ordered by hot score descending.
	TopHotScores(ctx context.Context, limit int) ([]Scored, error)
}

// Detector selects posts whose score stands out from the rest
type Detector struct {
	store      RankStore
	cache      *cache.Cache
	scanSize   int
	hotLimit   int
	floor      float64
	multiplier float64
	ttl        time.Duration
	logger     *zap.Logger
}

// NewDetector creates a detector. c may be nil, which disables caching.
func NewDetector(store RankStore, c *cache.Cache, cfg *config.HotScoreConfig) *Detector {
	return &Detector{
		store:      store,
		cache:      c,
		scanSize:   cfg.ScanSize,
		hotLimit:   cfg.HotLimit,
		floor:      cfg.ThresholdFloor,
		multiplier: cfg.OutlierMultiplier,
		ttl:        cfg.CacheTTL,
		logger:     logging.WithComponent("hotscore"),
	}
}

// Threshold returns max(floor, median + multiplier*MAD) over scores.
func Threshold(scores []float64, floor, multiplier float64) float64 {
	finite := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			finite = append(finite, s)
		}
	}
	sort.Float64s(finite)

	med := median(finite)
	deviations := make([]float64, len(finite))
	for i, s := range finite {
		deviations[i] = math.Abs(s - med)
	}
	sort.Float64s(deviations)

	return math.Max(floor, med+multiplier*median(deviations))
}

// median expects sorted input
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Select picks, in input order, up to limit entries scoring at or above the threshold.
func Select(ranked []Scored, floor, multiplier float64, limit int) []string {
	scores := make([]float64, len(ranked))
	for i, r := range ranked {
		scores[i] = r.Score
	}
	threshold := Threshold(scores, floor, multiplier)

	ids := make([]string, 0, limit)
	for _, r := range ranked {
		if len(ids) >= limit {
			break
		}
		if r.Score >= threshold {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (d *Detector) cacheKey() string {
	return "hot:" + cache.HashKey(
		strconv.Itoa(d.scanSize),
		strconv.Itoa(d.hotLimit),
		strconv.FormatFloat(d.floor, 'f', -1, 64),
		strconv.FormatFloat(d.multiplier, 'f', -1, 64),
	)
}

// HotIDs returns the current hot set. Cache failures fall through to the store.
func (d *Detector) HotIDs(ctx context.Context) (map[string]bool, error) {
	var ids []string
	if d.cache != nil {
		found, err := d.cache.GetJSON(ctx, d.cacheKey(), &ids)
		if err != nil {
			d.logger.Warn("hot set cache read failed", zap.Error(err))
		}
		if found {
			return toSet(ids), nil
		}
	}

	ranked, err := d.store.TopHotScores(ctx, d.scanSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranked posts: %w", err)
	}
	ids = Select(ranked, d.floor, d.multiplier, d.hotLimit)

	if d.cache != nil && d.ttl > 0 {
		if err := d.cache.SetJSON(ctx, d.cacheKey(), ids, d.ttl); err != nil {
			d.logger.Warn("hot set cache write failed", zap.Error(err))
		}
	}
	return toSet(ids), nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
