package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"holewatch/internal/config"
	"holewatch/internal/models"
	"holewatch/internal/utils"

	"gorm.io/gorm"
)

// ProximityQuery 按距离查找报告，结果由近到远
type ProximityQuery interface {
	Nearby(ctx context.Context, lat, lon, radiusMeters float64, states ...models.ReportState) ([]uint, error)
}

// GeoIndex 先用经纬度范围在数据库里粗筛，再用球面距离精确过滤
type GeoIndex struct {
	db    *gorm.DB
	cfg   config.Reports
	cache *utils.TTLCache[string, []models.Report]
}

func NewGeoIndex(conn *gorm.DB, cfg config.Reports, now Clock) *GeoIndex {
	cache, _ := utils.NewTTLCache[string, []models.Report](1000)
	return &GeoIndex{db: conn, cfg: cfg, cache: cache.WithClock(now)}
}

func (g *GeoIndex) Nearby(ctx context.Context, lat, lon, radiusMeters float64, states ...models.ReportState) ([]uint, error) {
	reports, err := g.within(ctx, lat, lon, radiusMeters, states)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// OpenNearby 附近仍在跟踪的报告，供公开列表使用，结果缓存
func (g *GeoIndex) OpenNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]models.Report, error) {
	if !utils.ValidCoordinates(lat, lon) {
		return nil, ErrInvalidLocation
	}
	if radiusMeters <= 0 {
		radiusMeters = g.cfg.NearbyRadiusMeters
	}
	radiusMeters = min(radiusMeters, g.cfg.MaxNearbyRadius)

	key := fmt.Sprintf("nearby:%.5f:%.5f:%.0f", lat, lon, radiusMeters)
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}

	reports, err := g.within(ctx, lat, lon, radiusMeters, models.OpenStates())
	if err != nil {
		return nil, err
	}
	g.cache.Set(key, reports, g.cfg.NearbyCacheTTL())
	return reports, nil
}

// Invalidate 报告新建或状态变化后清空列表缓存
func (g *GeoIndex) Invalidate() {
	g.cache.Purge()
}

func (g *GeoIndex) within(ctx context.Context, lat, lon, radiusMeters float64, states []models.ReportState) ([]models.Report, error) {
	minLat, maxLat, lngs := utils.BoundingBox(lat, lon, radiusMeters)
	conds := make([]string, 0, len(lngs))
	args := make([]any, 0, 2*len(lngs))
	for _, r := range lngs {
		conds = append(conds, "longitude BETWEEN ? AND ?")
		args = append(args, r.Min, r.Max)
	}
	query := g.db.WithContext(ctx).
		Preload("User").
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("("+strings.Join(conds, " OR ")+")", args...)
	if len(states) > 0 {
		query = query.Where("state IN ?", states)
	}

	var candidates []models.Report
	if err := query.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to query nearby reports: %w", err)
	}

	reports := candidates[:0]
	for _, r := range candidates {
		r.Distance = utils.HaversineMeters(lat, lon, r.Latitude, r.Longitude)
		if r.Distance <= radiusMeters {
			reports = append(reports, r)
		}
	}
	slices.SortFunc(reports, func(a, b models.Report) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return int(a.ID) - int(b.ID)
	})
	return reports, nil
}

var _ ProximityQuery = (*GeoIndex)(nil)
