package utils

import (
	"math"
)

const earthRadiusMeters = 6371000.0

// metersPerDegreeLat 纬度每度对应的米数（近似）
const metersPerDegreeLat = 111320.0

// HaversineMeters 计算两点之间的球面距离（米）
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// LngRange 闭区间 [Min, Max]，都在 [-180, 180] 内
type LngRange struct {
	Min, Max float64
}

// BoundingBox 返回以 (lat, lng) 为中心、半径 radius 米的经纬度包围盒
// 用于先在数据库里粗筛，再用 Haversine 精确过滤。
// 跨过 ±180 经线时经度拆成两段。
func BoundingBox(lat, lng, radius float64) (minLat, maxLat float64, lngs []LngRange) {
	dLat := radius / metersPerDegreeLat
	minLat, maxLat = math.Max(-90, lat-dLat), math.Min(90, lat+dLat)

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat <= 1e-9 {
		return minLat, maxLat, []LngRange{{-180, 180}}
	}
	dLng := radius / (metersPerDegreeLat * cosLat)
	if dLng >= 180 {
		return minLat, maxLat, []LngRange{{-180, 180}}
	}

	lo, hi := lng-dLng, lng+dLng
	switch {
	case lo < -180:
		return minLat, maxLat, []LngRange{{lo + 360, 180}, {-180, hi}}
	case hi > 180:
		return minLat, maxLat, []LngRange{{lo, 180}, {-180, hi - 360}}
	}
	return minLat, maxLat, []LngRange{{lo, hi}}
}

// ValidCoordinates 检查经纬度范围
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
