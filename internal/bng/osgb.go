package bng

import "github.com/wroge/wgs84"

// 文档注释：国家网格（EPSG:27700）与 WGS84 经纬度之间的转换
// 背景：经纬度仅用于生成地图链接与 IP 定位换算，精度要求为米级；投影与 Helmert 七参数由 wgs84 库提供。
// 约束：不做区域检查，网格外的海域坐标照常换算；不做 OSTN15 格网改正，误差约 5m 以内。
var (
	gridToLonLat = wgs84.OSGB36NationalGrid().To(wgs84.LonLat())
	lonLatToGrid = wgs84.LonLat().To(wgs84.OSGB36NationalGrid())
)

// GridToWGS84：国家网格坐标（米）-> WGS84 纬度/经度（度）
func GridToWGS84(e, n float64) (float64, float64) {
	lon, lat, _ := gridToLonLat(e, n, 0)
	return lat, lon
}

// WGS84ToGrid：WGS84 纬度/经度（度）-> 国家网格坐标（米）
func WGS84ToGrid(lat, lon float64) (float64, float64) {
	e, n, _ := lonLatToGrid(lon, lat, 0)
	return e, n
}

// FromLatLon：WGS84 经纬度构造网格坐标（截断到米）
func FromLatLon(lat, lon float64) Coords {
	e, n := WGS84ToGrid(lat, lon)
	return FromGrid(int(e), int(n))
}
