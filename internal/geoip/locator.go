// 包 geoip：客户端 IP -> 国家网格坐标
package geoip

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"terrain-api/internal/bng"
	"terrain-api/internal/logger"
	"terrain-api/internal/metrics"
)

// ErrNoLocation：IP 无法解析或库中无坐标
var ErrNoLocation = errors.New("geoip: no location for address")

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Locator：基于 GeoIP2 City 库的定位器
type Locator struct {
	db     cityReader
	closer func() error
}

// Open：打开 mmdb 文件
func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	logger.L().Info("geoip_open_ok", "path", path, "type", r.Metadata().DatabaseType)
	return &Locator{db: r, closer: r.Close}, nil
}

func (l *Locator) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

// Place：定位结果
type Place struct {
	IP       string  `json:"ip"`
	Country  string  `json:"country"`
	City     string  `json:"city"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm uint16  `json:"accuracy_km"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	// OnGrid：坐标落在 700km × 1300km 网格内
	OnGrid bool `json:"on_grid"`
}

// Coords：网格坐标
func (p Place) Coords() bng.Coords { return bng.FromGrid(p.X, p.Y) }

// 文档注释：定位一个 IP
// 约束：非法地址与无坐标记录返回 ErrNoLocation；网格外的位置仍返回结果但 OnGrid=false。
func (l *Locator) Locate(ip string) (Place, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("bad_ip").Inc()
		return Place{}, fmt.Errorf("%w: %q", ErrNoLocation, ip)
	}
	rec, err := l.db.City(addr)
	if err != nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("error").Inc()
		return Place{}, err
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		metrics.GeoIPLookupsTotal.WithLabelValues("miss").Inc()
		return Place{}, fmt.Errorf("%w: %s", ErrNoLocation, ip)
	}
	c := bng.FromLatLon(rec.Location.Latitude, rec.Location.Longitude)
	x, y := c.Grid()
	p := Place{
		IP:       ip,
		Country:  rec.Country.IsoCode,
		City:     rec.City.Names["en"],
		Lat:      rec.Location.Latitude,
		Lon:      rec.Location.Longitude,
		RadiusKm: rec.Location.AccuracyRadius,
		X:        x,
		Y:        y,
		OnGrid:   x >= 0 && y >= 0 && x < bng.Width && y < bng.Height,
	}
	metrics.GeoIPLookupsTotal.WithLabelValues("ok").Inc()
	logger.L().Debug("geoip_locate", "ip", ip, "country", p.Country, "x", x, "y", y, "on_grid", p.OnGrid)
	return p, nil
}
