package models

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
)

const ipLocationCacheTTL = 24 * time.Hour

type IPLocation struct {
	IP          string `json:"ip"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
}

// GeoLocator resolves an address to a location.
type GeoLocator interface {
	Locate(ip net.IP) (*IPLocation, error)
}

type MaxMindLocator struct {
	db *geoip2.Reader
}

// OpenGeoIP opens a MaxMind City database.
func OpenGeoIP(dbPath string) (*MaxMindLocator, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &MaxMindLocator{db: db}, nil
}

func (g *MaxMindLocator) Locate(ip net.IP) (*IPLocation, error) {
	record, err := g.db.City(ip)
	if err != nil {
		return nil, err
	}
	return &IPLocation{
		IP:          ip.String(),
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}, nil
}

func (g *MaxMindLocator) Close() error {
	return g.db.Close()
}

// LookupIPLocation resolves ip through locator, cached for a day.
func LookupIPLocation(ctx context.Context, locator GeoLocator, ip string) (*IPLocation, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil, utils.NewValidationError("ip", "invalid IP address")
	}
	if locator == nil {
		return nil, utils.ErrServiceNotReady
	}
	return utils.CacheOrLoad(ctx, parsed.String(), ipLocationCacheTTL, func() (*IPLocation, error) {
		return locator.Locate(parsed)
	})
}
