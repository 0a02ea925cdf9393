package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Locator resolves an IP address to an ISO country code.
type Locator interface {
	CountryCode(ip string) string
}

// Provider wraps a GeoIP2 country database.
type Provider struct {
	db *geoip2.Reader
}

// Open opens the MMDB file at path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// CountryCode returns the ISO code ("US", "DE") of ip, or an empty
// string if the address is invalid or unknown to the database.
func (p *Provider) CountryCode(ip string) string {
	addr := net.ParseIP(ip)
	if addr == nil {
		return ""
	}

	record, err := p.db.Country(addr)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// Nop is a Locator that knows no countries.
type Nop struct{}

// CountryCode always returns an empty string.
func (Nop) CountryCode(string) string { return "" }
