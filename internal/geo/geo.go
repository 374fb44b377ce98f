// Package geo locates orchestrators from the host of their service URI
// using MaxMind GeoIP2 City and ASN databases.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
)

// ErrNoAddress is returned when a host resolves to no IP address.
var ErrNoAddress = errors.New("no address for host")

// CityReader is the City lookup of a GeoIP2 database.
type CityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// ASNReader is the ASN lookup of a GeoLite2 ASN database.
type ASNReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
}

// HostResolver resolves hostnames to addresses.
type HostResolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Resolver locates service hosts.
type Resolver struct {
	city CityReader
	asn  ASNReader
	dns  HostResolver
	log  *slog.Logger
}

// NewResolver creates a Resolver. asn may be nil; dns defaults to
// net.DefaultResolver.
func NewResolver(log *slog.Logger, city CityReader, asn ASNReader, dns HostResolver) (*Resolver, error) {
	if city == nil {
		return nil, errors.New("city database is required")
	}
	if dns == nil {
		dns = net.DefaultResolver
	}
	return &Resolver{city: city, asn: asn, dns: dns, log: logger.OrDiscard(log)}, nil
}

// Open opens the City and, when asnPath is set, ASN databases. The returned
// close function releases both.
func Open(log *slog.Logger, cityPath, asnPath string) (*Resolver, func() error, error) {
	cityDB, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open GeoIP city database: %w", err)
	}
	closers := []func() error{cityDB.Close}

	var asn ASNReader
	if asnPath != "" {
		asnDB, err := geoip2.Open(asnPath)
		if err != nil {
			cityDB.Close()
			return nil, nil, fmt.Errorf("failed to open GeoIP ASN database: %w", err)
		}
		asn = asnDB
		closers = append(closers, asnDB.Close)
	}

	r, err := NewResolver(log, cityDB, asn, nil)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, nil, err
	}
	return r, func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}, nil
}

// HostFromServiceURI returns the host of a service URI with scheme and
// port removed.
func HostFromServiceURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ""
	}
	if !strings.Contains(uri, "://") {
		uri = "https://" + uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Locate resolves the service URI host and looks up its location.
func (r *Resolver) Locate(ctx context.Context, serviceURI string) (*domain.Location, error) {
	host := HostFromServiceURI(serviceURI)
	if host == "" {
		return nil, fmt.Errorf("service uri %q: %w", serviceURI, ErrNoAddress)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := r.dns.LookupIP(ctx, "ip", host)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("resolve %s: %w", host, ErrNoAddress)
		}
		ip = ips[0]
	}
	return r.LocateIP(ip)
}

// LocateIP looks up the location of ip.
func (r *Resolver) LocateIP(ip net.IP) (*domain.Location, error) {
	city, err := r.city.City(ip)
	if err != nil {
		return nil, fmt.Errorf("city lookup %s: %w", ip, err)
	}
	loc := &domain.Location{
		IP:        ip.String(),
		City:      city.City.Names["en"],
		Country:   city.Country.IsoCode,
		Latitude:  city.Location.Latitude,
		Longitude: city.Location.Longitude,
	}
	if r.asn != nil {
		asn, err := r.asn.ASN(ip)
		if err != nil {
			r.log.Debug("geo: asn lookup failed", "ip", ip.String(), "error", err)
		} else {
			loc.ASN = asn.AutonomousSystemNumber
			loc.Org = asn.AutonomousSystemOrganization
		}
	}
	return loc, nil
}

// LocateAll locates every distinct service URI. URIs that cannot be located
// are omitted from the map and their errors are returned joined.
func (r *Resolver) LocateAll(ctx context.Context, uris []string) (map[string]*domain.Location, error) {
	out := make(map[string]*domain.Location)
	seen := make(map[string]bool, len(uris))
	var errs []error
	for _, uri := range uris {
		if seen[uri] || uri == "" {
			continue
		}
		seen[uri] = true
		loc, err := r.Locate(ctx, uri)
		if err != nil {
			r.log.Debug("geo: locate failed", "service_uri", uri, "error", err)
			errs = append(errs, err)
			continue
		}
		out[uri] = loc
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("%d of %d service uris not located: %w", len(errs), len(seen), errors.Join(errs...))
	}
	return out, nil
}
