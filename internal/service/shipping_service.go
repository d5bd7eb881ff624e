package service

import (
	"context"
	"fmt"
	"math"

	"github.com/lulicookies/storefront-api/internal/config"
	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

const earthRadiusKm = 6371.0

// ShippingService quotes delivery fees from the distance between the
// store and the customer's address.
type ShippingService struct {
	cep      port.CEPResolver
	geocoder port.Geocoder
	cfg      *config.Config
}

// NewShippingService creates a new ShippingService.
func NewShippingService(cep port.CEPResolver, geocoder port.Geocoder, cfg *config.Config) *ShippingService {
	return &ShippingService{cep: cep, geocoder: geocoder, cfg: cfg}
}

// ResolveCEP looks up the street and neighborhood for a postal code.
func (s *ShippingService) ResolveCEP(ctx context.Context, cep string) (*domain.ResolvedCEP, error) {
	return s.cep.Resolve(ctx, cep)
}

// QuoteForAddress geocodes the delivery address and prices the trip
// from the store.
func (s *ShippingService) QuoteForAddress(ctx context.Context, addr *domain.Address) (*domain.ShippingQuote, error) {
	ctx, span := tracer.Start(ctx, "ShippingService.QuoteForAddress")
	defer span.End()

	if err := addr.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("%s, %s, %s, %s, Brasil",
		addr.Street, addr.Number, addr.Neighborhood, addr.CEP)
	dest, err := s.geocoder.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}

	origin := domain.Coordinate{Lat: s.cfg.StoreOriginLat, Lng: s.cfg.StoreOriginLng}
	quote := s.Quote(origin, *dest)
	span.SetAttributes(
		attribute.Float64("distance_km", quote.DistanceKm),
		attribute.Float64("cost", quote.Cost),
	)
	return quote, nil
}

// Quote prices the great-circle distance between two coordinates:
// cost = max(minimumFee, ceil(distanceKm * ratePerKm)).
func (s *ShippingService) Quote(origin, dest domain.Coordinate) *domain.ShippingQuote {
	km := haversineKm(origin, dest)
	cost := math.Ceil(km * s.cfg.ShippingRatePerKM)
	if cost < s.cfg.ShippingMinFee {
		cost = s.cfg.ShippingMinFee
	}
	return &domain.ShippingQuote{DistanceKm: km, Cost: cost}
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(a, b domain.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
