package flights

import (
	"context"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/rs/zerolog/log"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	SearchFares(ctx context.Context, flightID int64, criteria FareCriteria) ([]domain.Fare, error)
}

// FlightCache is the read-through cache for the catalogue. Misses return nil without error.
type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	GetFares(ctx context.Context, flightID int64) ([]domain.Fare, error)
	SetFares(ctx context.Context, flightID int64, fares []domain.Fare) error
}

type FlightService struct {
	repo  repository.FlightRepository
	cache FlightCache
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache) *FlightService {
	return &FlightService{repo: repo, cache: cache}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			log.Warn().Err(err).Msg("flights cache read failed")
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			log.Warn().Err(err).Msg("flights cache write failed")
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

// SearchFares loads the flight's fare options (cached) and runs them through FilterFares.
func (s *FlightService) SearchFares(ctx context.Context, flightID int64, criteria FareCriteria) ([]domain.Fare, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	var fares []domain.Fare
	if s.cache != nil {
		cached, err := s.cache.GetFares(ctx, flightID)
		if err != nil {
			log.Warn().Err(err).Int64("flight_id", flightID).Msg("fares cache read failed")
		}
		fares = cached
	}
	if fares == nil {
		if _, err := s.repo.GetByID(ctx, flightID); err != nil {
			return nil, err
		}
		loaded, err := s.repo.ListFares(ctx, flightID)
		if err != nil {
			return nil, err
		}
		fares = loaded
		if s.cache != nil {
			if err := s.cache.SetFares(ctx, flightID, fares); err != nil {
				log.Warn().Err(err).Int64("flight_id", flightID).Msg("fares cache write failed")
			}
		}
	}
	return FilterFares(fares, criteria), nil
}

var _ FlightUseCase = (*FlightService)(nil)
