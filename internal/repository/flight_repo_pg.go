package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	ListFares(ctx context.Context, flightID int64) ([]domain.Fare, error)
	ReserveSeat(ctx context.Context, q database.TxQuerier, flightID int64) error
	ReleaseSeat(ctx context.Context, q database.TxQuerier, flightID int64) error
}

type PGFlightRepository struct {
	db database.TxQuerier
}

func NewFlightRepository(db database.TxQuerier) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, from_airport, to_airport, departure_time, arrival_time, total_seats, available_seats, price_cents, created_at, updated_at`

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FromAirport, &f.ToAirport, &f.DepartureTime, &f.ArrivalTime, &f.TotalSeats, &f.AvailableSeats, &f.PriceCents, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlightNotFound
		}
		return nil, fmt.Errorf("get flight %d: %w", id, err)
	}
	return f, nil
}

// ListFares returns the stored fare options in no particular order; callers run them through FilterFares.
func (r *PGFlightRepository) ListFares(ctx context.Context, flightID int64) ([]domain.Fare, error) {
	rows, err := r.db.Query(ctx, `SELECT class, price, available_seats, perks FROM flight_fares WHERE flight_id = $1`, flightID)
	if err != nil {
		return nil, fmt.Errorf("list fares: %w", err)
	}
	defer rows.Close()

	fares := make([]domain.Fare, 0)
	for rows.Next() {
		var f domain.Fare
		if err := rows.Scan(&f.Class, &f.Price, &f.AvailableSeats, &f.Perks); err != nil {
			return nil, fmt.Errorf("scan fare: %w", err)
		}
		fares = append(fares, f)
	}
	return fares, rows.Err()
}

func (r *PGFlightRepository) ReserveSeat(ctx context.Context, q database.TxQuerier, flightID int64) error {
	if q == nil {
		q = r.db
	}
	res, err := q.Exec(ctx, `UPDATE flights SET available_seats = available_seats - 1, updated_at = now() WHERE id = $1 AND available_seats > 0`, flightID)
	if err != nil {
		return fmt.Errorf("reserve seat: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, flightID); err != nil {
			return err
		}
		return domain.ErrNoSeatsAvailable
	}
	return nil
}

func (r *PGFlightRepository) ReleaseSeat(ctx context.Context, q database.TxQuerier, flightID int64) error {
	if q == nil {
		q = r.db
	}
	_, err := q.Exec(ctx, `UPDATE flights SET available_seats = LEAST(available_seats + 1, total_seats), updated_at = now() WHERE id = $1`, flightID)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
