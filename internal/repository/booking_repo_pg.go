package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

type BookingRepository interface {
	Create(ctx context.Context, q database.TxQuerier, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	Search(ctx context.Context, filter domain.BookingFilter) (*domain.BookingPage, error)
	// CompareAndSwap writes next only if the stored row still has current's status,
	// paymentStatus and promoStatus. A lost race yields ErrBookingModified.
	CompareAndSwap(ctx context.Context, q database.TxQuerier, current, next *domain.Booking) (*domain.Booking, error)
	MarkPaid(ctx context.Context, q database.TxQuerier, id string) (*domain.Booking, error)
	SetPromoStatus(ctx context.Context, q database.TxQuerier, id string, status domain.PromoStatus) error
	Purge(ctx context.Context, id string) error
}

type PGBookingRepository struct {
	db database.TxQuerier
}

func NewBookingRepository(db database.TxQuerier) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, user_id, flight_id, booking_time, original_price, total_price, promo_code, promo_status, status, payment_status, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.FlightID, &b.BookingTime, &b.OriginalPrice, &b.TotalPrice, &b.PromoCode, &b.PromoStatus, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) querier(q database.TxQuerier) database.TxQuerier {
	if q == nil {
		return r.db
	}
	return q
}

func (r *PGBookingRepository) Create(ctx context.Context, q database.TxQuerier, booking *domain.Booking) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO bookings (id, user_id, flight_id, booking_time, original_price, total_price, promo_code, promo_status, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		booking.ID, booking.UserID, booking.FlightID, booking.BookingTime, booking.OriginalPrice, booking.TotalPrice,
		booking.PromoCode, booking.PromoStatus, booking.Status, booking.PaymentStatus).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

func (r *PGBookingRepository) Search(ctx context.Context, f domain.BookingFilter) (*domain.BookingPage, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.FlightID != nil {
		add("flight_id = $%d", *f.FlightID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.PaymentStatus != nil {
		add("payment_status = $%d", *f.PaymentStatus)
	}
	if f.From != nil {
		add("booking_time >= $%d", *f.From)
	}
	if f.To != nil {
		add("booking_time <= $%d", *f.To)
	}
	if f.MinPrice != nil {
		add("total_price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("total_price <= $%d", *f.MaxPrice)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	column, ok := domain.BookingSortColumns[f.SortBy]
	if !ok {
		column = "booking_time"
	}
	direction := "ASC"
	if f.Descending {
		direction = "DESC"
	}
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY %s %s, id LIMIT %d OFFSET %d`,
		bookingColumns, where, column, direction, limit, (page-1)*limit)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	return &domain.BookingPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (r *PGBookingRepository) CompareAndSwap(ctx context.Context, q database.TxQuerier, current, next *domain.Booking) (*domain.Booking, error) {
	b, err := scanBooking(r.querier(q).QueryRow(ctx, `UPDATE bookings
		SET status = $5, payment_status = $6, promo_status = $7, total_price = $8, updated_at = now()
		WHERE id = $1 AND status = $2 AND payment_status = $3 AND promo_status = $4
		RETURNING `+bookingColumns,
		current.ID, current.Status, current.PaymentStatus, current.PromoStatus,
		next.Status, next.PaymentStatus, next.PromoStatus, next.TotalPrice))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingModified
		}
		return nil, fmt.Errorf("update booking %s: %w", current.ID, err)
	}
	return b, nil
}

// MarkPaid moves an unpaid, non-cancelled booking to Paid and confirms it if still Pending.
// ErrBookingNotPayable means another payment won or the booking was cancelled.
func (r *PGBookingRepository) MarkPaid(ctx context.Context, q database.TxQuerier, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.querier(q).QueryRow(ctx, `UPDATE bookings
		SET payment_status = $2,
		    status = CASE WHEN status = $3 THEN $4 ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND payment_status = $5 AND status <> $6
		RETURNING `+bookingColumns,
		id, domain.PaymentStatusPaid, domain.BookingStatusPending, domain.BookingStatusConfirmed,
		domain.PaymentStatusUnpaid, domain.BookingStatusCancelled))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotPayable
		}
		return nil, fmt.Errorf("mark booking %s paid: %w", id, err)
	}
	return b, nil
}

func (r *PGBookingRepository) SetPromoStatus(ctx context.Context, q database.TxQuerier, id string, status domain.PromoStatus) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE bookings SET promo_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set promo status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// Purge physically removes a cancelled booking that never had a successful payment.
func (r *PGBookingRepository) Purge(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings
		WHERE id = $1 AND status = $2
		AND NOT EXISTS (SELECT 1 FROM payments WHERE booking_id = $1 AND status = $3)`,
		id, domain.BookingStatusCancelled, domain.PaymentSuccess)
	if err != nil {
		if isMissing(err) {
			return domain.ErrBookingNotFound
		}
		return fmt.Errorf("purge booking %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrBookingNotPurgeable
	}
	return nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
