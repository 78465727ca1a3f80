package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	// LockByOrderID reads the payment under a row lock so concurrent callbacks for
	// the same orderId serialize inside their transactions.
	LockByOrderID(ctx context.Context, q database.TxQuerier, orderID string) (*domain.Payment, error)
	// Settle moves a PENDING payment to its terminal state. ErrPaymentSettled if it is no longer PENDING.
	Settle(ctx context.Context, q database.TxQuerier, payment *domain.Payment) error
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Payment, error)
	// ListUnreconciled returns SUCCESS payments whose booking is still unpaid and not cancelled.
	ListUnreconciled(ctx context.Context, limit int) ([]domain.Payment, error)
}

type PGPaymentRepository struct {
	db database.TxQuerier
}

func NewPaymentRepository(db database.TxQuerier) PaymentRepository {
	return &PGPaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, user_id, amount, payment_method, order_id, transaction_id, result_code, status, refund_required, payment_date, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	if err := row.Scan(&p.ID, &p.BookingID, &p.UserID, &p.Amount, &p.Method, &p.OrderID, &p.TransactionID, &p.ResultCode, &p.Status, &p.RefundRequired, &p.PaymentDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	err := r.db.QueryRow(ctx, `INSERT INTO payments (id, booking_id, user_id, amount, payment_method, order_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.BookingID, p.UserID, p.Amount, p.Method, p.OrderID, p.Status).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == database.UniqueViolation {
			return domain.ErrDuplicateOrderID
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PGPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment by order id: %w", err)
	}
	return p, nil
}

func (r *PGPaymentRepository) LockByOrderID(ctx context.Context, q database.TxQuerier, orderID string) (*domain.Payment, error) {
	if q == nil {
		q = r.db
	}
	p, err := scanPayment(q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 FOR UPDATE`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("lock payment by order id: %w", err)
	}
	return p, nil
}

func (r *PGPaymentRepository) Settle(ctx context.Context, q database.TxQuerier, p *domain.Payment) error {
	if q == nil {
		q = r.db
	}
	err := q.QueryRow(ctx, `UPDATE payments
		SET status = $2, transaction_id = $3, result_code = $4, refund_required = $5, payment_date = $6, updated_at = now()
		WHERE order_id = $1 AND status = $7
		RETURNING updated_at`,
		p.OrderID, p.Status, p.TransactionID, p.ResultCode, p.RefundRequired, p.PaymentDate, domain.PaymentPending).
		Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPaymentSettled
		}
		return fmt.Errorf("settle payment %s: %w", p.OrderID, err)
	}
	return nil
}

func (r *PGPaymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at`, bookingID)
}

func (r *PGPaymentRepository) ListUnreconciled(ctx context.Context, limit int) ([]domain.Payment, error) {
	return r.list(ctx, `SELECT `+prefixed("p.", paymentColumns)+` FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.status = $1 AND b.payment_status = $2 AND b.status <> $3
		ORDER BY p.updated_at
		LIMIT $4`, domain.PaymentSuccess, domain.PaymentStatusUnpaid, domain.BookingStatusCancelled, limit)
}

func (r *PGPaymentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = alias + c
	}
	return strings.Join(cols, ", ")
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
