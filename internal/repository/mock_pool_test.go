package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockTxQuerier implements database.TxQuerier for testing.
type mockTxQuerier struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockTxQuerier) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockTxQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{err: pgx.ErrNoRows}
}

func (m *mockTxQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

// mockRow implements pgx.Row. values are assigned to the scan destinations in order.
type mockRow struct {
	values []any
	err    error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	return assign(dest, m.values)
}

func rowOf(values ...any) *mockRow {
	return &mockRow{values: values}
}

type mockRows struct {
	data [][]any
	pos  int
	err  error
}

func (m *mockRows) Close()                                       {}
func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) Values() ([]any, error)                       { return m.data[m.pos-1], nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

func (m *mockRows) Next() bool {
	if m.pos >= len(m.data) {
		return false
	}
	m.pos++
	return true
}

func (m *mockRows) Scan(dest ...any) error {
	return assign(dest, m.data[m.pos-1])
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func promoValues(p domain.PromoCode) []any {
	return []any{p.ID, p.Code, p.DiscountPercentage, p.DiscountAmount, p.StartDate, p.EndDate, p.MaxUsage, p.UsedCount, p.IsActive, p.CreatedAt, p.UpdatedAt}
}

func bookingValues(b domain.Booking) []any {
	return []any{b.ID, b.UserID, b.FlightID, b.BookingTime, b.OriginalPrice, b.TotalPrice, b.PromoCode, b.PromoStatus, b.Status, b.PaymentStatus, b.CreatedAt, b.UpdatedAt}
}

func paymentValues(p domain.Payment) []any {
	return []any{p.ID, p.BookingID, p.UserID, p.Amount, p.Method, p.OrderID, p.TransactionID, p.ResultCode, p.Status, p.RefundRequired, p.PaymentDate, p.CreatedAt, p.UpdatedAt}
}

func flightValues(f domain.Flight) []any {
	return []any{f.ID, f.FromAirport, f.ToAirport, f.DepartureTime, f.ArrivalTime, f.TotalSeats, f.AvailableSeats, f.PriceCents, f.CreatedAt, f.UpdatedAt}
}
