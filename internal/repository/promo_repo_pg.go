package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type PromoCodeRepository interface {
	Insert(ctx context.Context, code *domain.PromoCode) error
	GetByID(ctx context.Context, id string) (*domain.PromoCode, error)
	FindValid(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error)
	Redeem(ctx context.Context, q database.TxQuerier, code string, now time.Time) (*domain.PromoCode, error)
	SetActive(ctx context.Context, id string, active bool) (*domain.PromoCode, error)
	Update(ctx context.Context, id string, patch domain.PromoPatch) (*domain.PromoCode, error)
}

type PGPromoCodeRepository struct {
	db database.TxQuerier
}

func NewPromoCodeRepository(db database.TxQuerier) PromoCodeRepository {
	return &PGPromoCodeRepository{db: db}
}

const promoColumns = `id, code, discount_percentage, discount_amount, start_date, end_date, max_usage, used_count, is_active, created_at, updated_at`

// redeemablePredicate must stay in sync with domain.PromoCode.Redeemable. $1 is the code, $2 is now.
const redeemablePredicate = `code = $1 AND is_active AND start_date <= $2 AND end_date >= $2 AND (max_usage IS NULL OR used_count < max_usage)`

func scanPromo(row pgx.Row) (*domain.PromoCode, error) {
	var p domain.PromoCode
	if err := row.Scan(&p.ID, &p.Code, &p.DiscountPercentage, &p.DiscountAmount, &p.StartDate, &p.EndDate, &p.MaxUsage, &p.UsedCount, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGPromoCodeRepository) Insert(ctx context.Context, code *domain.PromoCode) error {
	err := r.db.QueryRow(ctx, `INSERT INTO promo_codes (id, code, discount_percentage, discount_amount, start_date, end_date, max_usage, used_count, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		RETURNING created_at, updated_at`,
		code.ID, code.Code, code.DiscountPercentage, code.DiscountAmount, code.StartDate, code.EndDate, code.MaxUsage, code.IsActive).
		Scan(&code.CreatedAt, &code.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == database.UniqueViolation {
			return domain.ErrPromoCodeExists
		}
		return fmt.Errorf("insert promo code: %w", err)
	}
	return nil
}

func (r *PGPromoCodeRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("get promo code %s: %w", id, err)
	}
	return p, nil
}

// FindValid is the read-only validity check. Unknown, expired, exhausted and inactive all yield ErrPromoCodeNotFound.
func (r *PGPromoCodeRepository) FindValid(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE `+redeemablePredicate, code, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("find valid promo code: %w", err)
	}
	return p, nil
}

// Redeem increments used_count iff the code is redeemable, in a single conditional UPDATE.
// Concurrent callers serialize on the row lock and the predicate is re-evaluated after the wait,
// so at most max_usage redemptions succeed.
func (r *PGPromoCodeRepository) Redeem(ctx context.Context, q database.TxQuerier, code string, now time.Time) (*domain.PromoCode, error) {
	if q == nil {
		q = r.db
	}
	p, err := scanPromo(q.QueryRow(ctx, `UPDATE promo_codes SET used_count = used_count + 1, updated_at = now()
		WHERE `+redeemablePredicate+`
		RETURNING `+promoColumns, code, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("redeem promo code: %w", err)
	}
	return p, nil
}

func (r *PGPromoCodeRepository) SetActive(ctx context.Context, id string, active bool) (*domain.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx, `UPDATE promo_codes SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING `+promoColumns, id, active))
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("set promo code active: %w", err)
	}
	return p, nil
}

// Update applies patch. When the patch changes the discount or window, the write is
// conditional on used_count = 0 so a redemption racing the update cannot slip in between.
func (r *PGPromoCodeRepository) Update(ctx context.Context, id string, patch domain.PromoPatch) (*domain.PromoCode, error) {
	query := `UPDATE promo_codes SET
		discount_percentage = CASE WHEN $2::int IS NOT NULL THEN $2 WHEN $3::bigint IS NOT NULL THEN NULL ELSE discount_percentage END,
		discount_amount     = CASE WHEN $3::bigint IS NOT NULL THEN $3 WHEN $2::int IS NOT NULL THEN NULL ELSE discount_amount END,
		start_date          = COALESCE($4, start_date),
		end_date            = COALESCE($5, end_date),
		max_usage           = CASE WHEN $8::bool THEN NULL ELSE COALESCE($6, max_usage) END,
		is_active           = COALESCE($7, is_active),
		updated_at          = now()
		WHERE id = $1 AND ($6::int IS NULL OR $6::int >= used_count)`
	if patch.TouchesValue() {
		query += ` AND used_count = 0`
	}
	query += ` RETURNING ` + promoColumns

	p, err := scanPromo(r.db.QueryRow(ctx, query, id, patch.DiscountPercentage, patch.DiscountAmount, patch.StartDate, patch.EndDate, patch.MaxUsage, patch.IsActive, patch.ClearMaxUsage))
	if err == nil {
		return p, nil
	}
	if !isMissing(err) {
		return nil, fmt.Errorf("update promo code: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if patch.MaxUsage != nil && *patch.MaxUsage < current.UsedCount {
		return nil, domain.Validation("maxUsage cannot be below usedCount")
	}
	return nil, domain.ErrPromoCodeInUse
}

var _ PromoCodeRepository = (*PGPromoCodeRepository)(nil)
