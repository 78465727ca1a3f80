package repository

import (
	"errors"

	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isMissing reports whether err means no row can match: either nothing matched, or the
// id was not a valid uuid and so cannot identify any row.
func isMissing(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == database.InvalidTextRepresentation
}
