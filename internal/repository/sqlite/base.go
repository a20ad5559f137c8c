package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	apperrors "github.com/jwalitptl/detailing-api/pkg/errors"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db  *sqlx.DB
	sq  sq.StatementBuilderType
	now func() time.Time
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{
		db:  db,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// translate turns driver errors into typed application errors.
func translate(err error, op, conflictMsg string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return apperrors.NewConflict(conflictMsg, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
