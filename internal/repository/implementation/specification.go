package implementation

import (
	"errors"

	"ai-insights-be/internal/repository/contract"
	"ai-insights-be/internal/repository/specification"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// translateError maps postgres unique violations to contract.ErrDuplicate.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errors.Join(contract.ErrDuplicate, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(contract.ErrDuplicate, err)
	}
	return err
}
