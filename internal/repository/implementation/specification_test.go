package implementation

import (
	"errors"
	"fmt"
	"testing"

	"ai-insights-be/internal/repository/contract"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	other := &pgconn.PgError{Code: "23503"}

	assert.ErrorIs(t, translateError(fmt.Errorf("insert: %w", unique)), contract.ErrDuplicate)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), contract.ErrDuplicate)
	assert.NotErrorIs(t, translateError(other), contract.ErrDuplicate)

	plain := errors.New("connection reset")
	assert.Equal(t, plain, translateError(plain))
}
